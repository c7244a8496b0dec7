package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	commonv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/common/v1"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var sortKeys = map[string]string{
	repo.SortTimestamp: "timestamp",
	repo.SortLevel:     "level",
	repo.SortTag:       "tag",
	repo.SortPid:       "pid",
}

func (db *Repository) AppendMessages(ctx context.Context, msgs []*logcat.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	docs := make([]any, len(msgs))
	for idx, m := range msgs {
		docs[idx] = messageFromModel(m)
	}

	if _, err := db.messages.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert messages: %w", err)
	}

	return nil
}

func (db *Repository) FilterMessages(ctx context.Context, node filterql.Node, tr repo.TimeRange, pagination *commonv1.Pagination) ([]*logcat.Message, int, error) {
	// the matcher reports invalid regular expressions, levels and ages
	// with the same messages as the in-memory backend
	if _, err := matcher.Compile(node, db.opts.Match); err != nil {
		return nil, 0, fmt.Errorf("failed to compile filter: %w", err)
	}

	filter, err := buildFilter(node, tr, db.opts.Match)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build message query: %w", err)
	}

	sort := bson.D{}
	if pagination != nil {
		for _, field := range pagination.SortBy {
			key, ok := sortKeys[field.FieldName]
			if !ok {
				return nil, 0, fmt.Errorf("unsupported sort field %q", field.FieldName)
			}

			var dir int
			switch field.Direction {
			case commonv1.SortDirection_SORT_DIRECTION_ASC:
				dir = 1
			default:
				dir = -1
			}

			sort = append(sort, bson.E{Key: key, Value: dir})
		}
	}

	if !slices.ContainsFunc(sort, func(e bson.E) bool { return e.Key == "timestamp" }) {
		sort = append(sort, bson.E{Key: "timestamp", Value: 1})
	}

	paginationPipeline := mongo.Pipeline{
		bson.D{{Key: "$sort", Value: sort}},
	}

	if pagination != nil && pagination.PageSize > 0 {
		paginationPipeline = append(paginationPipeline, bson.D{{Key: "$skip", Value: int64(pagination.PageSize) * int64(max(pagination.GetPage(), 0))}})
		paginationPipeline = append(paginationPipeline, bson.D{{Key: "$limit", Value: pagination.PageSize}})
	}

	pipeline := mongo.Pipeline{}

	if len(filter) > 0 {
		pipeline = append(pipeline, bson.D{
			{
				Key:   "$match",
				Value: filter,
			},
		})
	}

	pipeline = append(pipeline, bson.D{
		{
			Key: "$facet",
			Value: bson.M{
				"metadata": []bson.D{
					{{
						Key:   "$count",
						Value: "totalCount",
					}},
				},
				"data": paginationPipeline,
			},
		},
	})

	res, err := db.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to perform find operation: %w", err)
	}

	var result []struct {
		Metadata []struct {
			TotalCount int `bson:"totalCount"`
		} `bson:"metadata"`
		Data []Message `bson:"data"`
	}

	if err := res.All(ctx, &result); err != nil {
		return nil, 0, fmt.Errorf("failed to decode result: %w", err)
	}

	// nothing found
	if len(result) == 0 {
		return nil, 0, nil
	}

	if len(result) > 1 {
		slog.Warn("received unexpected result count for aggregation state", "count", len(result))
	}

	messages := make([]*logcat.Message, len(result[0].Data))
	for idx, r := range result[0].Data {
		messages[idx] = r.ToModel()
	}

	var count int
	if len(result[0].Metadata) == 1 {
		count = result[0].Metadata[0].TotalCount
	}

	return messages, count, nil
}

func (db *Repository) DistinctValues(ctx context.Context, field filterql.Field) ([]string, error) {
	key, ok := stringFields[field]
	if !ok || field == filterql.FieldMessage {
		return nil, fmt.Errorf("%w: %q", repo.ErrInvalidField, field)
	}

	values, err := db.messages.Distinct(ctx, key, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load distinct values: %w", err)
	}

	result := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	slices.Sort(result)

	return result, nil
}

func (db *Repository) ClearMessages(ctx context.Context) error {
	if _, err := db.messages.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	return nil
}
