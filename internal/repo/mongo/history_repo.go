package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Repository) RecordFilter(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	_, err := db.history.UpdateOne(
		ctx,
		bson.M{"query": query},
		bson.M{"$set": bson.M{"lastUsed": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to record filter: %w", err)
	}

	// drop everything beyond the configured history size
	res, err := db.history.Find(
		ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "lastUsed", Value: -1}}).
			SetSkip(int64(db.opts.MaxHistory())).
			SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return fmt.Errorf("failed to load outdated history entries: %w", err)
	}

	var outdated []HistoryEntry
	if err := res.All(ctx, &outdated); err != nil {
		return fmt.Errorf("failed to decode history entries: %w", err)
	}

	if len(outdated) == 0 {
		return nil
	}

	ids := make(bson.A, len(outdated))
	for idx, e := range outdated {
		ids[idx] = e.ID
	}

	if _, err := db.history.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete outdated history entries: %w", err)
	}

	return nil
}

func (db *Repository) RecentFilters(ctx context.Context, limit int) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUsed", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	res, err := db.history.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load filter history: %w", err)
	}

	var entries []HistoryEntry
	if err := res.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode filter history: %w", err)
	}

	result := make([]string, len(entries))
	for idx, e := range entries {
		result[idx] = e.Query
	}

	return result, nil
}

func (db *Repository) SaveFilter(ctx context.Context, f repo.SavedFilter) error {
	if f.CreateTime.IsZero() {
		f.CreateTime = time.Now()
	}

	_, err := db.saved.ReplaceOne(
		ctx,
		bson.M{"name": f.Name},
		SavedFilter{
			Name:       f.Name,
			Query:      f.Query,
			CreateTime: f.CreateTime,
		},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save filter: %w", err)
	}

	return nil
}

func (db *Repository) ListSavedFilters(ctx context.Context) ([]repo.SavedFilter, error) {
	res, err := db.saved.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to load saved filters: %w", err)
	}

	var filters []SavedFilter
	if err := res.All(ctx, &filters); err != nil {
		return nil, fmt.Errorf("failed to decode saved filters: %w", err)
	}

	result := make([]repo.SavedFilter, len(filters))
	for idx, f := range filters {
		result[idx] = f.ToModel()
	}

	return result, nil
}

func (db *Repository) DeleteSavedFilter(ctx context.Context, name string) error {
	res := db.saved.FindOneAndDelete(ctx, bson.M{"name": name})

	return convertErr(res.Err())
}
