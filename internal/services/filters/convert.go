package filters

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bufbuild/connect-go"
	"github.com/hashicorp/go-multierror"
	commonv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/common/v1"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"google.golang.org/protobuf/types/known/structpb"
)

func getString(msg *structpb.Struct, key string) string {
	return msg.GetFields()[key].GetStringValue()
}

func getInt(msg *structpb.Struct, key string) int {
	return int(msg.GetFields()[key].GetNumberValue())
}

func respond(values map[string]any) (*connect.Response[structpb.Struct], error) {
	s, err := structpb.NewStruct(values)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}

	return connect.NewResponse(s), nil
}

// parseError converts a query parse error to an invalid-argument error.
// The offset of syntax errors is attached as error detail.
func parseError(err error) error {
	cerr := connect.NewError(connect.CodeInvalidArgument, err)

	var pe *filterql.ParseError
	if errors.As(err, &pe) {
		detail, derr := structpb.NewStruct(map[string]any{
			"message": pe.Message,
			"offset":  pe.Offset,
		})
		if derr == nil {
			if d, derr := connect.NewErrorDetail(detail); derr == nil {
				cerr.AddDetail(d)
			}
		}
	}

	return cerr
}

func repoError(err error) error {
	if errors.Is(err, repo.ErrFilterNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}

	if errors.Is(err, repo.ErrInvalidField) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	return err
}

// paginationFrom reads pageSize, page and sort. Sort entries are field
// names, a leading "-" sorts descending.
func paginationFrom(msg *structpb.Struct) (*commonv1.Pagination, error) {
	pageSize, page := getInt(msg, "pageSize"), getInt(msg, "page")
	if pageSize < 0 || pageSize > math.MaxInt32 {
		return nil, fmt.Errorf("invalid page size %d", pageSize)
	}
	if page < 0 || page > math.MaxInt32 {
		return nil, fmt.Errorf("invalid page %d", page)
	}

	p := &commonv1.Pagination{
		PageSize: int32(pageSize),
		Kind: &commonv1.Pagination_Page{
			Page: int32(page),
		},
	}

	for _, v := range msg.GetFields()["sort"].GetListValue().GetValues() {
		name := v.GetStringValue()

		dir := commonv1.SortDirection_SORT_DIRECTION_ASC
		if strings.HasPrefix(name, "-") {
			dir = commonv1.SortDirection_SORT_DIRECTION_DESC
			name = name[1:]
		}

		switch name {
		case repo.SortTimestamp, repo.SortLevel, repo.SortTag, repo.SortPid:
		default:
			return nil, fmt.Errorf("unsupported sort field %q", name)
		}

		p.SortBy = append(p.SortBy, &commonv1.Sort{
			FieldName: name,
			Direction: dir,
		})
	}

	return p, nil
}

func messagesToList(msgs []*logcat.Message) []any {
	result := make([]any, len(msgs))
	for idx, m := range msgs {
		result[idx] = m.Map()
	}

	return result
}

func messagesFromList(list *structpb.ListValue) ([]*logcat.Message, error) {
	var (
		result []*logcat.Message
		errs   *multierror.Error
	)

	for idx, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			errs = multierror.Append(errs, fmt.Errorf("message %d: expected an object", idx))
			continue
		}

		msg, err := logcat.MessageFromMap(s.AsMap())
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("message %d: %w", idx, err))
			continue
		}

		result = append(result, msg)
	}

	return result, errs.ErrorOrNil()
}

func savedFilterToMap(f repo.SavedFilter) map[string]any {
	return map[string]any{
		"name":       f.Name,
		"query":      f.Query,
		"createTime": f.CreateTime.Format(time.RFC3339),
	}
}
