package repo

import (
	"context"
	"slices"
	"strings"
	"time"

	commonv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/common/v1"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
)

// DefaultHistorySize is used if Options.HistorySize is not set.
const DefaultHistorySize = 20

// Options configure a backend.
type Options struct {
	// Match controls how filters are evaluated.
	Match matcher.Options

	// HistorySize caps the list of recently used filters.
	HistorySize int
}

func (o Options) MaxHistory() int {
	if o.HistorySize <= 0 {
		return DefaultHistorySize
	}

	return o.HistorySize
}

// TimeRange limits messages by timestamp. Zero values are open ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}

	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}

	return true
}

// SavedFilter is a named filter query.
type SavedFilter struct {
	Name       string
	Query      string
	CreateTime time.Time
}

type MessageBackend interface {
	// AppendMessages stores new log messages.
	AppendMessages(context.Context, []*logcat.Message) error

	// FilterMessages returns all messages that match filter and are within
	// the time range. A nil filter matches all messages. The second return
	// value is the total number of matches before pagination is applied.
	FilterMessages(context.Context, filterql.Node, TimeRange, *commonv1.Pagination) ([]*logcat.Message, int, error)

	// DistinctValues returns all distinct values stored for a string field.
	DistinctValues(context.Context, filterql.Field) ([]string, error)

	// ClearMessages deletes all stored messages.
	ClearMessages(context.Context) error
}

type FilterHistoryBackend interface {
	// RecordFilter moves query to the top of the most-recently-used list.
	// Blank queries are ignored.
	RecordFilter(context.Context, string) error

	// RecentFilters returns up to limit recently used queries, most recent
	// first.
	RecentFilters(context.Context, int) ([]string, error)

	// SaveFilter creates or replaces a named filter.
	SaveFilter(context.Context, SavedFilter) error

	// ListSavedFilters returns all named filters sorted by name.
	ListSavedFilters(context.Context) ([]SavedFilter, error)

	// DeleteSavedFilter deletes a named filter. ErrFilterNotFound is
	// returned if there is no filter with that name.
	DeleteSavedFilter(context.Context, string) error
}

type Backend interface {
	MessageBackend
	FilterHistoryBackend
}

type Repo interface {
	Backend

	// Close releases the resources held by the backend.
	Close(context.Context) error
}

type repo struct {
	Backend
}

func (r *repo) Close(ctx context.Context) error {
	if closer, ok := r.Backend.(interface{ Close(context.Context) error }); ok {
		return closer.Close(ctx)
	}

	return nil
}

func New(backend Backend) Repo {
	return &repo{
		Backend: backend,
	}
}

// Sort fields supported by FilterMessages.
const (
	SortTimestamp = "timestamp"
	SortLevel     = "level"
	SortTag       = "tag"
	SortPid       = "pid"
)

// CompareMessages orders a and b by the sort fields of pagination and
// falls back to timestamp ascending.
func CompareMessages(a, b *logcat.Message, pagination *commonv1.Pagination) int {
	var sortBy []*commonv1.Sort
	if pagination != nil {
		sortBy = pagination.SortBy
	}

	for _, s := range sortBy {
		var res int

		switch s.FieldName {
		case SortTimestamp:
			res = a.Timestamp.Compare(b.Timestamp)
		case SortLevel:
			res = int(a.Level) - int(b.Level)
		case SortTag:
			res = strings.Compare(a.Tag, b.Tag)
		case SortPid:
			res = a.Pid - b.Pid
		}

		if s.Direction != commonv1.SortDirection_SORT_DIRECTION_ASC {
			res = -res
		}

		if res != 0 {
			return res
		}
	}

	return a.Timestamp.Compare(b.Timestamp)
}

// Paginate returns the page of list selected by pagination.
func Paginate[T any](list []T, pagination *commonv1.Pagination) []T {
	if pagination == nil || pagination.PageSize <= 0 {
		return list
	}

	start := int(pagination.PageSize) * int(pagination.GetPage())
	if start < 0 || start >= len(list) {
		return nil
	}

	end := min(start+int(pagination.PageSize), len(list))

	return slices.Clone(list[start:end])
}
