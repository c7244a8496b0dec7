package inmem

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	commonv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/common/v1"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
)

// Repository keeps everything in memory and evaluates filters with the
// matcher package.
type Repository struct {
	opts repo.Options

	l sync.RWMutex

	messages []*logcat.Message
	history  []string
	saved    map[string]repo.SavedFilter
}

func New(opts repo.Options) *Repository {
	return &Repository{
		opts:  opts,
		saved: make(map[string]repo.SavedFilter),
	}
}

var _ repo.Backend = (*Repository)(nil)

func (r *Repository) AppendMessages(_ context.Context, msgs []*logcat.Message) error {
	r.l.Lock()
	defer r.l.Unlock()

	for _, m := range msgs {
		cpy := *m
		r.messages = append(r.messages, &cpy)
	}

	return nil
}

func (r *Repository) FilterMessages(_ context.Context, filter filterql.Node, tr repo.TimeRange, pagination *commonv1.Pagination) ([]*logcat.Message, int, error) {
	m, err := matcher.Compile(filter, r.opts.Match)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to compile filter: %w", err)
	}

	r.l.RLock()
	result := make([]*logcat.Message, 0)
	for _, msg := range r.messages {
		if tr.Contains(msg.Timestamp) && m.Matches(msg) {
			cpy := *msg
			result = append(result, &cpy)
		}
	}
	r.l.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return repo.CompareMessages(result[i], result[j], pagination) < 0
	})

	return repo.Paginate(result, pagination), len(result), nil
}

func (r *Repository) DistinctValues(_ context.Context, field filterql.Field) ([]string, error) {
	var get func(*logcat.Message) string

	switch field {
	case filterql.FieldTag:
		get = func(m *logcat.Message) string { return m.Tag }
	case filterql.FieldPackage:
		get = func(m *logcat.Message) string { return m.ApplicationID }
	case filterql.FieldProcess:
		get = func(m *logcat.Message) string { return m.ProcessName }
	default:
		return nil, fmt.Errorf("%w: %q", repo.ErrInvalidField, field)
	}

	r.l.RLock()
	defer r.l.RUnlock()

	set := make(map[string]struct{})
	for _, m := range r.messages {
		if v := get(m); v != "" {
			set[v] = struct{}{}
		}
	}

	result := make([]string, 0, len(set))
	for v := range set {
		result = append(result, v)
	}
	slices.Sort(result)

	return result, nil
}

func (r *Repository) ClearMessages(context.Context) error {
	r.l.Lock()
	defer r.l.Unlock()

	r.messages = nil

	return nil
}

func (r *Repository) RecordFilter(_ context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	r.l.Lock()
	defer r.l.Unlock()

	history := make([]string, 0, len(r.history)+1)
	history = append(history, query)
	for _, q := range r.history {
		if q != query {
			history = append(history, q)
		}
	}

	if size := r.opts.MaxHistory(); len(history) > size {
		history = history[:size]
	}

	r.history = history

	return nil
}

func (r *Repository) RecentFilters(_ context.Context, limit int) ([]string, error) {
	r.l.RLock()
	defer r.l.RUnlock()

	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}

	return slices.Clone(r.history[:limit]), nil
}

func (r *Repository) SaveFilter(_ context.Context, f repo.SavedFilter) error {
	r.l.Lock()
	defer r.l.Unlock()

	if f.CreateTime.IsZero() {
		f.CreateTime = time.Now()
	}

	r.saved[f.Name] = f

	return nil
}

func (r *Repository) ListSavedFilters(context.Context) ([]repo.SavedFilter, error) {
	r.l.RLock()
	defer r.l.RUnlock()

	result := make([]repo.SavedFilter, 0, len(r.saved))
	for _, f := range r.saved {
		result = append(result, f)
	}

	slices.SortFunc(result, func(a, b repo.SavedFilter) int {
		return strings.Compare(a.Name, b.Name)
	})

	return result, nil
}

func (r *Repository) DeleteSavedFilter(_ context.Context, name string) error {
	r.l.Lock()
	defer r.l.Unlock()

	if _, ok := r.saved[name]; !ok {
		return repo.ErrFilterNotFound
	}

	delete(r.saved, name)

	return nil
}
