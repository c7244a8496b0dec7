package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/common/v1"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo/inmem"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(offset time.Duration, level logcat.Level, tag, app string, text string) *logcat.Message {
	return &logcat.Message{
		Header: logcat.Header{
			Level:         level,
			Pid:           int(offset / time.Second),
			ApplicationID: app,
			ProcessName:   app,
			Tag:           tag,
			Timestamp:     base.Add(offset),
		},
		Message: text,
	}
}

func seeded(t *testing.T) *inmem.Repository {
	t.Helper()

	r := inmem.New(repo.Options{})

	require.NoError(t, r.AppendMessages(context.Background(), []*logcat.Message{
		msg(3*time.Second, logcat.LevelInfo, "Zygote", "", "forked"),
		msg(1*time.Second, logcat.LevelError, "AndroidRuntime", "com.example", "FATAL EXCEPTION: main"),
		msg(2*time.Second, logcat.LevelDebug, "Example", "com.example", "hello"),
		msg(4*time.Second, logcat.LevelWarn, "Example", "com.example", "slow"),
	}))

	return r
}

func filter(t *testing.T, query string) filterql.Node {
	t.Helper()

	q, err := filterql.Parse(query)
	require.NoError(t, err)

	return q.Filter()
}

func tags(msgs []*logcat.Message) []string {
	result := make([]string, len(msgs))
	for idx, m := range msgs {
		result[idx] = m.Tag + "/" + m.Message
	}

	return result
}

func TestFilterMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := seeded(t)

	all, total, err := r.FilterMessages(ctx, nil, repo.TimeRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{
		"AndroidRuntime/FATAL EXCEPTION: main",
		"Example/hello",
		"Zygote/forked",
		"Example/slow",
	}, tags(all))

	res, total, err := r.FilterMessages(ctx, filter(t, "package:example level:W"), repo.TimeRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"AndroidRuntime/FATAL EXCEPTION: main", "Example/slow"}, tags(res))

	res, total, err = r.FilterMessages(ctx, filter(t, "tag=:example | is:crash"), repo.TimeRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"AndroidRuntime/FATAL EXCEPTION: main", "Example/hello", "Example/slow"}, tags(res))

	res, _, err = r.FilterMessages(ctx, nil, repo.TimeRange{
		From: base.Add(2 * time.Second),
		To:   base.Add(3 * time.Second),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Example/hello", "Zygote/forked"}, tags(res))

	_, _, err = r.FilterMessages(ctx, filter(t, "level:nope"), repo.TimeRange{}, nil)
	assert.Error(t, err)
}

func TestFilterMessagesPagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := seeded(t)

	pagination := &commonv1.Pagination{
		PageSize: 3,
		Kind:     &commonv1.Pagination_Page{Page: 0},
		SortBy: []*commonv1.Sort{
			{FieldName: repo.SortTag, Direction: commonv1.SortDirection_SORT_DIRECTION_ASC},
			{FieldName: repo.SortLevel, Direction: commonv1.SortDirection_SORT_DIRECTION_DESC},
		},
	}

	res, total, err := r.FilterMessages(ctx, nil, repo.TimeRange{}, pagination)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"AndroidRuntime/FATAL EXCEPTION: main", "Example/slow", "Example/hello"}, tags(res))

	pagination.Kind = &commonv1.Pagination_Page{Page: 1}

	res, total, err = r.FilterMessages(ctx, nil, repo.TimeRange{}, pagination)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"Zygote/forked"}, tags(res))

	pagination.Kind = &commonv1.Pagination_Page{Page: 5}

	res, _, err = r.FilterMessages(ctx, nil, repo.TimeRange{}, pagination)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestMessagesAreCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := inmem.New(repo.Options{})

	m := msg(0, logcat.LevelInfo, "Tag", "", "unchanged")
	require.NoError(t, r.AppendMessages(ctx, []*logcat.Message{m}))

	m.Message = "changed"

	res, _, err := r.FilterMessages(ctx, nil, repo.TimeRange{}, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "unchanged", res[0].Message)

	require.NoError(t, r.ClearMessages(ctx))

	res, total, err := r.FilterMessages(ctx, nil, repo.TimeRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, res)
}

func TestDistinctValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := seeded(t)

	values, err := r.DistinctValues(ctx, filterql.FieldTag)
	require.NoError(t, err)
	assert.Equal(t, []string{"AndroidRuntime", "Example", "Zygote"}, values)

	values, err = r.DistinctValues(ctx, filterql.FieldPackage)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example"}, values)

	_, err = r.DistinctValues(ctx, filterql.FieldMessage)
	assert.ErrorIs(t, err, repo.ErrInvalidField)
}

func TestFilterHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := inmem.New(repo.Options{HistorySize: 3})

	for _, q := range []string{"tag:a", "tag:b", "  ", "tag:c", "tag:a", "tag:d"} {
		require.NoError(t, r.RecordFilter(ctx, q))
	}

	recent, err := r.RecentFilters(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag:d", "tag:a", "tag:c"}, recent)

	recent, err = r.RecentFilters(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag:d"}, recent)
}

func TestSavedFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := inmem.New(repo.Options{})

	require.NoError(t, r.SaveFilter(ctx, repo.SavedFilter{Name: "crashes", Query: "is:crash"}))
	require.NoError(t, r.SaveFilter(ctx, repo.SavedFilter{Name: "app", Query: "package:mine"}))
	require.NoError(t, r.SaveFilter(ctx, repo.SavedFilter{Name: "crashes", Query: "is:crash level:E"}))

	list, err := r.ListSavedFilters(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "app", list[0].Name)
	assert.Equal(t, "crashes", list[1].Name)
	assert.Equal(t, "is:crash level:E", list[1].Query)
	assert.False(t, list[1].CreateTime.IsZero())

	require.NoError(t, r.DeleteSavedFilter(ctx, "app"))
	assert.ErrorIs(t, r.DeleteSavedFilter(ctx, "app"), repo.ErrFilterNotFound)

	list, err = r.ListSavedFilters(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
