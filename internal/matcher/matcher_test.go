package matcher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var messages = []*logcat.Message{
	{
		Header: logcat.Header{
			Level:         logcat.LevelInfo,
			ApplicationID: "com.example.app",
			ProcessName:   "com.example.app",
			Tag:           "MainActivity",
			Timestamp:     now.Add(-time.Minute),
		},
		Message: "onCreate called",
	},
	{
		Header: logcat.Header{
			Level:         logcat.LevelError,
			ApplicationID: "com.example.app",
			ProcessName:   "com.example.app:sync",
			Tag:           "AndroidRuntime",
			Timestamp:     now.Add(-2 * time.Minute),
		},
		Message: "FATAL EXCEPTION: main\n\tat com.example.Sync.run(Sync.java:10)",
	},
	{
		Header: logcat.Header{
			Level:         logcat.LevelDebug,
			ApplicationID: "com.android.systemui",
			ProcessName:   "com.android.systemui",
			Tag:           "StatusBar",
			Timestamp:     now.Add(-2 * time.Hour),
		},
		Message: "Clock updated",
	},
	{
		Header: logcat.Header{
			Level:       logcat.LevelWarn,
			ProcessName: "system_server",
			Tag:         "ActivityManager",
			Timestamp:   now.Add(-3 * 24 * time.Hour),
		},
		Message: "Slow operation: 1200ms",
	},
}

func matching(t *testing.T, query string, opts matcher.Options) []int {
	t.Helper()

	q, err := filterql.Parse(query)
	require.NoError(t, err)

	m, err := matcher.CompileQuery(q, opts)
	require.NoError(t, err)

	var result []int
	for idx, msg := range messages {
		if m.Matches(msg) {
			result = append(result, idx)
		}
	}

	return result
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	opts := matcher.Options{
		ProjectApplicationIDs: []string{"com.example.app"},
		Now:                   func() time.Time { return now },
	}

	tests := []struct {
		query    string
		expected []int
	}{
		{"", []int{0, 1, 2, 3}},
		{"tag:activity", []int{0, 3}},
		{"-tag:activity", []int{1, 2}},
		{"tag=:mainactivity", []int{0}},
		{"tag=:Main", nil},
		{"tag~:'^(status|main)'", []int{0, 2}},
		{"-tag~:^a", []int{0, 2}},
		{"package:mine", []int{0, 1}},
		{"-package:mine", []int{2, 3}},
		{"package:android", []int{2}},
		{"process:sync", []int{1}},
		{"app:system_server", []int{3}},
		{"message:clock", []int{2}},
		{"msg:'slow operation'", []int{3}},
		{"line:statusbar", []int{2}},
		{"level:W", []int{1, 3}},
		{"fromLevel:I", []int{0, 1, 3}},
		{"toLevel:I", []int{0, 2}},
		{"age:5m", []int{0, 1}},
		{"age:1d", []int{0, 1, 2}},
		{"is:crash", []int{1}},
		{"is:stacktrace", []int{1}},
		{"updated", []int{2}},
		{"tag:main | tag:status", []int{0, 2}},
		{"package:mine & level:E", []int{1}},
		{"package:mine level:E", []int{1}},
		{"(tag:main | tag:status) & level:D", []int{0, 2}},
		{"tag:main | tag:status & level:I", []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, matching(t, tt.query, opts))
		})
	}
}

func TestMatchCase(t *testing.T) {
	t.Parallel()

	opts := matcher.Options{MatchCase: true}

	assert.Nil(t, matching(t, "tag:activity", opts))
	assert.Equal(t, []int{0, 3}, matching(t, "tag:Activity", opts))
	assert.Nil(t, matching(t, "tag~:^main", opts))
	assert.Equal(t, []int{0}, matching(t, "tag=:MainActivity", opts))
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	q, err := filterql.Parse("level:X & age:soon | is:broken & tag~:'('")
	require.NoError(t, err)

	m, err := matcher.CompileQuery(q, matcher.Options{})
	require.Error(t, err)
	assert.Nil(t, m)

	msg := err.Error()
	assert.Contains(t, msg, "level:X")
	assert.Contains(t, msg, "age:soon")
	assert.Contains(t, msg, "is:broken")
	assert.Contains(t, msg, "invalid regular expression")
}

func TestCompileNil(t *testing.T) {
	t.Parallel()

	m, err := matcher.Compile(nil, matcher.Options{})
	require.NoError(t, err)

	assert.True(t, m.Matches(messages[0]))
}
