package logcat_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]logcat.Level{
		"V":       logcat.LevelVerbose,
		"verbose": logcat.LevelVerbose,
		"d":       logcat.LevelDebug,
		"INFO":    logcat.LevelInfo,
		"Warning": logcat.LevelWarn,
		" E ":     logcat.LevelError,
		"F":       logcat.LevelAssert,
		"assert":  logcat.LevelAssert,
	}

	for input, expected := range cases {
		lvl, err := logcat.ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, lvl, input)
	}

	_, err := logcat.ParseLevel("X")
	assert.Error(t, err)
}

func TestLevels(t *testing.T) {
	t.Parallel()

	levels := logcat.Levels()
	require.Len(t, levels, 6)

	for idx, lvl := range levels {
		assert.True(t, lvl.IsValid())

		if idx > 0 {
			assert.Greater(t, lvl, levels[idx-1])
		}

		again, err := logcat.ParseLevel(lvl.Letter())
		require.NoError(t, err)
		assert.Equal(t, lvl, again)
	}

	assert.False(t, logcat.Level(0).IsValid())
	assert.Equal(t, "?", logcat.Level(0).Letter())
}

func TestMessagePredicates(t *testing.T) {
	t.Parallel()

	crash := &logcat.Message{
		Header:  logcat.Header{Tag: "AndroidRuntime"},
		Message: "FATAL EXCEPTION: main\nProcess: com.example, PID: 1234\n\tat com.example.Main.onCreate(Main.java:12)",
	}
	assert.True(t, crash.IsCrash())
	assert.True(t, crash.HasStackTrace())

	native := &logcat.Message{
		Header:  logcat.Header{Tag: "libc"},
		Message: "Fatal signal 11 (SIGSEGV), code 1",
	}
	assert.True(t, native.IsCrash())
	assert.False(t, native.HasStackTrace())

	plain := &logcat.Message{
		Header:  logcat.Header{Tag: "ActivityManager"},
		Message: "FATAL EXCEPTION is just text here",
	}
	assert.False(t, plain.IsCrash())
}

func TestMessageMap(t *testing.T) {
	t.Parallel()

	msg := &logcat.Message{
		Header: logcat.Header{
			Level:         logcat.LevelWarn,
			Pid:           100,
			Tid:           101,
			ApplicationID: "com.example.app",
			ProcessName:   "com.example.app:remote",
			Tag:           "Example",
			Timestamp:     time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC),
		},
		Message: "hello",
	}

	values := msg.Map()
	assert.Equal(t, "W", values["level"])
	assert.Equal(t, "2024-03-01T12:30:00.123Z", values["timestamp"])

	// structpb and JSON decode numbers as float64
	values["pid"] = float64(100)
	values["tid"] = float64(101)

	decoded, err := logcat.MessageFromMap(values)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	_, err = logcat.MessageFromMap(map[string]any{"message": "no level"})
	assert.Error(t, err)

	_, err = logcat.MessageFromMap(map[string]any{"level": "I", "timestamp": "yesterday"})
	assert.Error(t, err)
}

func TestMessageLine(t *testing.T) {
	t.Parallel()

	msg := &logcat.Message{
		Header: logcat.Header{
			Level:         logcat.LevelError,
			Pid:           42,
			Tid:           7,
			ApplicationID: "com.example",
			Tag:           "Tag",
			Timestamp:     time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC),
		},
		Message: "boom",
	}

	line := msg.Line()
	assert.True(t, strings.HasPrefix(line, "2024-01-02 03:04:05.006    42-7     Tag "), line)
	assert.True(t, strings.HasSuffix(line, " E  boom"), line)
	assert.Contains(t, line, "com.example")
}

func TestReader(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"--------- beginning of main",
		"03-01 12:00:00.000  1000  1001 I ActivityManager: Start proc 1234:com.example/u0a1",
		"03-01 12:00:01.500  1234  1234 E AndroidRuntime: FATAL EXCEPTION: main",
		"03-01 12:00:01.500  1234  1234 E AndroidRuntime: Process: com.example, PID: 1234",
		"\tat com.example.Main.onCreate(Main.java:12)",
		"",
		"2023-12-31 23:59:59.999   1     2 D init   : done",
		`{"level":"W","tag":"json","message":"from json","pid":5,"tid":6,"applicationId":"com.example","timestamp":"2024-03-01T12:00:02Z"}`,
		"{not json",
		"03-01 12:00:03.000  1000  1001 Q Invalid: unknown level letter",
	}, "\n")

	r := logcat.NewReader(strings.NewReader(input))
	r.Year = 2024
	r.Location = time.UTC

	msgs, err := r.ReadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 9")

	require.Len(t, msgs, 4)

	assert.Equal(t, "ActivityManager", msgs[0].Tag)
	assert.Equal(t, logcat.LevelInfo, msgs[0].Level)
	assert.Equal(t, 1000, msgs[0].Pid)
	assert.Equal(t, 1001, msgs[0].Tid)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), msgs[0].Timestamp)

	assert.Equal(t, "AndroidRuntime", msgs[1].Tag)
	assert.Equal(t,
		"FATAL EXCEPTION: main\nProcess: com.example, PID: 1234\n\tat com.example.Main.onCreate(Main.java:12)",
		msgs[1].Message,
	)
	assert.True(t, msgs[1].IsCrash())
	assert.True(t, msgs[1].HasStackTrace())

	assert.Equal(t, "init", msgs[2].Tag)
	assert.Equal(t, 2023, msgs[2].Timestamp.Year())
	assert.Equal(t, "done", msgs[2].Message)

	assert.Equal(t, "json", msgs[3].Tag)
	assert.Equal(t, "com.example", msgs[3].ApplicationID)
	assert.Equal(t, 5, msgs[3].Pid)
}
