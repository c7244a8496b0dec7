package logcat

import (
	"fmt"
	"strings"
)

type Level int

const (
	LevelVerbose Level = iota + 2
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelAssert
)

var allLevels = []Level{
	LevelVerbose,
	LevelDebug,
	LevelInfo,
	LevelWarn,
	LevelError,
	LevelAssert,
}

// Levels returns all levels ordered from least to most severe.
func Levels() []Level {
	return append([]Level(nil), allLevels...)
}

func (l Level) IsValid() bool {
	return l >= LevelVerbose && l <= LevelAssert
}

func (l Level) Letter() string {
	switch l {
	case LevelVerbose:
		return "V"
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarn:
		return "W"
	case LevelError:
		return "E"
	case LevelAssert:
		return "A"
	}

	return "?"
}

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "VERBOSE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelAssert:
		return "ASSERT"
	}

	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts a level letter or name, case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "V", "VERBOSE":
		return LevelVerbose, nil
	case "D", "DEBUG":
		return LevelDebug, nil
	case "I", "INFO":
		return LevelInfo, nil
	case "W", "WARN", "WARNING":
		return LevelWarn, nil
	case "E", "ERROR":
		return LevelError, nil
	case "A", "ASSERT", "F", "FATAL":
		return LevelAssert, nil
	}

	return 0, fmt.Errorf("invalid log level %q", s)
}
