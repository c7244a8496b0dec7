package timeutil

import (
	"fmt"
	"strconv"
	"time"
)

var startTime = map[string]func(time.Time) time.Time{
	time.RFC3339:  func(t time.Time) time.Time { return t },
	time.DateTime: func(t time.Time) time.Time { return t },
	"2006-01-02":  StartOfDay,
	"2006-01":     StartOfMonth,
	"2006":        StartOfYear,
}

var endTime = map[string]func(time.Time) time.Time{
	time.RFC3339:  func(t time.Time) time.Time { return t },
	time.DateTime: func(t time.Time) time.Time { return t },
	"2006-01-02":  EndOfDay,
	"2006-01":     EndOfMonth,
	"2006":        EndOfYear,
}

func parse(loc *time.Location, s string, m map[string]func(time.Time) time.Time) (time.Time, error) {
	for key, val := range m {
		t, err := time.ParseInLocation(key, s, loc)
		if err == nil {
			return val(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported format")
}

func ParseStartInLocation(s string, loc *time.Location) (time.Time, error) {
	return parse(loc, s, startTime)
}

func ParseEndInLocation(s string, loc *time.Location) (time.Time, error) {
	return parse(loc, s, endTime)
}

// ParseStart parses s and rounds it down to the start of the period it
// names, "2024-02" becomes the first of February.
func ParseStart(s string) (time.Time, error) {
	return ParseStartInLocation(s, time.Local)
}

// ParseEnd parses s and rounds it up to the last instant of the period it
// names.
func ParseEnd(s string) (time.Time, error) {
	return ParseEndInLocation(s, time.Local)
}

var ageUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseAge parses ages like "30s", "5m", "2h", "1d" or "1w".
func ParseAge(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid age %q", s)
	}

	unit, ok := ageUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid age %q: unknown unit %q", s, s[len(s)-1:])
	}

	n, err := strconv.ParseUint(s[:len(s)-1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", s, err)
	}

	return time.Duration(n) * unit, nil
}

func StartOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func EndOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, -1, now.Location())
}

func StartOfMonth(now time.Time) time.Time {
	year, month, _ := now.Date()

	return time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
}

func EndOfMonth(now time.Time) time.Time {
	year, month, _ := now.Date()

	return time.Date(year, month+1, 1, 0, 0, 0, -1, now.Location())
}

func StartOfYear(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

func EndOfYear(now time.Time) time.Time {
	return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, -1, now.Location())
}
