package logcat

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const TimestampFormat = "2006-01-02 15:04:05.000"

type Header struct {
	Level         Level
	Pid           int
	Tid           int
	ApplicationID string
	ProcessName   string
	Tag           string
	Timestamp     time.Time
}

type Message struct {
	Header

	Message string
}

// Line renders the message the way the logcat view prints it.
func (m *Message) Line() string {
	return fmt.Sprintf("%s %5d-%-5d %-23s %-36s %s  %s",
		m.Timestamp.Format(TimestampFormat),
		m.Pid,
		m.Tid,
		m.Tag,
		m.ApplicationID,
		m.Level.Letter(),
		m.Message,
	)
}

// IsCrash reports whether m is the first message of an application or
// native crash.
func (m *Message) IsCrash() bool {
	switch m.Tag {
	case "AndroidRuntime":
		return strings.HasPrefix(m.Message, "FATAL EXCEPTION")
	case "libc":
		return strings.Contains(m.Message, "Fatal signal")
	}

	return false
}

var stackFrame = regexp.MustCompile(`(?m)^\s*at [\w$.<>]+\(.*\)\s*$`)

// HasStackTrace reports whether the message text contains a java stack
// frame.
func (m *Message) HasStackTrace() bool {
	return stackFrame.MatchString(m.Message)
}

// Map encodes m into plain values.
func (m *Message) Map() map[string]any {
	return map[string]any{
		"timestamp":     m.Timestamp.Format(time.RFC3339Nano),
		"level":         m.Level.Letter(),
		"pid":           m.Pid,
		"tid":           m.Tid,
		"applicationId": m.ApplicationID,
		"processName":   m.ProcessName,
		"tag":           m.Tag,
		"message":       m.Message,
	}
}

// MessageFromMap is the inverse of Message.Map. Numbers may be given as
// any numeric type since structpb and JSON decode them as float64.
func MessageFromMap(values map[string]any) (*Message, error) {
	msg := new(Message)

	if ts, ok := values["timestamp"].(string); ok && ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		msg.Timestamp = t
	}

	lvl, _ := values["level"].(string)
	if lvl == "" {
		return nil, fmt.Errorf("missing level")
	}

	var err error
	msg.Level, err = ParseLevel(lvl)
	if err != nil {
		return nil, err
	}

	msg.Pid = toInt(values["pid"])
	msg.Tid = toInt(values["tid"])
	msg.ApplicationID, _ = values["applicationId"].(string)
	msg.ProcessName, _ = values["processName"].(string)
	msg.Tag, _ = values["tag"].(string)
	msg.Message, _ = values["message"].(string)

	return msg, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}

	return 0
}
