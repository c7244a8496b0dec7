package logcat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// threadtime matches lines of "adb logcat -v threadtime", optionally with
// the year prefix added by "-v year".
var threadtime = regexp.MustCompile(`^((?:\d{4}-)?\d\d-\d\d \d\d:\d\d:\d\d\.\d{3})\s+(\d+)\s+(\d+)\s+([VDIWEAF]) (.*?)\s*:(?: (.*))?$`)

// Reader decodes logcat output. Each line is either threadtime text or a
// JSON object in the form produced by Message.Map.
type Reader struct {
	scanner *bufio.Scanner

	// Year is used for threadtime lines that do not carry one.
	Year int

	Location *time.Location
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner:  s,
		Year:     time.Now().Year(),
		Location: time.Local,
	}
}

// ReadAll decodes all messages. Lines that fail to decode are reported in
// the returned error while the remaining messages are still returned.
// Consecutive threadtime lines sharing the same header are merged into one
// multi-line message, lines matching no format continue the previous one.
func (r *Reader) ReadAll() ([]*Message, error) {
	var (
		result []*Message
		errs   *multierror.Error
		last   *Message
		lineNo int
	)

	for r.scanner.Scan() {
		lineNo++
		line := strings.TrimRight(r.scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "{") {
			msg, err := decodeJSON(line)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("line %d: %w", lineNo, err))
				continue
			}

			result = append(result, msg)
			last = nil

			continue
		}

		msg, ok, err := r.decodeThreadtime(line)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}

		switch {
		case !ok && last != nil:
			last.Message += "\n" + line

		case !ok:
			// "--------- beginning of main" and similar markers
			continue

		case last != nil && last.Header == msg.Header:
			last.Message += "\n" + msg.Message

		default:
			result = append(result, msg)
			last = msg
		}
	}

	if err := r.scanner.Err(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return result, errs.ErrorOrNil()
}

func (r *Reader) decodeThreadtime(line string) (*Message, bool, error) {
	m := threadtime.FindStringSubmatch(line)
	if m == nil {
		return nil, false, nil
	}

	ts := m[1]
	if len(ts) == len("01-02 15:04:05.000") {
		ts = fmt.Sprintf("%04d-%s", r.Year, ts)
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}

	t, err := time.ParseInLocation(TimestampFormat, ts, loc)
	if err != nil {
		return nil, false, fmt.Errorf("invalid timestamp: %w", err)
	}

	pid, _ := strconv.Atoi(m[2])
	tid, _ := strconv.Atoi(m[3])

	level, err := ParseLevel(m[4])
	if err != nil {
		return nil, false, err
	}

	return &Message{
		Header: Header{
			Level:     level,
			Pid:       pid,
			Tid:       tid,
			Tag:       m[5],
			Timestamp: t,
		},
		Message: m[6],
	}, true, nil
}

func decodeJSON(line string) (*Message, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(line), &values); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return MessageFromMap(values)
}
