package matcher

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/hashicorp/go-multierror"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/timeutil"
)

// RegexTimeout bounds a single regex evaluation.
const RegexTimeout = 100 * time.Millisecond

// MineValue is the package value that selects the project applications.
const MineValue = filterql.PackageMine

type Options struct {
	// MatchCase enables case-sensitive matching for string keys and free
	// text.
	MatchCase bool

	// ProjectApplicationIDs are matched by "package:mine".
	ProjectApplicationIDs []string

	// Now is used to evaluate age filters, defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}

	return time.Now()
}

type Matcher interface {
	Matches(msg *logcat.Message) bool
}

type MatcherFunc func(msg *logcat.Message) bool

func (fn MatcherFunc) Matches(msg *logcat.Message) bool {
	return fn(msg)
}

var matchAll = MatcherFunc(func(*logcat.Message) bool { return true })

// CompileQuery compiles all top-level filters of q. They must all match.
func CompileQuery(q *filterql.Query, opts Options) (Matcher, error) {
	return Compile(q.Filter(), opts)
}

// Compile turns node into a Matcher. A nil node matches every message.
// All problems found in the tree are reported together.
func Compile(node filterql.Node, opts Options) (Matcher, error) {
	if node == nil {
		return matchAll, nil
	}

	c := &compiler{opts: opts}

	m := c.compile(node)
	if err := c.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return m, nil
}

type compiler struct {
	opts Options
	errs *multierror.Error
}

func (c *compiler) compile(node filterql.Node) MatcherFunc {
	switch n := node.(type) {
	case *filterql.AndFilter:
		left, right := c.compile(n.Left), c.compile(n.Right)

		return func(msg *logcat.Message) bool {
			return left(msg) && right(msg)
		}

	case *filterql.OrFilter:
		left, right := c.compile(n.Left), c.compile(n.Right)

		return func(msg *logcat.Message) bool {
			return left(msg) || right(msg)
		}

	case *filterql.TopLevelFilter:
		match := c.text(n.Text, false, false)

		return func(msg *logcat.Message) bool {
			return match(msg.Line())
		}

	case *filterql.KeyFilter:
		m := c.keyFilter(n)
		if n.IsNegated {
			return func(msg *logcat.Message) bool {
				return !m(msg)
			}
		}

		return m
	}

	c.errs = multierror.Append(c.errs, fmt.Errorf("unsupported filter node %T", node))

	return matchAll
}

func (c *compiler) fail(f *filterql.KeyFilter, err error) MatcherFunc {
	c.errs = multierror.Append(c.errs, fmt.Errorf("%s: %w", f.String(), err))

	return matchAll
}

func (c *compiler) keyFilter(f *filterql.KeyFilter) MatcherFunc {
	switch f.Field {
	case filterql.FieldPackage:
		if f.Value == MineValue && !f.IsRegex && !f.IsExact {
			ids := c.opts.ProjectApplicationIDs
			return func(msg *logcat.Message) bool {
				return slices.Contains(ids, msg.ApplicationID)
			}
		}

		return c.field(f, func(msg *logcat.Message) string { return msg.ApplicationID })

	case filterql.FieldTag:
		return c.field(f, func(msg *logcat.Message) string { return msg.Tag })

	case filterql.FieldProcess:
		return c.field(f, func(msg *logcat.Message) string { return msg.ProcessName })

	case filterql.FieldMessage:
		return c.field(f, func(msg *logcat.Message) string { return msg.Message })

	case filterql.FieldLine:
		return c.field(f, (*logcat.Message).Line)

	case filterql.FieldLevel, filterql.FieldFromLevel:
		level, err := logcat.ParseLevel(f.Value)
		if err != nil {
			return c.fail(f, err)
		}

		return func(msg *logcat.Message) bool {
			return msg.Level >= level
		}

	case filterql.FieldToLevel:
		level, err := logcat.ParseLevel(f.Value)
		if err != nil {
			return c.fail(f, err)
		}

		return func(msg *logcat.Message) bool {
			return msg.Level <= level
		}

	case filterql.FieldAge:
		age, err := timeutil.ParseAge(f.Value)
		if err != nil {
			return c.fail(f, err)
		}

		now := c.opts.now
		return func(msg *logcat.Message) bool {
			return !msg.Timestamp.Before(now().Add(-age))
		}

	case filterql.FieldIs:
		switch f.Value {
		case "crash":
			return (*logcat.Message).IsCrash
		case "stacktrace":
			return (*logcat.Message).HasStackTrace
		}

		return c.fail(f, fmt.Errorf("unsupported value %q, expected crash or stacktrace", f.Value))
	}

	return c.fail(f, fmt.Errorf("unsupported field %q", f.Field))
}

func (c *compiler) field(f *filterql.KeyFilter, get func(*logcat.Message) string) MatcherFunc {
	match := c.text(f.Value, f.IsRegex, f.IsExact)

	return func(msg *logcat.Message) bool {
		return match(get(msg))
	}
}

// text returns a string predicate for value. Invalid patterns are recorded
// as errors.
func (c *compiler) text(value string, regex, exact bool) func(string) bool {
	switch {
	case regex:
		opts := regexp2.None
		if !c.opts.MatchCase {
			opts = regexp2.IgnoreCase
		}

		re, err := regexp2.Compile(value, opts)
		if err != nil {
			c.errs = multierror.Append(c.errs, fmt.Errorf("invalid regular expression %q: %w", value, err))
			return func(string) bool { return false }
		}
		re.MatchTimeout = RegexTimeout

		return func(s string) bool {
			ok, err := re.MatchString(s)
			if err != nil {
				slog.Warn("regular expression evaluation failed", "pattern", value, "error", err)
				return false
			}

			return ok
		}

	case exact && c.opts.MatchCase:
		return func(s string) bool { return s == value }

	case exact:
		return func(s string) bool { return strings.EqualFold(s, value) }

	case c.opts.MatchCase:
		return func(s string) bool { return strings.Contains(s, value) }

	default:
		lower := strings.ToLower(value)

		return func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
	}
}
