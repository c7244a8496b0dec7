package mongo

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/timeutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// textFields are searched by free text and line filters.
var textFields = []string{"tag", "applicationId", "processName", "message"}

var stringFields = map[filterql.Field]string{
	filterql.FieldTag:     "tag",
	filterql.FieldPackage: "applicationId",
	filterql.FieldProcess: "processName",
	filterql.FieldMessage: "message",
}

// buildFilter translates a filter tree and a time range into a mongodb
// query document.
func buildFilter(node filterql.Node, tr repo.TimeRange, opts matcher.Options) (bson.M, error) {
	b := &filterBuilder{
		opts: opts,
		now:  time.Now(),
	}
	if opts.Now != nil {
		b.now = opts.Now()
	}

	var parts bson.A

	if node != nil {
		parts = append(parts, b.build(node))
	}

	if !tr.From.IsZero() || !tr.To.IsZero() {
		cond := bson.M{}
		if !tr.From.IsZero() {
			cond["$gte"] = tr.From
		}
		if !tr.To.IsZero() {
			cond["$lte"] = tr.To
		}

		parts = append(parts, bson.M{"timestamp": cond})
	}

	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	switch len(parts) {
	case 0:
		return bson.M{}, nil
	case 1:
		return parts[0].(bson.M), nil
	default:
		return bson.M{"$and": parts}, nil
	}
}

type filterBuilder struct {
	opts matcher.Options
	now  time.Time
	errs *multierror.Error
}

func (b *filterBuilder) build(node filterql.Node) bson.M {
	switch n := node.(type) {
	case *filterql.AndFilter:
		return bson.M{"$and": b.buildAll(filterql.Conjuncts(n))}

	case *filterql.OrFilter:
		return bson.M{"$or": b.buildAll(filterql.Disjuncts(n))}

	case *filterql.TopLevelFilter:
		return b.anyField(n.Text, false, false, false)

	case *filterql.KeyFilter:
		return b.key(n)
	}

	b.errs = multierror.Append(b.errs, fmt.Errorf("unsupported filter node %T", node))

	return bson.M{}
}

func (b *filterBuilder) buildAll(nodes []filterql.Node) bson.A {
	result := make(bson.A, len(nodes))
	for idx, n := range nodes {
		result[idx] = b.build(n)
	}

	return result
}

func (b *filterBuilder) key(f *filterql.KeyFilter) bson.M {
	if field, ok := stringFields[f.Field]; ok {
		if f.Field == filterql.FieldPackage && f.Value == matcher.MineValue && !f.IsRegex && !f.IsExact {
			op := "$in"
			if f.IsNegated {
				op = "$nin"
			}

			return bson.M{field: bson.M{op: slices.Concat([]string{}, b.opts.ProjectApplicationIDs)}}
		}

		return bson.M{field: b.text(f.Value, f.IsRegex, f.IsExact, f.IsNegated)}
	}

	var cond bson.M

	switch f.Field {
	case filterql.FieldLine:
		return b.anyField(f.Value, f.IsRegex, f.IsExact, f.IsNegated)

	case filterql.FieldLevel, filterql.FieldFromLevel, filterql.FieldToLevel:
		level, err := logcat.ParseLevel(f.Value)
		if err != nil {
			b.errs = multierror.Append(b.errs, err)
			return bson.M{}
		}

		op := "$gte"
		if f.Field == filterql.FieldToLevel {
			op = "$lte"
		}

		cond = bson.M{"level": bson.M{op: int(level)}}

	case filterql.FieldAge:
		age, err := timeutil.ParseAge(f.Value)
		if err != nil {
			b.errs = multierror.Append(b.errs, err)
			return bson.M{}
		}

		cond = bson.M{"timestamp": bson.M{"$gte": b.now.Add(-age)}}

	case filterql.FieldIs:
		switch f.Value {
		case "crash":
			cond = bson.M{"$or": bson.A{
				bson.M{"tag": "AndroidRuntime", "message": primitive.Regex{Pattern: "^FATAL EXCEPTION"}},
				bson.M{"tag": "libc", "message": primitive.Regex{Pattern: "Fatal signal"}},
			}}
		case "stacktrace":
			cond = bson.M{"message": primitive.Regex{Pattern: `^\s*at [\w$.<>]+\(.*\)\s*$`, Options: "m"}}
		default:
			b.errs = multierror.Append(b.errs, fmt.Errorf("unsupported value %q for key is", f.Value))
			return bson.M{}
		}

	default:
		b.errs = multierror.Append(b.errs, fmt.Errorf("unsupported field %q", f.Field))
		return bson.M{}
	}

	if f.IsNegated {
		return bson.M{"$nor": bson.A{cond}}
	}

	return cond
}

// anyField matches value against all text fields.
func (b *filterBuilder) anyField(value string, regex, exact, negated bool) bson.M {
	alternatives := make(bson.A, len(textFields))
	for idx, field := range textFields {
		alternatives[idx] = bson.M{field: b.text(value, regex, exact, false)}
	}

	if negated {
		return bson.M{"$nor": alternatives}
	}

	return bson.M{"$or": alternatives}
}

// text returns the field condition for a string value.
func (b *filterBuilder) text(value string, regex, exact, negated bool) any {
	var options string
	if !b.opts.MatchCase {
		options = "i"
	}

	if exact && b.opts.MatchCase {
		if negated {
			return bson.M{"$ne": value}
		}

		return value
	}

	pattern := value
	switch {
	case regex:
	case exact:
		pattern = "^" + regexp.QuoteMeta(value) + "$"
	default:
		pattern = regexp.QuoteMeta(value)
	}

	re := primitive.Regex{Pattern: pattern, Options: options}
	if negated {
		return bson.M{"$not": re}
	}

	return re
}
