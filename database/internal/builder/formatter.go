package builder

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gaborage/go-rowkit/database/types"
)

// Formatter renders segments onto a previously built QueryObject.
// The previous QueryObject is never modified; placeholder numbering continues
// from its parameter count.
type Formatter interface {
	Dialect() types.Dialect
	Format(prev types.QueryObject, segments []Segment, opts ...FormatOption) (types.QueryObject, error)
}

type formatOptions struct {
	trailing bool
}

// FormatOption tweaks a single Format call.
type FormatOption func(*formatOptions)

// Trailing marks the segments as a dialect-specific trailing clause (RETURNING).
// Dialects without the clause return the previous query unchanged.
func Trailing() FormatOption {
	return func(o *formatOptions) {
		o.trailing = true
	}
}

func applyFormatOptions(opts []FormatOption) formatOptions {
	var o formatOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFormatter returns the formatter for dialect.
func NewFormatter(dialect types.Dialect) (Formatter, error) {
	switch dialect {
	case types.DialectPostgreSQL:
		// PostgreSQL uses $1, $2, ... placeholders and inline quoted identifiers
		return Postgres{}, nil
	case types.DialectMySQL:
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// dialectRules captures what differs between dialects while rendering.
type dialectRules struct {
	placeholder   func(n int) string
	quote         func(name string) (string, error)
	textOperand   func(quoted string) string
	defaultValues string
}

func render(rules dialectRules, prev types.QueryObject, segments []Segment) (types.QueryObject, error) {
	var sb strings.Builder
	sb.WriteString(prev.SQL)
	params := slices.Clone(prev.Params)

	for _, seg := range segments {
		switch s := seg.(type) {
		case SQL:
			sb.WriteString(string(s))
		case Param:
			values, isList := expandList(s.Value)
			if !isList {
				params = append(params, s.Value)
				sb.WriteString(rules.placeholder(len(params)))
				continue
			}
			if len(values) == 0 {
				sb.WriteString("NULL")
				continue
			}
			for i, v := range values {
				if i > 0 {
					sb.WriteString(", ")
				}
				params = append(params, v)
				sb.WriteString(rules.placeholder(len(params)))
			}
		case Identifier:
			if len(s.Names) == 0 {
				return types.QueryObject{}, fmt.Errorf("identifier segment without names")
			}
			for i, name := range s.Names {
				quoted, err := rules.quote(name)
				if err != nil {
					return types.QueryObject{}, err
				}
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(quoted)
			}
		case TextOperand:
			quoted, err := rules.quote(s.Name)
			if err != nil {
				return types.QueryObject{}, err
			}
			sb.WriteString(rules.textOperand(quoted))
		case DefaultValues:
			sb.WriteString(rules.defaultValues)
		default:
			return types.QueryObject{}, fmt.Errorf("unsupported segment type %T", seg)
		}
	}

	return types.QueryObject{SQL: sb.String(), Params: params}, nil
}

// expandList unpacks slice and array parameter values. Byte slices are scalars.
func expandList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if _, ok := value.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}
