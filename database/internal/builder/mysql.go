package builder

import (
	"strings"

	"github.com/gaborage/go-rowkit/database/types"
)

// MySQL renders ? placeholders and backtick-quoted identifiers.
// Embedded backticks are doubled, so any name is safe to inline.
// LIKE converts numeric and temporal operands implicitly, so text operands stay bare.
type MySQL struct{}

var mysqlRules = dialectRules{
	placeholder:   func(int) string { return "?" },
	quote:         quoteMySQL,
	textOperand:   func(quoted string) string { return quoted },
	defaultValues: "() VALUES ()",
}

func (MySQL) Dialect() types.Dialect {
	return types.DialectMySQL
}

// Format renders segments after prev. Trailing segments are dropped since MySQL
// reports generated keys through the execution result instead of RETURNING.
func (MySQL) Format(prev types.QueryObject, segments []Segment, opts ...FormatOption) (types.QueryObject, error) {
	if applyFormatOptions(opts).trailing {
		return prev, nil
	}
	return render(mysqlRules, prev, segments)
}

func quoteMySQL(name string) (string, error) {
	if name == "" {
		return "", &types.IdentifierError{Name: name}
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`", nil
}
