package builder

import (
	"regexp"
	"strconv"

	"github.com/gaborage/go-rowkit/database/types"
)

// PostgreSQL cannot bind identifiers, so they are inlined after validation.
var postgresIdentifier = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_$]*$`)

// Postgres renders $n placeholders and validated double-quoted identifiers.
// LIKE is only defined for text, so LIKE operands are cast to TEXT; numeric,
// uuid, enum and other columns exposed as strings stay searchable.
type Postgres struct{}

var postgresRules = dialectRules{
	placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
	quote:         quotePostgres,
	textOperand:   func(quoted string) string { return "CAST(" + quoted + " AS TEXT)" },
	defaultValues: "DEFAULT VALUES",
}

func (Postgres) Dialect() types.Dialect {
	return types.DialectPostgreSQL
}

// Format renders segments after prev, numbering placeholders from len(prev.Params)+1.
func (Postgres) Format(prev types.QueryObject, segments []Segment, _ ...FormatOption) (types.QueryObject, error) {
	return render(postgresRules, prev, segments)
}

func quotePostgres(name string) (string, error) {
	if !postgresIdentifier.MatchString(name) {
		return "", &types.IdentifierError{Name: name}
	}
	return `"` + name + `"`, nil
}
