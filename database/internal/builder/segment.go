// Package builder turns declarative segment lists into dialect-specific SQL.
// Literal text passes through, parameters become placeholders and identifiers
// are quoted according to the target dialect. The CRUD statements used by the
// drivers are assembled here once and rendered by whichever Formatter is active.
package builder

// Segment is one piece of a statement: SQL, Param, Identifier, TextOperand or DefaultValues.
type Segment interface {
	isSegment()
}

// SQL is literal statement text, emitted verbatim.
type SQL string

// Param is a bound value. A slice value expands to one placeholder per element.
type Param struct {
	Value any
}

// Identifier is one or more table or column names, rendered comma separated.
type Identifier struct {
	Names []string
}

// TextOperand is a column used as the left side of LIKE. Dialects whose LIKE
// only accepts text render it converted to text.
type TextOperand struct {
	Name string
}

// DefaultValues renders the dialect's "insert a row of defaults" clause.
type DefaultValues struct{}

func (SQL) isSegment()           {}
func (Param) isSegment()         {}
func (Identifier) isSegment()    {}
func (TextOperand) isSegment()   {}
func (DefaultValues) isSegment() {}

// Ident builds an Identifier segment.
func Ident(names ...string) Identifier {
	return Identifier{Names: names}
}

// AsText builds a TextOperand segment.
func AsText(name string) TextOperand {
	return TextOperand{Name: name}
}

// P builds a Param segment.
func P(value any) Param {
	return Param{Value: value}
}

// paramList joins one Param per value with ", ".
func paramList(values []any) []Segment {
	segs := make([]Segment, 0, len(values)*2)
	for i, v := range values {
		if i > 0 {
			segs = append(segs, SQL(", "))
		}
		segs = append(segs, P(v))
	}
	return segs
}
