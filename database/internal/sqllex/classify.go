// Package sqllex provides just enough SQL lexing to classify ad-hoc statements:
// it blanks out comments, string literals and quoted identifiers, then inspects
// the remaining keywords.
package sqllex

import (
	"regexp"
	"strings"

	"github.com/gaborage/go-rowkit/database/types"
)

// rowKeywords are leading keywords of statements that produce a result set.
var rowKeywords = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "VALUES": {}, "TABLE": {},
	"SHOW": {}, "DESCRIBE": {}, "DESC": {}, "EXPLAIN": {},
}

var returningClause = regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_$])RETURNING(?:[^A-Za-z0-9_$]|$)`)

// Strip replaces comments with a space, string literals with '' and quoted
// identifiers with an empty quoted identifier, using the lexical rules of dialect.
func Strip(sql string, dialect types.Dialect) string {
	mysql := dialect == types.DialectMySQL
	var out strings.Builder
	n := len(sql)

	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-', mysql && c == '#':
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 4
			}
			out.WriteByte(' ')
		case c == '\'':
			i = skipQuoted(sql, i, '\'', mysql)
			out.WriteString("''")
		case c == '"':
			// MySQL accepts double-quoted strings, Postgres uses them for identifiers
			i = skipQuoted(sql, i, '"', mysql)
			out.WriteString(`""`)
		case mysql && c == '`':
			i = skipQuoted(sql, i, '`', false)
			out.WriteString("``")
		case !mysql && c == '$':
			if next, ok := skipDollarQuoted(sql, i); ok {
				i = next
				out.WriteString("''")
				continue
			}
			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String()
}

// skipQuoted returns the index just past the literal opened at sql[start].
// A doubled quote is an escaped quote; backslash escapes apply when enabled.
func skipQuoted(sql string, start int, quote byte, backslash bool) int {
	n := len(sql)
	i := start + 1
	for i < n {
		switch {
		case backslash && sql[i] == '\\':
			i += 2
		case sql[i] == quote && i+1 < n && sql[i+1] == quote:
			i += 2
		case sql[i] == quote:
			return i + 1
		default:
			i++
		}
	}
	return n
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ bodies.
func skipDollarQuoted(sql string, start int) (int, bool) {
	tagEnd := strings.IndexByte(sql[start+1:], '$')
	if tagEnd < 0 {
		return 0, false
	}
	tag := sql[start : start+tagEnd+2]
	for _, r := range tag[1 : len(tag)-1] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return 0, false
		}
	}
	closing := strings.Index(sql[start+len(tag):], tag)
	if closing < 0 {
		return len(sql), true
	}
	return start + len(tag) + closing + len(tag), true
}

// LeadingKeyword returns the first word of the statement in upper case,
// ignoring comments and opening parentheses.
func LeadingKeyword(sql string, dialect types.Dialect) string {
	stripped := strings.TrimLeft(Strip(sql, dialect), " \t\r\n(")
	end := strings.IndexFunc(stripped, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		stripped = stripped[:end]
	}
	return strings.ToUpper(stripped)
}

// ReturnsRows reports whether the statement produces a result set: a read
// statement, or a Postgres write with a RETURNING clause.
func ReturnsRows(sql string, dialect types.Dialect) bool {
	if _, ok := rowKeywords[LeadingKeyword(sql, dialect)]; ok {
		return true
	}
	if dialect == types.DialectPostgreSQL {
		return returningClause.MatchString(Strip(sql, dialect))
	}
	return false
}
