package sqlval

import (
	"fmt"
	"strings"
)

// Bind replaces each ? placeholder in query with the literal for the
// matching argument. Placeholders inside single-quoted strings, double-quoted
// identifiers and backtick-quoted identifiers are left alone.
func Bind(query string, args ...any) (string, error) {
	positions := placeholders(query)
	if len(positions) != len(args) {
		return "", fmt.Errorf("%w: %d placeholders, %d args", ErrArgCount, len(positions), len(args))
	}
	if len(args) == 0 {
		return query, nil
	}

	var b strings.Builder
	b.Grow(len(query) + 8*len(args))

	last := 0
	for i, pos := range positions {
		lit, err := ToSQL(args[i])
		if err != nil {
			return "", fmt.Errorf("sqlval: arg %d: %w", i, err)
		}
		b.WriteString(query[last:pos])
		b.WriteString(lit)
		last = pos + 1
	}
	b.WriteString(query[last:])
	return b.String(), nil
}

// placeholders returns the byte offsets of unquoted ? characters.
// Doubled quotes inside a quoted region toggle out and back in, which keeps
// the scan correct without special casing.
func placeholders(query string) []int {
	var out []int
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			out = append(out, i)
		}
	}
	return out
}
