// Package argv splits an operator supplied argument string into argv tokens.
package argv

import (
	"strings"
	"unicode"
)

// Tokenize splits input on whitespace outside double quotes.
//
// A double quote only toggles quoting and is never part of a token. There is
// no backslash escaping. An unbalanced quote keeps the rest of the input
// quoted, so trailing whitespace becomes part of the last token.
func Tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
