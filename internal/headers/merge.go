package headers

import (
	"strings"
)

// Merge builds the header set sent to the crawler: request headers first, in
// order, then the operator input applied on top.
//
// Operator input is either a flat JSON object (it starts with "{") or a single
// "Name: value" line. Quotes are stripped from a single line. Input that has
// no colon or yields an empty name is ignored.
func Merge(requestHeaders []Header, operatorInput string) *Set {
	set := NewSet()
	for _, h := range requestHeaders {
		set.Put(h.Name, h.Value)
	}

	input := strings.TrimSpace(operatorInput)
	switch {
	case input == "":
	case strings.HasPrefix(input, "{"):
		set.merge(ParseFlatObject(input))
	default:
		name, value, ok := strings.Cut(input, ":")
		if !ok {
			break
		}
		name = strings.ReplaceAll(strings.TrimSpace(name), `"`, "")
		value = strings.ReplaceAll(strings.TrimSpace(value), `"`, "")
		if name == "" {
			break
		}
		set.Put(name, value)
	}
	return set
}

// MergeJSON is Merge followed by JSON.
func MergeJSON(requestHeaders []Header, operatorInput string) string {
	return Merge(requestHeaders, operatorInput).JSON()
}
