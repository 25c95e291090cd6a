package headers

import "strings"

// ParseFlatObject reads a flat string-to-string object in either the plain
// form {"k":"v"} or the embedded form {\"k\":\"v\"}. It is deliberately
// lenient: malformed pairs are skipped and it never fails.
//
// Keys and values must not contain a double quote, and must not contain the
// sequences ," or :". Nested objects, arrays and non-string values are not
// understood.
func ParseFlatObject(text string) *Set {
	set := NewSet()

	body := unescape(strings.TrimSpace(text))
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")

	for _, pair := range strings.Split(body, `,"`) {
		k, v, ok := strings.Cut(pair, `:"`)
		if !ok {
			continue
		}
		key := strings.TrimSpace(strings.ReplaceAll(k, `"`, ""))
		if key == "" {
			continue
		}
		set.Put(key, strings.TrimSpace(strings.ReplaceAll(v, `"`, "")))
	}
	return set
}

// unescape resolves \" \\ \{ and \} in a single left-to-right pass. Any other
// backslash is kept as is.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch next := s[i+1]; next {
			case '"', '\\', '{', '}':
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
