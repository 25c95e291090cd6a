// Package headers merges request headers with operator supplied overrides and
// renders them in the JSON forms crawlergo accepts for --custom-headers.
package headers

import (
	"strings"

	"github.com/loykin/crawlsend/internal/constants"
)

// Header is a single name/value pair taken from a request or operator input.
type Header struct {
	Name  string `yaml:"name" json:"name" mapstructure:"name"`
	Value string `yaml:"value" json:"value" mapstructure:"value"`
}

// Set is an ordered header mapping. Keys match exactly (case-sensitive).
// Overwriting a key replaces its value and keeps its first position.
type Set struct {
	entries []Header
	index   map[string]int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Put inserts name or replaces its value in place.
func (s *Set) Put(name, value string) {
	if i, ok := s.index[name]; ok {
		s.entries[i].Value = value
		return
	}
	s.index[name] = len(s.entries)
	s.entries = append(s.entries, Header{Name: name, Value: value})
}

// Get returns the value stored under name.
func (s *Set) Get(name string) (string, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.entries[i].Value, true
}

// Len returns the number of distinct keys.
func (s *Set) Len() int { return len(s.entries) }

// Entries returns a copy of the entries in insertion order.
func (s *Set) Entries() []Header {
	out := make([]Header, len(s.entries))
	copy(out, s.entries)
	return out
}

// merge applies every entry of other using the overwrite rule.
func (s *Set) merge(other *Set) {
	for _, h := range other.entries {
		s.Put(h.Name, h.Value)
	}
}

var contentEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// JSON renders the set as a flat JSON object: {"k":"v",...}.
func (s *Set) JSON() string {
	return s.render(`"`)
}

// EmbeddedJSON renders the set with every structural quote already escaped:
// {\"k\":\"v\"}. This is the form crawlergo expects when the object is passed
// wrapped in one more pair of quotes on its command line.
func (s *Set) EmbeddedJSON() string {
	return s.render(`\"`)
}

func (s *Set) render(quote string) string {
	if len(s.entries) == 0 {
		return constants.EmptyHeaderJSON
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, h := range s.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote)
		b.WriteString(contentEscaper.Replace(h.Name))
		b.WriteString(quote)
		b.WriteByte(':')
		b.WriteString(quote)
		b.WriteString(contentEscaper.Replace(h.Value))
		b.WriteString(quote)
	}
	b.WriteByte('}')
	return b.String()
}
