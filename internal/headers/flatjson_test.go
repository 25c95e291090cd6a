package headers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlatObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Header
	}{
		{"plain", `{"a":"1","b":"2"}`, []Header{{"a", "1"}, {"b", "2"}}},
		{"embedded", `{\"a\":\"1\",\"b\":\"2\"}`, []Header{{"a", "1"}, {"b", "2"}}},
		{"surrounding whitespace", "  {\"a\":\"1\"}\n", []Header{{"a", "1"}}},
		{"spaces around values trimmed", `{"a":" 1 ","b" :"2"}`, []Header{{"a", "1"}, {"b", "2"}}},
		{"missing braces", `"a":"1"`, []Header{{"a", "1"}}},
		{"malformed pair skipped", `{"a":1,"b":"2"}`, []Header{{"b", "2"}}},
		{"empty key skipped", `{"":"x","c":"3"}`, []Header{{"c", "3"}}},
		{"empty value kept", `{"a":""}`, []Header{{"a", ""}}},
		{"value with colon and comma", `{"Cookie":"a=1, b=2","X-Time":"12:00"}`, []Header{{"Cookie", "a=1, b=2"}, {"X-Time", "12:00"}}},
		{"escaped backslash", `{"p":"C:\\dir"}`, []Header{{"p", `C:\dir`}}},
		{"other escapes kept", `{"p":"a\nb"}`, []Header{{"p", `a\nb`}}},
		{"duplicate keeps first position", `{"a":"1","b":"2","a":"3"}`, []Header{{"a", "3"}, {"b", "2"}}},
		{"empty object", `{}`, nil},
		{"garbage", `not json at all`, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFlatObject(tt.in).Entries()
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlatObject_RoundTrip(t *testing.T) {
	set := NewSet()
	set.Put("Cookie", "PHPSESSID=abc; theme=dark")
	set.Put("Authorization", "Bearer eyJ0eXAi.x.y")
	set.Put("X-Path", `C:\Program Files\Chrome`)
	set.Put("Accept", "*/*")

	plain := set.JSON()
	assert.Equal(t, plain, ParseFlatObject(plain).JSON())

	embedded := set.EmbeddedJSON()
	assert.Equal(t, embedded, ParseFlatObject(embedded).EmbeddedJSON())
	assert.Equal(t, plain, ParseFlatObject(embedded).JSON())
}

func FuzzParseFlatObjectRoundTrip(f *testing.F) {
	f.Add("Cookie", "a=1")
	f.Add(`X\Y`, `C:\dir\`)
	f.Add("k", "")
	f.Fuzz(func(t *testing.T, key, value string) {
		if key == "" || strings.Contains(key+value, `"`) {
			t.Skip()
		}
		for _, s := range []string{key, value} {
			if s != strings.TrimSpace(s) || strings.Contains(s, `,"`) || strings.Contains(s, `:"`) {
				t.Skip()
			}
			// a trailing separator rune fuses with the quote that follows it
			if strings.HasSuffix(s, ",") || strings.HasSuffix(s, ":") {
				t.Skip()
			}
		}
		if strings.ContainsAny(key, "{}") || strings.ContainsAny(value, "{}") {
			t.Skip()
		}
		set := NewSet()
		set.Put(key, value)
		if got := ParseFlatObject(set.JSON()).JSON(); got != set.JSON() {
			t.Fatalf("round trip mismatch: %q != %q", got, set.JSON())
		}
	})
}
