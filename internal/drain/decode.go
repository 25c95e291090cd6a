package drain

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// NewDecodingReader converts r from the named console encoding (for example
// "gbk") to UTF-8. An empty name or any UTF-8 label returns r unchanged.
func NewDecodingReader(r io.Reader, encoding string) (io.Reader, error) {
	name := strings.TrimSpace(encoding)
	if name == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output encoding %q: %w", encoding, err)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
