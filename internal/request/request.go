// Package request loads the HTTP request a crawl is started from.
package request

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/crawlsend/internal/headers"
	"gopkg.in/yaml.v3"
)

// ErrEmptyRequest is returned when an input holds no request at all.
var ErrEmptyRequest = errors.New("empty request")

// Query is one query parameter appended to the URL of a YAML request.
type Query struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Request is a snapshot of the selected HTTP request.
type Request struct {
	Method   string           `yaml:"method" json:"method"`
	URL      string           `yaml:"url" json:"url"`
	Headers  []headers.Header `yaml:"headers" json:"headers"`
	Queries  []Query          `yaml:"queries" json:"queries,omitempty"`
	Body     string           `yaml:"body" json:"body,omitempty"`
	BodyFile string           `yaml:"body_file" json:"-"`
}

// LoadYAML reads a request from a YAML file. Queries are folded into the URL
// and body_file, when set, replaces body.
func LoadYAML(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyRequest
	}

	var r Request
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse request yaml: %w", err)
	}
	if err := r.resolve(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Request) resolve(baseDir string) error {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = "GET"
	}
	r.URL = strings.TrimSpace(r.URL)

	if len(r.Queries) > 0 && r.URL != "" {
		u, err := url.Parse(r.URL)
		if err != nil {
			return fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		for _, p := range r.Queries {
			q.Add(p.Name, p.Value)
		}
		u.RawQuery = q.Encode()
		r.URL = u.String()
		r.Queries = nil
	}

	if bf := strings.TrimSpace(r.BodyFile); bf != "" {
		if !filepath.IsAbs(bf) {
			bf = filepath.Join(baseDir, bf)
		}
		data, err := os.ReadFile(filepath.Clean(bf))
		if err != nil {
			return fmt.Errorf("read body_file: %w", err)
		}
		r.Body = string(data)
		r.BodyFile = ""
	}
	return nil
}

// Normalize uppercases the method and folds queries into the URL, for
// requests decoded from JSON rather than loaded from a file.
func (r *Request) Normalize() error {
	r.BodyFile = ""
	return r.resolve("")
}

// Load picks the format by extension: YAML for .yaml/.yml, a raw HTTP request
// otherwise. scheme is used for raw requests in origin form.
func Load(path, scheme string) (*Request, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open request: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseRaw(f, scheme)
}

// Validate checks that the request has an absolute http(s) URL.
func (r *Request) Validate() error {
	if r == nil {
		return ErrEmptyRequest
	}
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// AuthHeaders returns only the Cookie and Authorization headers, matched
// without regard to case, in request order.
func (r *Request) AuthHeaders() []headers.Header {
	var out []headers.Header
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, "Cookie") || strings.EqualFold(h.Name, "Authorization") {
			out = append(out, h)
		}
	}
	return out
}
