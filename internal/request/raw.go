package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/loykin/crawlsend/internal/headers"
)

// ParseRaw reads a raw HTTP/1.x request as saved by an intercepting proxy.
//
// Headers keep their order and duplicates. The URL is scheme://Host plus the
// request target; an absolute-form target is used as is. scheme defaults to
// https.
func ParseRaw(r io.Reader, scheme string) (*Request, error) {
	br := bufio.NewReader(r)

	var line string
	for line == "" {
		l, err := readLine(br)
		line = strings.TrimSpace(l)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read request line: %w", err)
			}
			if line == "" {
				return nil, ErrEmptyRequest
			}
			break
		}
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed request line %q", line)
	}
	req := &Request{Method: strings.ToUpper(parts[0])}
	target := parts[1]

	var host string
	for {
		l, err := readLine(br)
		if l == "" {
			break
		}
		name, value, ok := strings.Cut(l, ":")
		if ok && strings.TrimSpace(name) != "" {
			h := headers.Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
			req.Headers = append(req.Headers, h)
			if host == "" && strings.EqualFold(h.Name, "Host") {
				host = h.Value
			}
		}
		if err != nil {
			break
		}
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	req.Body = string(body)

	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		req.URL = target
		return req, nil
	}
	if host == "" {
		return nil, errors.New("request has no Host header and an origin-form target")
	}
	if scheme = strings.TrimSpace(strings.TrimSuffix(scheme, "://")); scheme == "" {
		scheme = "https"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	req.URL = scheme + "://" + host + target
	return req, nil
}

// readLine returns the next line without its CRLF or LF terminator.
func readLine(br *bufio.Reader) (string, error) {
	l, err := br.ReadString('\n')
	return strings.TrimRight(l, "\r\n"), err
}
