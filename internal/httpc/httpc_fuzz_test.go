package httpc

import (
	"crypto/tls"
	"strings"
	"testing"
)

func knownVersion(v uint16) bool {
	switch v {
	case 0, tls.VersionTLS10, tls.VersionTLS11, tls.VersionTLS12, tls.VersionTLS13:
		return true
	}
	return false
}

// FuzzClientConfig feeds arbitrary client settings, as read from the
// "client" config section, through TLSConfig and New.
func FuzzClientConfig(f *testing.F) {
	f.Add(false, "", "", "")
	f.Add(true, "1.2", "tls1.3", "https://target.example/")
	f.Add(false, "TLS12", "v1.3", "http://127.0.0.1:8080//")
	f.Add(false, "ssl3", "1.4", "  ")

	f.Fuzz(func(t *testing.T, insecure bool, minV, maxV, base string) {
		cfg := Config{Insecure: insecure, MinVersion: minV, MaxVersion: maxV, BaseURL: base}

		tc := cfg.TLSConfig()
		parsedMin, parsedMax := parseTLSVersion(minV), parseTLSVersion(maxV)
		if tc == nil {
			if insecure || parsedMin != 0 || parsedMax != 0 {
				t.Fatalf("TLS settings dropped for %+v", cfg)
			}
		} else {
			if tc.InsecureSkipVerify != insecure {
				t.Fatalf("insecure = %v, want %v", tc.InsecureSkipVerify, insecure)
			}
			if !knownVersion(tc.MinVersion) || !knownVersion(tc.MaxVersion) {
				t.Fatalf("unexpected tls versions %x..%x", tc.MinVersion, tc.MaxVersion)
			}
		}

		c := New(cfg)
		if strings.TrimSpace(base) != "" && strings.HasSuffix(c.BaseURL, "/") {
			t.Fatalf("base url %q kept a trailing slash", c.BaseURL)
		}
	})
}
