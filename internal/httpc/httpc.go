// Package httpc builds the resty clients crawlsend uses for readiness
// probes and talking to a running crawlsend server.
package httpc

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config describes TLS and timeout settings for a client.
type Config struct {
	Insecure   bool          `mapstructure:"insecure" yaml:"insecure"`
	MinVersion string        `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxVersion string        `mapstructure:"max_tls_version" yaml:"max_tls_version"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Token      string        `mapstructure:"token" yaml:"token"`
}

// TLSConfig returns the tls.Config implied by c, or nil when c leaves the
// transport defaults alone.
func (c Config) TLSConfig() *tls.Config {
	minV := parseTLSVersion(c.MinVersion)
	maxV := parseTLSVersion(c.MaxVersion)
	if !c.Insecure && minV == 0 && maxV == 0 {
		return nil
	}
	cfg := &tls.Config{InsecureSkipVerify: c.Insecure} // #nosec G402 -- opt-in via client.insecure
	cfg.MinVersion = minV
	cfg.MaxVersion = maxV
	return cfg
}

// New returns a resty.Client configured from cfg.
func New(cfg Config) *resty.Client {
	c := resty.New()
	if tc := cfg.TLSConfig(); tc != nil {
		c.SetTLSClientConfig(tc)
	}
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		c.SetBaseURL(strings.TrimRight(base, "/"))
	}
	if tok := strings.TrimSpace(cfg.Token); tok != "" {
		c.SetAuthToken(tok)
	}
	return c
}

// parseTLSVersion accepts forms like "1.2", "tls1.2" and "TLS12".
func parseTLSVersion(s string) uint16 {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	switch v {
	case "1.0", "10":
		return tls.VersionTLS10
	case "1.1", "11":
		return tls.VersionTLS11
	case "1.2", "12":
		return tls.VersionTLS12
	case "1.3", "13":
		return tls.VersionTLS13
	default:
		return 0
	}
}
