package common

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
)

// MaskedValue replaces every masked secret.
const MaskedValue = "***MASKED***"

// SensitivePattern detects one kind of secret in free text.
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "header_json", "dsn_password")
	Regex       *regexp.Regexp // Matches the secret and its context
	Replacement string         // Regexp replacement template
	Keys        []string       // Attribute keys whose whole value is masked (case-insensitive)
}

// sensitiveNames are header and field names whose values are secrets.
const sensitiveNames = `cookie|set-cookie|authorization|proxy-authorization|x-api-key|x-auth-token|x-csrf-token|` +
	`api[_-]?key|access[_-]?token|auth[_-]?token|token|password|passwd|pwd|client[_-]?secret|jwt[_-]?secret|secret`

// DefaultSensitivePatterns cover the places crawl diagnostics carry secrets:
// header objects in plain and embedded form, header lines, query or
// key=value pairs, database DSNs and Authorization schemes.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "header_json",
		Regex:       regexp.MustCompile(`(?i)(\\?")(` + sensitiveNames + `)(\\?"\s*:\s*\\?")((?:[^"\\]|\\[^"])*)(\\?")`),
		Replacement: "${1}${2}${3}" + MaskedValue + "${5}",
		Keys: []string{"cookie", "set-cookie", "authorization", "proxy-authorization",
			"x-api-key", "x-auth-token", "x-csrf-token"},
	},
	{
		Name:        "header_line",
		Regex:       regexp.MustCompile(`(?im)^(\s*(?:cookie|set-cookie|authorization|proxy-authorization|x-api-key|x-auth-token)\s*:\s*)(\S.*)$`),
		Replacement: "${1}" + MaskedValue,
	},
	{
		Name:        "key_value",
		Regex:       regexp.MustCompile(`(?i)\b(password|passwd|pwd|token|access_token|auth_token|api_key|apikey|secret|client_secret|jwt_secret)=([^&\s;"',]+)`),
		Replacement: "${1}=" + MaskedValue,
		Keys: []string{"password", "passwd", "pwd", "token", "access_token", "auth_token", "access-token", "auth-token",
			"api_key", "apikey", "api-key", "secret", "client_secret", "client-secret", "jwt_secret"},
	},
	{
		Name:        "dsn_password",
		Regex:       regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/@\s]+:)([^@\s]+)@`),
		Replacement: "${1}" + MaskedValue + "@",
		Keys:        []string{"dsn"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + MaskedValue,
	},
	{
		Name:        "basic_auth",
		Regex:       regexp.MustCompile(`(?i)\bBasic\s+[A-Za-z0-9+/]+=*`),
		Replacement: "Basic " + MaskedValue,
	},
}

// Masker masks secrets in log attributes. It is safe for concurrent use.
type Masker struct {
	mu       sync.RWMutex
	patterns []SensitivePattern
	keys     map[string]struct{}
	enabled  atomic.Bool
}

// NewMasker creates a masker with DefaultSensitivePatterns.
func NewMasker() *Masker {
	return NewMaskerWithPatterns(DefaultSensitivePatterns)
}

// NewMaskerWithPatterns creates a masker with only patterns.
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	m := &Masker{keys: map[string]struct{}{}}
	for _, p := range patterns {
		m.add(p)
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) { m.enabled.Store(enabled) }

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool { return m.enabled.Load() }

// AddPattern adds a pattern. When Regex is nil one is built that masks
// "key: value" and "key=value" for each of Keys.
func (m *Masker) AddPattern(pattern SensitivePattern) {
	if pattern.Regex == nil && len(pattern.Keys) > 0 {
		quoted := make([]string, len(pattern.Keys))
		for i, k := range pattern.Keys {
			quoted[i] = regexp.QuoteMeta(k)
		}
		pattern.Regex = regexp.MustCompile(fmt.Sprintf(`(?i)\b(%s)\s*[:=]\s*['"]?([^'",\s}\]]+)['"]?`, strings.Join(quoted, "|")))
		if pattern.Replacement == "" {
			pattern.Replacement = `$1:"` + MaskedValue + `"`
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(pattern)
}

func (m *Masker) add(p SensitivePattern) {
	if p.Regex != nil {
		m.patterns = append(m.patterns, p)
	}
	for _, k := range p.Keys {
		m.keys[strings.ToLower(k)] = struct{}{}
	}
}

// IsSensitiveKey reports whether values under key are masked whole.
func (m *Masker) IsSensitiveKey(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskString masks every secret found in input.
func (m *Masker) MaskString(input string) string {
	if !m.IsEnabled() || input == "" {
		return input
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patterns {
		input = p.Regex.ReplaceAllString(input, p.Replacement)
	}
	return input
}

// MaskValue masks value whole when key is sensitive, and masks secrets
// inside string-like values otherwise. Other values pass through.
func (m *Masker) MaskValue(key string, value interface{}) interface{} {
	if !m.IsEnabled() {
		return value
	}
	if m.IsSensitiveKey(key) {
		return MaskedValue
	}
	switch v := value.(type) {
	case string:
		return m.MaskString(v)
	case []byte:
		return m.MaskString(string(v))
	case error:
		return m.MaskString(v.Error())
	default:
		return value
	}
}

// MaskKeyValuePairs masks slog style key/value pairs.
func (m *Masker) MaskKeyValuePairs(pairs ...any) []any {
	if !m.IsEnabled() {
		return pairs
	}
	out := make([]any, len(pairs))
	copy(out, pairs)
	for i := 0; i+1 < len(out); i += 2 {
		if key, ok := out[i].(string); ok {
			out[i+1] = m.MaskValue(key, out[i+1])
		}
	}
	return out
}

// MaskArgv masks a crawler command line, for example the header object
// passed with --custom-headers.
func (m *Masker) MaskArgv(argv []string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = m.MaskString(a)
	}
	return out
}

var globalMasker = NewMasker()

// SetGlobalMasker replaces the masker used by new loggers.
func SetGlobalMasker(masker *Masker) {
	if masker != nil {
		globalMasker = masker
	}
}

// GetGlobalMasker returns the global masker instance
func GetGlobalMasker() *Masker {
	return globalMasker
}

// MaskSensitiveData masks data using the global masker
func MaskSensitiveData(input string) string {
	return globalMasker.MaskString(input)
}

// EnableMasking enables/disables global masking
func EnableMasking(enabled bool) {
	globalMasker.SetEnabled(enabled)
}

// IsMaskingEnabled returns whether global masking is enabled
func IsMaskingEnabled() bool {
	return globalMasker.IsEnabled()
}
