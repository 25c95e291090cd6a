package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// palette holds the colors used by ColorHandler. Each handler gets its own
// copy so enabling color on one does not affect fatih/color's global state.
type palette struct {
	time, component, message, key, number, good, bad, warn, plain *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		time:      color.New(color.FgHiBlack),
		component: color.New(color.FgCyan),
		message:   color.New(color.FgWhite),
		key:       color.New(color.FgCyan),
		number:    color.New(color.FgMagenta),
		good:      color.New(color.FgGreen),
		bad:       color.New(color.FgRed),
		warn:      color.New(color.FgYellow),
		plain:     color.New(color.FgWhite),
	}
	p.set(enabled)
	return p
}

func (p *palette) set(enabled bool) {
	for _, c := range []*color.Color{p.time, p.component, p.message, p.key, p.number, p.good, p.bad, p.warn, p.plain} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// ColorHandler is a colorized text slog handler for terminals. The
// "component" attribute is rendered as a [component] prefix and run status
// values are colored by outcome.
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	colors   *palette
	useColor bool
}

// NewColorHandler creates a new color handler. Colors are on only when w is
// a terminal.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	useColor := shouldUseColor(w)
	return &ColorHandler{
		opts:     opts,
		mu:       &sync.Mutex{},
		writer:   w,
		masker:   NewMasker(),
		colors:   newPalette(useColor),
		useColor: useColor,
	}
}

func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle writes one line per record.
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	if !r.Time.IsZero() {
		sb.WriteString(h.colors.time.Sprint(r.Time.Format(time.RFC3339)))
		sb.WriteByte(' ')
	}
	sb.WriteString(h.formatLevel(r.Level))
	sb.WriteByte(' ')

	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	var component string
	attrs = slices.DeleteFunc(attrs, func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return true
		}
		return false
	})
	if component != "" {
		sb.WriteString(h.colors.component.Sprintf("[%s]", component))
		sb.WriteByte(' ')
	}

	sb.WriteString(h.colors.message.Sprint(r.Message))

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range h.maskAttributes(attrs) {
		sb.WriteByte(' ')
		sb.WriteString(h.colors.key.Sprint(prefix + a.Key))
		sb.WriteByte('=')
		sb.WriteString(h.formatValue(a.Key, a.Value))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *ColorHandler) formatLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.colors.bad.Sprint("[ERROR]")
	case level >= slog.LevelWarn:
		return h.colors.warn.Sprint("[WARN ]")
	case level >= slog.LevelInfo:
		return h.colors.good.Sprint("[INFO ]")
	default:
		return h.colors.time.Sprint("[DEBUG]")
	}
}

func (h *ColorHandler) formatValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		quoted := fmt.Sprintf("%q", s)
		if key == "status" || key == "error" {
			return h.statusColor(s).Sprint(quoted)
		}
		return h.colors.plain.Sprint(quoted)
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		if key == "exit_code" && v.Kind() == slog.KindInt64 && v.Int64() != 0 {
			return h.colors.bad.Sprint(v.String())
		}
		return h.colors.number.Sprint(v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.colors.good.Sprint("true")
		}
		return h.colors.bad.Sprint("false")
	case slog.KindDuration:
		return h.colors.warn.Sprint(v.Duration().String())
	case slog.KindTime:
		return h.colors.time.Sprint(v.Time().Format(time.RFC3339))
	default:
		return h.colors.plain.Sprint(v.String())
	}
}

// statusColor picks a color for run statuses and error strings.
func (h *ColorHandler) statusColor(s string) *color.Color {
	switch strings.ToLower(s) {
	case "exited", "ready", "ok":
		return h.colors.good
	case "superseded", "pending":
		return h.colors.warn
	case "failed":
		return h.colors.bad
	}
	if s != "" && strings.Contains(strings.ToLower(s), "error") {
		return h.colors.bad
	}
	return h.colors.plain
}

func (h *ColorHandler) maskAttributes(attrs []slog.Attr) []slog.Attr {
	if h.masker == nil || !h.masker.IsEnabled() {
		return attrs
	}
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		if attr.Value.Kind() != slog.KindString {
			masked[i] = attr
			continue
		}
		if s, ok := h.masker.MaskValue(attr.Key, attr.Value.String()).(string); ok {
			masked[i] = slog.String(attr.Key, s)
		} else {
			masked[i] = attr
		}
	}
	return masked
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	c.attrs = slices.Clip(h.attrs)
	c.groups = slices.Clip(h.groups)
	return &c
}

// WithAttrs returns a new ColorHandler with the given attributes added
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

// WithGroup returns a new ColorHandler whose attribute keys are prefixed
// with name.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

// SetMasker sets the masker for this handler
func (h *ColorHandler) SetMasker(masker *Masker) {
	h.masker = masker
}

// SetColorEnabled enables or disables colors
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
	h.colors.set(enabled)
}
