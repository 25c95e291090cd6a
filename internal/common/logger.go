package common

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger is the diagnostic logger used across crawlsend. It is separate from
// the run log written by logsink: this one describes what crawlsend itself
// is doing, and masks sensitive attributes.
type Logger struct {
	*slog.Logger
	level  LogLevel
	color  *ColorHandler
	masker *Masker
}

// NewLogger creates a new structured text logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a text logger writing to w.
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	opts := &slog.HandlerOptions{
		Level:       level.ToSlogLevel(),
		ReplaceAttr: maskReplaceAttr(globalMasker),
	}
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, opts)),
		level:  level,
		masker: globalMasker,
	}
}

// NewJSONLogger creates a structured logger with JSON output
func NewJSONLogger(level LogLevel) *Logger {
	opts := &slog.HandlerOptions{
		Level:       level.ToSlogLevel(),
		ReplaceAttr: maskReplaceAttr(globalMasker),
	}
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, opts)),
		level:  level,
		masker: globalMasker,
	}
}

// NewColorLogger creates a logger backed by ColorHandler. Colors are only
// emitted when stderr is a terminal.
func NewColorLogger(level LogLevel) *Logger {
	h := NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	h.SetMasker(globalMasker)
	return &Logger{
		Logger: slog.New(h),
		level:  level,
		color:  h,
		masker: globalMasker,
	}
}

// maskReplaceAttr adapts a Masker to slog.HandlerOptions.ReplaceAttr so the
// builtin text/json handlers mask the same keys as ColorHandler.
func maskReplaceAttr(m *Masker) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if m == nil || !m.IsEnabled() || a.Value.Kind() != slog.KindString {
			return a
		}
		if v, ok := m.MaskValue(a.Key, a.Value.String()).(string); ok {
			return slog.String(a.Key, v)
		}
		return a
	}
}

// EnableMasking toggles masking for this logger.
func (l *Logger) EnableMasking(enabled bool) {
	if l.masker != nil {
		l.masker.SetEnabled(enabled)
	}
}

// IsMaskingEnabled reports whether masking is on for this logger.
func (l *Logger) IsMaskingEnabled() bool {
	return l.masker != nil && l.masker.IsEnabled()
}

// GetMasker returns the masker shared by this logger and its children.
func (l *Logger) GetMasker() *Masker {
	return l.masker
}

// EnableColor forces colors on or off for a color logger. It is a no-op
// for text and JSON loggers.
func (l *Logger) EnableColor(enabled bool) {
	if l.color != nil {
		l.color.SetColorEnabled(enabled)
	}
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
		color:  l.color,
		masker: l.masker,
	}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithRun returns a logger with run id context
func (l *Logger) WithRun(id string) *Logger {
	return l.with("run", id)
}

// WithTarget returns a logger with the crawl target url
func (l *Logger) WithTarget(url string) *Logger {
	return l.with("target", url)
}

// WithStore returns a logger with store context
func (l *Logger) WithStore(storeType string) *Logger {
	return l.with("store", storeType)
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, url string) *Logger {
	return l.with("method", method, "url", url)
}

// Global default logger instance
var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	if logger == nil {
		return
	}
	defaultLogger = logger
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// LogError logs an error with context
func LogError(msg string, err error, attrs ...any) {
	args := append([]any{"error", err}, attrs...)
	defaultLogger.Error(msg, args...)
}

// LogInfo logs informational message
func LogInfo(msg string, attrs ...any) {
	defaultLogger.Info(msg, attrs...)
}

// LogDebug logs debug message
func LogDebug(msg string, attrs ...any) {
	defaultLogger.Debug(msg, attrs...)
}

// LogWarn logs warning message
func LogWarn(msg string, attrs ...any) {
	defaultLogger.Warn(msg, attrs...)
}
