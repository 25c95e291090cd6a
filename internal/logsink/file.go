package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where the run log is written.
type Config struct {
	// File is the log path. Defaults to crawlergo_log.txt in the working
	// directory.
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB enables rotation when > 0.
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
	// Console mirrors command and error lines, like an on-screen log area.
	Console bool `mapstructure:"console" yaml:"console"`

	// Mirror overrides the console writer (stdout by default).
	Mirror io.Writer `mapstructure:"-" yaml:"-"`
}

// File is a Sink backed by a file opened in append mode.
type File struct {
	mu     sync.Mutex
	w      io.WriteCloser
	path   string
	mirror io.Writer
	logger *common.Logger
}

var (
	commandColor = color.New(color.FgCyan)
	errorColor   = color.New(color.FgRed)
)

// Open opens (creating if needed) the run log described by cfg.
func Open(cfg Config) (*File, error) {
	path := cfg.File
	if path == "" {
		path = constants.DefaultLogFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve log path: %w", err)
	}
	if dir := filepath.Dir(abs); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	var w io.WriteCloser
	if cfg.MaxSizeMB > 0 {
		w = &lumberjack.Logger{
			Filename:   abs,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	} else {
		f, err := os.OpenFile(abs, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}

	s := &File{
		w:      w,
		path:   abs,
		logger: common.GetLogger().WithComponent("logsink"),
	}
	if cfg.Console {
		s.mirror = cfg.Mirror
		if s.mirror == nil {
			s.mirror = os.Stdout
		}
	}
	s.logger.Info("run log opened", "path", abs, "rotate", cfg.MaxSizeMB > 0)
	return s, nil
}

// Path returns the absolute log path.
func (s *File) Path() string { return s.path }

func (s *File) Info(msg string) { s.write(infoPrefix+msg, nil) }

func (s *File) Error(msg string) { s.write(errorPrefix+msg, errorColor) }

func (s *File) Line(raw string) { s.write(raw, nil) }

func (s *File) Command(display string) { s.write(commandLine(display), commandColor) }

// write appends one line. A nil mirrorColor means the line stays out of the
// console mirror.
func (s *File) write(line string, mirrorColor *color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, line+LineSeparator); err != nil {
		s.logger.Error("write run log", "error", err, "path", s.path)
	}
	if s.mirror != nil && mirrorColor != nil {
		_, _ = mirrorColor.Fprint(s.mirror, line+"\n")
	}
}

// Close closes the underlying file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}
