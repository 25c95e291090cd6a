// Package crawlsend launches a crawler against a captured HTTP request. It
// merges the request's headers with operator headers, builds the crawler
// command line and runs it under a single-slot supervisor that logs every
// line of output.
package crawlsend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/crawlsend/internal/argv"
	"github.com/loykin/crawlsend/internal/command"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/headers"
	"github.com/loykin/crawlsend/internal/logsink"
	"github.com/loykin/crawlsend/internal/request"
	"github.com/loykin/crawlsend/internal/sender"
	"github.com/loykin/crawlsend/internal/store"
	"github.com/loykin/crawlsend/internal/supervisor"
)

// Re-export commonly used types for public API

// Request is a snapshot of the selected HTTP request.
type Request = request.Request

// Header is one request header.
type Header = headers.Header

// Options are the operator's crawler settings.
type Options = sender.Options

// Run is a queued or running crawl.
type Run = supervisor.Run

// RunResult is a point in time view of a run.
type RunResult = supervisor.RunResult

// LogConfig configures the run log file.
type LogConfig = logsink.Config

// StoreConfig selects the settings and history database.
type StoreConfig = store.Config

// Store is the settings and history database.
type Store = store.Store

const (
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
)

// Tokenize splits a shell-style argument string.
func Tokenize(s string) []string { return argv.Tokenize(s) }

// MergeHeaders merges request headers with operator input and returns the
// flat JSON object.
func MergeHeaders(requestHeaders []Header, operatorInput string) string {
	return headers.MergeJSON(requestHeaders, operatorInput)
}

// LoadRequest reads a YAML or raw HTTP request file.
func LoadRequest(path, scheme string) (*Request, error) { return request.Load(path, scheme) }

// DisplayCommand renders argv the way it appears in the run log.
func DisplayCommand(argv []string) string { return command.Display(argv) }

// SupervisorConfig tunes process supervision.
type SupervisorConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	KillTree    *bool         `mapstructure:"kill_tree" yaml:"kill_tree"`
}

// Config wires a Launcher.
type Config struct {
	Options        Options
	OutputEncoding string
	Log            LogConfig
	Store          StoreConfig
	Supervisor     SupervisorConfig
	// Observers are called for every concluded run, after the store records it.
	Observers []func(RunResult)
}

// Launcher owns the run log, the supervisor and, unless disabled, the store.
type Launcher struct {
	Sink       *logsink.File
	Supervisor *supervisor.Supervisor
	Sender     *sender.Sender
	// Store is nil when the store is disabled.
	Store *store.Store
}

// New opens the run log and store and starts the supervisor. Persisted
// settings are overlaid on cfg.Options.
func New(ctx context.Context, cfg Config) (*Launcher, error) {
	logger := common.GetLogger().WithComponent("launcher")

	var st *store.Store
	opts := cfg.Options
	if !cfg.Store.Disabled {
		var err error
		st, err = store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if opts, err = st.LoadOptions(ctx, opts); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	sink, err := logsink.Open(cfg.Log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	supOpts := []supervisor.Option{
		supervisor.WithGracePeriod(cfg.Supervisor.GracePeriod),
		supervisor.WithOutputEncoding(cfg.OutputEncoding),
	}
	if cfg.Supervisor.KillTree != nil {
		supOpts = append(supOpts, supervisor.WithKillTree(*cfg.Supervisor.KillTree))
	}
	if st != nil {
		supOpts = append(supOpts, supervisor.WithRunObserver(st.Observer()))
	}
	for _, fn := range cfg.Observers {
		supOpts = append(supOpts, supervisor.WithRunObserver(fn))
	}
	sup := supervisor.New(sink, supOpts...)

	logger.Info("launcher ready", "log", sink.Path(), "store", st != nil)
	return &Launcher{
		Sink:       sink,
		Supervisor: sup,
		Sender:     sender.New(opts, sup, sink),
		Store:      st,
	}, nil
}

// Send queues req as a crawl. A crawl already running is superseded.
func (l *Launcher) Send(req *Request) (*Run, error) {
	return l.Sender.Send(req)
}

// Close supersedes the current run, then closes the log and the store.
func (l *Launcher) Close(ctx context.Context) error {
	return errors.Join(
		l.Supervisor.Close(ctx),
		l.Sink.Close(),
		l.Store.Close(),
	)
}

// LoadOptions overlays the settings persisted in the store described by cfg
// onto base. A disabled store returns base unchanged.
func LoadOptions(ctx context.Context, cfg StoreConfig, base Options) (Options, error) {
	if cfg.Disabled {
		return base, nil
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return base, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	return st.LoadOptions(ctx, base)
}

// OpenStore opens the store described by cfg.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.Disabled {
		return nil, errors.New("store is disabled")
	}
	return store.Open(ctx, cfg)
}
