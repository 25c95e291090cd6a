// Package sender turns a selected request into a supervised crawler run.
package sender

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/loykin/crawlsend/internal/command"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/headers"
	"github.com/loykin/crawlsend/internal/logsink"
	"github.com/loykin/crawlsend/internal/request"
	"github.com/loykin/crawlsend/internal/supervisor"
	"github.com/loykin/crawlsend/internal/util"
)

var (
	// ErrNoRequest means nothing was selected.
	ErrNoRequest = errors.New("no request selected")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// Options are the operator settings. The mapstructure keys are the persisted
// setting names.
type Options struct {
	ExecutablePath string `mapstructure:"exePath" yaml:"executable" json:"exePath"`
	ChromePath     string `mapstructure:"chromePath" yaml:"chrome_path" json:"chromePath"`
	CustomHeaders  string `mapstructure:"headers" yaml:"custom_headers" json:"headers"`
	ExtraArgs      string `mapstructure:"extraArgs" yaml:"extra_args" json:"extraArgs"`
	PostData       string `mapstructure:"postData" yaml:"post_data" json:"postData"`
	// AuthOnly forwards only Cookie and Authorization request headers.
	AuthOnly bool `mapstructure:"authOnly" yaml:"auth_only" json:"authOnly"`
}

// Submitter is the part of the supervisor the sender needs.
type Submitter interface {
	Submit(argv []string) *supervisor.Run
}

// Prepared is everything derived from a request before it is submitted.
type Prepared struct {
	Headers *headers.Set
	Argv    []string
}

// Display is the command line as written to the run log.
func (p *Prepared) Display() string { return command.Display(p.Argv) }

// Sender assembles crawler commands and hands them to the supervisor.
type Sender struct {
	mu     sync.RWMutex
	opts   Options
	sup    Submitter
	sink   logsink.Sink
	logger *common.Logger
}

// New returns a Sender using opts.
func New(opts Options, sup Submitter, sink logsink.Sink) *Sender {
	if sink == nil {
		sink = logsink.Discard
	}
	return &Sender{
		opts:   opts,
		sup:    sup,
		sink:   sink,
		logger: common.GetLogger().WithComponent("sender"),
	}
}

// Options returns the options in use.
func (s *Sender) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// SetOptions replaces the options used for later sends.
func (s *Sender) SetOptions(opts Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}

// Prepare validates req, merges headers and builds the command line. It has
// no side effects.
func (s *Sender) Prepare(req *request.Request) (*Prepared, error) {
	if req == nil {
		return nil, ErrNoRequest
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	opts := s.Options()
	util.TrimStructFields(&opts)

	reqHeaders := req.Headers
	if opts.AuthOnly {
		reqHeaders = req.AuthHeaders()
	}
	set := headers.Merge(reqHeaders, opts.CustomHeaders)

	argv := command.Build(command.Options{
		ExecutablePath: util.TrimWithDefault(opts.ExecutablePath, constants.DefaultExecutable),
		ChromePath:     opts.ChromePath,
		ExtraArgs:      opts.ExtraArgs,
		PostData:       opts.PostData,
	}, set.EmbeddedJSON(), strings.TrimSpace(req.URL))

	return &Prepared{Headers: set, Argv: argv}, nil
}

// Send prepares req, logs the command and submits it. It returns as soon as
// the run is queued.
func (s *Sender) Send(req *request.Request) (*supervisor.Run, error) {
	p, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}
	s.sink.Command(p.Display())
	run := s.sup.Submit(p.Argv)
	s.logger.WithRun(run.ID).WithTarget(req.URL).Info("crawl submitted",
		"method", req.Method, "headers", p.Headers.Len(), "cookie", cookieOf(p.Headers))
	return run, nil
}

func cookieOf(set *headers.Set) string {
	v, _ := set.Get("Cookie")
	return v
}
