// Package supervisor owns the single crawler process slot. Runs are executed
// one at a time in arrival order; a newly submitted run supersedes the one in
// progress.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/drain"
	"github.com/loykin/crawlsend/internal/logsink"
	"github.com/loykin/crawlsend/internal/util"
)

// ErrClosed is reported for runs submitted to, or left queued in, a closed
// supervisor.
var ErrClosed = errors.New("supervisor closed")

var errEmptyCommand = errors.New("empty command")

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithGracePeriod bounds how long a superseded run may take to exit before
// the next run starts anyway.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithKillTree controls whether descendants of a superseded process are
// killed as well. Enabled by default.
func WithKillTree(enabled bool) Option {
	return func(s *Supervisor) { s.killTree = enabled }
}

// WithOutputEncoding decodes process output from the named encoding. An
// empty name keeps the default, UTF-8.
func WithOutputEncoding(name string) Option {
	return func(s *Supervisor) { s.encoding = util.TrimWithDefault(name, constants.DefaultOutputCharset) }
}

// WithRunObserver registers fn to be called once for every concluded run,
// before the run's Done channel is closed.
func WithRunObserver(fn func(RunResult)) Option {
	return func(s *Supervisor) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *common.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// Supervisor runs crawler commands through a single worker goroutine.
type Supervisor struct {
	sink      logsink.Sink
	grace     time.Duration
	killTree  bool
	encoding  string
	observers []func(RunResult)
	logger    *common.Logger

	mu      sync.Mutex
	queue   []*Run
	closed  bool
	state   State
	current *Run

	notify  chan struct{}
	stopped chan struct{}
}

// active is the worker's process slot.
type active struct {
	run *Run
	cmd *exec.Cmd
}

// New starts a supervisor that logs to sink.
func New(sink logsink.Sink, opts ...Option) *Supervisor {
	if sink == nil {
		sink = logsink.Discard
	}
	s := &Supervisor{
		sink:     sink,
		grace:    constants.DefaultGracePeriod,
		encoding: constants.DefaultOutputCharset,
		killTree: true,
		logger:   common.GetLogger(),
		notify:   make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("supervisor")
	go s.loop()
	return s
}

// Submit queues argv for execution and returns immediately.
func (s *Supervisor) Submit(argv []string) *Run {
	run := newRun(uuid.NewString(), argv)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		run.finish(StatusFailed, -1, ErrClosed, nil)
		close(run.done)
		return run
	}
	s.queue = append(s.queue, run)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return run
}

// State returns the slot state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the run occupying the slot, if any.
func (s *Supervisor) Current() (RunResult, bool) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return RunResult{}, false
	}
	return cur.Result(), true
}

// Pending returns how many runs are queued behind the current one.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting runs, supersedes the current one and waits for the
// worker to exit.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) loop() {
	defer close(s.stopped)

	var cur *active
	for {
		var done <-chan struct{}
		if cur != nil {
			done = cur.run.done
		}

		select {
		case <-done:
			s.release(cur.run)
			cur = nil
		case <-s.notify:
		}

		for {
			run, closed := s.next()
			if closed {
				if cur != nil {
					s.supersede(cur)
					s.release(cur.run)
				}
				s.cancelPending()
				return
			}
			if run == nil {
				break
			}
			if cur != nil {
				s.supersede(cur)
				s.release(cur.run)
				cur = nil
			}
			cur = s.start(run)
		}
	}
}

func (s *Supervisor) next() (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, true
	}
	if len(s.queue) == 0 {
		return nil, false
	}
	run := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return run, false
}

func (s *Supervisor) cancelPending() {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, run := range pending {
		s.conclude(run, run.finish(StatusSuperseded, -1, ErrClosed, nil))
	}
}

func (s *Supervisor) setSlot(state State, run *Run) {
	s.mu.Lock()
	s.state = state
	s.current = run
	s.mu.Unlock()
}

func (s *Supervisor) release(run *Run) {
	s.mu.Lock()
	if s.current == run {
		s.current = nil
	}
	s.state = StateIdle
	s.mu.Unlock()
}

// start spawns run. It returns nil when the process could not be started.
func (s *Supervisor) start(run *Run) *active {
	s.setSlot(StateStarting, run)
	log := s.logger.WithRun(run.ID)

	name, args, err := splitArgv(run.Argv)
	if err != nil {
		s.spawnFailed(run, err)
		return nil
	}

	// stdout and stderr share one pipe so output keeps the order the process
	// wrote it in, and Wait does not depend on the reader.
	pr, pw, err := os.Pipe()
	if err != nil {
		s.spawnFailed(run, fmt.Errorf("create output pipe: %w", err))
		return nil
	}
	cmd := exec.Command(name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		s.spawnFailed(run, err)
		return nil
	}
	_ = pw.Close()

	run.setRunning(cmd.Process.Pid, time.Now())
	s.setSlot(StateRunning, run)
	log.Info("process started", "pid", cmd.Process.Pid, "argv", s.maskedCommand(run.Argv))

	collector := drain.NewResultCollector()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		defer func() { _ = pr.Close() }()
		var r io.Reader = pr
		if dr, err := drain.NewDecodingReader(pr, s.encoding); err != nil {
			log.Warn("output decoding disabled", "error", err)
		} else {
			r = dr
		}
		if err := drain.Drain(r, s.sink, collector.Observe); err != nil {
			log.Warn("output drain stopped", "error", err)
			// keep the pipe open until the process closes its end
			_, _ = io.Copy(io.Discard, pr)
		}
	}()

	go s.wait(run, cmd, drained, collector)
	return &active{run: run, cmd: cmd}
}

// maskedCommand renders argv for diagnostics with header secrets masked.
func (s *Supervisor) maskedCommand(argv []string) string {
	m := s.logger.GetMasker()
	if m == nil {
		m = common.GetGlobalMasker()
	}
	return strings.Join(m.MaskArgv(argv), " ")
}

func (s *Supervisor) spawnFailed(run *Run, err error) {
	s.sink.Error("execution error: " + err.Error())
	s.logger.WithRun(run.ID).Error("spawn failed", "error", err)
	s.conclude(run, run.finish(StatusFailed, -1, err, nil))
	s.release(run)
}

// wait is the per-run waiter. It reports the exit status and concludes the
// run once output has been drained or the grace period has passed.
func (s *Supervisor) wait(run *Run, cmd *exec.Cmd, drained <-chan struct{}, collector *drain.ResultCollector) {
	err := cmd.Wait()
	code := -1
	status := StatusExited
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
		s.sink.Info(fmt.Sprintf("process exit code: %d", code))
		err = nil
	} else if err != nil {
		s.sink.Error("execution error: " + err.Error())
		status = StatusFailed
	}

	timer := time.NewTimer(s.grace)
	select {
	case <-drained:
	case <-timer.C:
		s.logger.WithRun(run.ID).Warn("output still open after exit", "grace", s.grace)
	}
	timer.Stop()

	res := run.finish(status, code, err, collector.Summary())
	s.logger.WithRun(run.ID).Info("process exited", "status", res.Status, "exit_code", code, "duration", res.Duration())
	s.conclude(run, res)
}

func (s *Supervisor) conclude(run *Run, res RunResult) {
	for _, fn := range s.observers {
		fn(res)
	}
	close(run.done)
}

// supersede kills the process in a and waits, at most the grace period, for
// its waiter to conclude the run.
func (s *Supervisor) supersede(a *active) {
	select {
	case <-a.run.done:
		return
	default:
	}

	log := s.logger.WithRun(a.run.ID)
	a.run.markSuperseded()
	log.Info("superseding running process", "pid", a.cmd.Process.Pid)

	if err := s.kill(a.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug("kill failed", "error", err)
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-a.run.done:
	case <-timer.C:
		log.Warn("superseded process did not exit within grace period", "grace", s.grace)
	}
}

func (s *Supervisor) kill(p *os.Process) error {
	if s.killTree {
		if err := killTree(p.Pid); err == nil {
			return nil
		}
	}
	return p.Kill()
}

// splitArgv returns the executable and its arguments. A quoted executable
// (as produced for paths with spaces) is unquoted, exec does its own quoting.
func splitArgv(argv []string) (string, []string, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return "", nil, errEmptyCommand
	}
	name := argv[0]
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		name = name[1 : len(name)-1]
	}
	return name, argv[1:], nil
}
