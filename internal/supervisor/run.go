package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/loykin/crawlsend/internal/drain"
)

// State is the supervisor's process slot state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the lifecycle status of one run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusExited     Status = "exited"
	StatusFailed     Status = "failed"
	StatusSuperseded Status = "superseded"
)

// Concluded reports whether the status is final.
func (s Status) Concluded() bool {
	return s == StatusExited || s == StatusFailed || s == StatusSuperseded
}

// RunResult is a point in time view of a run.
type RunResult struct {
	ID          string         `json:"id"`
	Argv        []string       `json:"argv"`
	Status      Status         `json:"status"`
	ExitCode    int            `json:"exit_code"`
	Err         error          `json:"-"`
	Error       string         `json:"error,omitempty"`
	PID         int            `json:"pid,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   time.Time      `json:"started_at,omitzero"`
	EndedAt     time.Time      `json:"ended_at,omitzero"`
	Summary     *drain.Summary `json:"summary,omitempty"`
}

// Duration is the wall time between start and end, or zero.
func (r RunResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Run is the handle returned by Submit.
type Run struct {
	ID   string
	Argv []string

	done chan struct{}

	mu         sync.Mutex
	result     RunResult
	superseded bool
}

func newRun(id string, argv []string) *Run {
	cp := append([]string(nil), argv...)
	return &Run{
		ID:   id,
		Argv: cp,
		done: make(chan struct{}),
		result: RunResult{
			ID:          id,
			Argv:        cp,
			Status:      StatusPending,
			ExitCode:    -1,
			SubmittedAt: time.Now(),
		},
	}
}

// Done is closed once the run has concluded and its result is final.
func (r *Run) Done() <-chan struct{} { return r.done }

// Result returns the current view of the run.
func (r *Run) Result() RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Wait blocks until the run concludes or ctx is done.
func (r *Run) Wait(ctx context.Context) (RunResult, error) {
	select {
	case <-r.done:
		return r.Result(), nil
	case <-ctx.Done():
		return r.Result(), ctx.Err()
	}
}

func (r *Run) setRunning(pid int, at time.Time) {
	r.mu.Lock()
	r.result.Status = StatusRunning
	r.result.PID = pid
	r.result.StartedAt = at
	r.mu.Unlock()
}

func (r *Run) markSuperseded() {
	r.mu.Lock()
	r.superseded = true
	r.mu.Unlock()
}

// finish records the final result. The caller closes done afterwards.
func (r *Run) finish(status Status, exitCode int, err error, summary *drain.Summary) RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.superseded && status != StatusFailed {
		status = StatusSuperseded
	}
	r.result.Status = status
	r.result.ExitCode = exitCode
	r.result.Err = err
	if err != nil {
		r.result.Error = err.Error()
	}
	r.result.EndedAt = time.Now()
	r.result.Summary = summary
	return r.result
}
