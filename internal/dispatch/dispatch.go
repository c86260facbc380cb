// Package dispatch runs one stage command under an execution mode. It
// implements the Strategy pattern: a Target per mode (local process,
// message-passing launcher, batch queue), all blocking until the child is
// done and all reporting failure the same way.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"expgram/internal/command"
	"expgram/internal/resource"
)

// Job is one dispatched command.
type Job struct {
	Name    string          // stage name; also the batch job name
	RunID   string          // identifies the pipeline run in logs and job scripts
	Command command.Command // the stage invocation
	Log     string          // file receiving the child's diagnostics
}

// Target executes a job and blocks until it terminates. A non-nil error is
// an *ExitError when the child ran and failed.
type Target interface {
	Execute(ctx context.Context, job Job) error
}

// ForMode returns the Target for m.
func ForMode(m resource.Mode, p resource.Policy) (Target, error) {
	switch m := m.(type) {
	case resource.Local:
		return NewLocal(p), nil
	case resource.Distributed:
		return NewDistributed(m, p), nil
	case resource.Batched:
		switch m.Inner.(type) {
		case resource.Local, resource.Distributed:
		default:
			return nil, fmt.Errorf("batched mode must wrap local or distributed execution, got %T", m.Inner)
		}
		return NewBatched(m, p), nil
	default:
		return nil, fmt.Errorf("unsupported execution mode %T", m)
	}
}

// State is the lifecycle of one Execution.
type State int

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Execution records a job's passage through Idle -> Running -> Completed|Failed.
type Execution struct {
	Job      Job
	state    State
	err      error
	started  time.Time
	finished time.Time
}

// NewExecution returns an idle execution for job.
func NewExecution(job Job) *Execution {
	return &Execution{Job: job}
}

// State returns the current state.
func (e *Execution) State() State { return e.state }

// Err returns the failure, if any.
func (e *Execution) Err() error { return e.err }

// Duration is the wall time between start and finish.
func (e *Execution) Duration() time.Duration {
	if e.finished.IsZero() {
		return 0
	}
	return e.finished.Sub(e.started)
}

func (e *Execution) transition(to State) error {
	ok := false
	switch e.state {
	case Idle:
		ok = to == Running
	case Running:
		ok = to == Completed || to == Failed
	}
	if !ok {
		return fmt.Errorf("job %s: illegal transition %s -> %s", e.Job.Name, e.state, to)
	}
	e.state = to
	return nil
}

// Run executes the job on t, moving through Running to Completed or Failed.
func (e *Execution) Run(ctx context.Context, t Target) error {
	if err := e.transition(Running); err != nil {
		return err
	}
	e.started = time.Now()
	err := t.Execute(ctx, e.Job)
	e.finished = time.Now()
	if err != nil {
		e.err = err
		_ = e.transition(Failed)
		return err
	}
	return e.transition(Completed)
}
