package dispatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// ExitError reports a dispatched command that exited non-zero or abnormally.
type ExitError struct {
	Job  string
	Code int
	Log  string
	Err  error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed with exit code %d", e.Job, e.Code)
	if e.Log != "" {
		msg += " (see " + e.Log + ")"
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError converts the result of running a child into an *ExitError,
// following the shell's conventions for children that never started.
func exitError(job Job, err error) error {
	if err == nil {
		return nil
	}
	code := 1
	var ee *exec.ExitError
	switch {
	case errors.As(err, &ee):
		if c := ee.ExitCode(); c > 0 {
			code = c
		}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		code = 127
	case errors.Is(err, fs.ErrPermission):
		code = 126
	}
	return &ExitError{Job: job.Name, Code: code, Log: job.Log, Err: err}
}
