package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"expgram/internal/command"
	"expgram/internal/logging"
	"expgram/internal/resource"
)

// DefaultSubmitter is the queue front-end; it reads the job script on stdin.
var DefaultSubmitter = []string{"qsub", "-S", "/bin/sh"}

// BatchedTarget submits a job script to a batch queue and blocks until the
// queue reports completion (the script asks for block=true).
type BatchedTarget struct {
	mode   resource.Batched
	policy resource.Policy
	log    *slog.Logger
}

// NewBatched creates a batch-queue target.
func NewBatched(m resource.Batched, p resource.Policy) *BatchedTarget {
	return &BatchedTarget{mode: m, policy: p, log: logging.New("dispatch")}
}

// Execute writes the job script to the submitter's stdin, closes it and
// waits for the submitter to exit.
func (t *BatchedTarget) Execute(ctx context.Context, job Job) error {
	script := JobScript(job, t.mode, t.policy)
	submitter := t.mode.Submitter
	if len(submitter) == 0 {
		submitter = DefaultSubmitter
	}
	t.log.Debug("batch submit", "job", job.Name, "run_id", job.RunID, "queue", t.mode.Queue, "submitter", submitter[0])

	// The job itself writes job.Log; the submitter's own chatter is dropped.
	err := spawn(ctx, submitter, nil, "", strings.NewReader(script))
	return exitError(job, err)
}

// JobScript renders the batch job script for job.
func JobScript(job Job, m resource.Batched, p resource.Policy) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "#!/bin/sh\n")
	fmt.Fprintf(&b, "#PBS -N %s\n", job.Name)
	fmt.Fprintf(&b, "#PBS -W block=true\n")
	fmt.Fprintf(&b, "#PBS -e /dev/null\n")
	fmt.Fprintf(&b, "#PBS -o /dev/null\n")
	if m.Queue != "" {
		fmt.Fprintf(&b, "#PBS -q %s\n", m.Queue)
	}

	mem := MemorySpec(p.MaxMalloc)
	line := job.Command.Render()
	switch inner := m.Inner.(type) {
	case resource.Distributed:
		np := inner.Processes
		if np <= 0 {
			np = 1
		}
		fmt.Fprintf(&b, "#PBS -l select=%d:ncpus=2:mpiprocs=1%s\n", np, mem)
		fmt.Fprintf(&b, "#PBS -l place=scatter\n")
		line = Launcher(inner, p.Env()).Render() + " " + line
	case resource.Local:
		threads := inner.Threads
		if threads <= 0 {
			threads = 1
		}
		fmt.Fprintf(&b, "#PBS -l select=1:ncpus=%d:mpiprocs=1%s\n", threads, mem)
	}

	if job.RunID != "" {
		fmt.Fprintf(&b, "# expgram run %s\n", job.RunID)
	}
	for _, v := range p.Env() {
		fmt.Fprintf(&b, "export %s=%s\n", v.Name, command.Quote(v.Value))
	}
	if m.WorkDir != "" {
		fmt.Fprintf(&b, "cd %s\n", command.Quote(m.WorkDir))
	}
	if job.Log != "" {
		line += " 2> " + command.Quote(job.Log)
	}
	fmt.Fprintf(&b, "%s\n", line)
	return b.String()
}

// MemorySpec converts a ceiling in GB into the queue's mem= suffix, choosing
// the largest unit that keeps the amount a whole number above zero.
func MemorySpec(gb float64) string {
	switch {
	case gb <= 0:
		return ""
	case gb < 0.001:
		return fmt.Sprintf(":mem=%dkb", max(1, int(gb*1000*1000)))
	case gb < 1:
		return fmt.Sprintf(":mem=%dmb", int(gb*1000))
	default:
		return fmt.Sprintf(":mem=%dgb", int(gb))
	}
}
