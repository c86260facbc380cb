package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"expgram/internal/logging"
	"expgram/internal/resource"
)

// LocalTarget runs the command directly on this host.
type LocalTarget struct {
	env []resource.EnvVar
	log *slog.Logger
}

// NewLocal creates a local target propagating p's environment.
func NewLocal(p resource.Policy) *LocalTarget {
	return &LocalTarget{env: p.Env(), log: logging.New("dispatch")}
}

// Execute runs job with stdout and stderr appended to the job log.
func (t *LocalTarget) Execute(ctx context.Context, job Job) error {
	argv := job.Command.Argv()
	t.log.Debug("local exec", "job", job.Name, "run_id", job.RunID, "command", job.Command.Render())
	return exitError(job, spawn(ctx, argv, t.env, job.Log, nil))
}

// spawn runs argv, sending its output to logPath (or discarding it when
// logPath is empty), and blocks until it exits.
func spawn(ctx context.Context, argv []string, env []resource.EnvVar, logPath string, stdin io.Reader) error {
	var out io.Writer = io.Discard
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("create log %s: %w", logPath, err)
		}
		defer f.Close()
		out = f
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = out
	cmd.Stderr = out
	if len(env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), env)
	}
	return cmd.Run()
}

// mergeEnv overrides entries of base with vars.
func mergeEnv(base []string, vars []resource.EnvVar) []string {
	out := make([]string, 0, len(base)+len(vars))
	override := make(map[string]bool, len(vars))
	for _, v := range vars {
		override[v.Name] = true
	}
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if !override[name] {
			out = append(out, kv)
		}
	}
	for _, v := range vars {
		out = append(out, v.Name+"="+v.Value)
	}
	return out
}
