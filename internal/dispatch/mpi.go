package dispatch

import (
	"context"
	"log/slog"

	"expgram/internal/command"
	"expgram/internal/logging"
	"expgram/internal/resource"
)

// DistributedTarget wraps the command with the message-passing launcher.
type DistributedTarget struct {
	mode resource.Distributed
	env  []resource.EnvVar
	log  *slog.Logger
}

// NewDistributed creates a launcher-backed target.
func NewDistributed(m resource.Distributed, p resource.Policy) *DistributedTarget {
	return &DistributedTarget{mode: m, env: p.Env(), log: logging.New("dispatch")}
}

// Launcher returns the launcher prefix as a command: process count, host
// selection and one -x per propagated variable. Local launches and batch
// scripts both wrap the stage command with it.
func Launcher(m resource.Distributed, env []resource.EnvVar) command.Command {
	launcher := m.Launcher
	if launcher == "" {
		launcher = "mpirun"
	}
	cmd := command.New(launcher)
	if m.Processes > 0 {
		cmd = cmd.Int("--np", m.Processes)
	}
	switch {
	case m.Hosts != "":
		cmd = cmd.Raw("--host", m.Hosts)
	case m.HostFile != "":
		cmd = cmd.Path("--hostfile", m.HostFile)
	}
	for _, v := range env {
		cmd = cmd.Raw("-x", v.Name)
	}
	return cmd
}

// LauncherArgs returns the launcher prefix as an argument vector.
func LauncherArgs(m resource.Distributed, env []resource.EnvVar) []string {
	return Launcher(m, env).Argv()
}

// Execute launches job through the launcher and waits for it.
func (t *DistributedTarget) Execute(ctx context.Context, job Job) error {
	argv := append(LauncherArgs(t.mode, t.env), job.Command.Argv()...)
	t.log.Debug("distributed exec", "job", job.Name, "run_id", job.RunID, "np", t.mode.Processes, "argv", argv)
	return exitError(job, spawn(ctx, argv, t.env, job.Log, nil))
}
