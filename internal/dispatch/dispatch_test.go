package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"expgram/internal/command"
	"expgram/internal/resource"
)

func shell(script string) command.Command {
	return command.New("/bin/sh").String("-c", script)
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestLocal_CapturesOutputInLog(t *testing.T) {
	log := filepath.Join(t.TempDir(), "out.counts.log")
	target := NewLocal(resource.NewPolicy(2, 8, "", 0, nil))

	err := target.Execute(context.Background(), Job{Name: "extract", Command: shell("echo progress >&2"), Log: log})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readLog(t, log); !strings.Contains(got, "progress") {
		t.Errorf("log = %q, want stderr captured", got)
	}
}

func TestLocal_NonZeroExit(t *testing.T) {
	log := filepath.Join(t.TempDir(), "x.log")
	target := NewLocal(resource.NewPolicy(1, 0, "", 0, nil))

	err := target.Execute(context.Background(), Job{Name: "index", Command: shell("exit 3"), Log: log})
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if ee.Code != 3 || ee.Job != "index" {
		t.Errorf("ExitError = %+v", ee)
	}
}

func TestLocal_MissingBinary(t *testing.T) {
	target := NewLocal(resource.NewPolicy(1, 0, "", 0, nil))
	job := Job{Name: "vocab", Command: command.New(filepath.Join(t.TempDir(), "absent"))}

	var ee *ExitError
	if err := target.Execute(context.Background(), job); !errors.As(err, &ee) || ee.Code != 127 {
		t.Fatalf("error = %v, want exit code 127", err)
	}
}

func TestLocal_PropagatesEnv(t *testing.T) {
	log := filepath.Join(t.TempDir(), "env.log")
	p := resource.NewPolicy(1, 0, "", 0, map[string]string{"TMPDIR_SPEC": "/scratch/lm", "HOME": "/ignored"})
	err := NewLocal(p).Execute(context.Background(), Job{Name: "modify", Command: shell(`echo "spec=$TMPDIR_SPEC" >&2`), Log: log})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readLog(t, log); !strings.Contains(got, "spec=/scratch/lm") {
		t.Errorf("log = %q", got)
	}
}

func TestLauncherArgs(t *testing.T) {
	env := []resource.EnvVar{{Name: "TMPDIR_SPEC", Value: "/s"}, {Name: "LD_LIBRARY_PATH", Value: "/l"}}
	tests := []struct {
		name string
		mode resource.Distributed
		want []string
	}{
		{"hosts win over hostfile", resource.Distributed{Processes: 4, Hosts: "a,b", HostFile: "/h", Launcher: "/opt/mpi/bin/mpirun"},
			[]string{"/opt/mpi/bin/mpirun", "--np", "4", "--host", "a,b", "-x", "TMPDIR_SPEC", "-x", "LD_LIBRARY_PATH"}},
		{"hostfile", resource.Distributed{HostFile: "/etc/hosts.mpi"},
			[]string{"mpirun", "--hostfile", "/etc/hosts.mpi", "-x", "TMPDIR_SPEC", "-x", "LD_LIBRARY_PATH"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, LauncherArgs(tt.mode, env)); diff != "" {
				t.Errorf("LauncherArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDistributed_WrapsCommand(t *testing.T) {
	dir := t.TempDir()
	launcher := filepath.Join(dir, "mpirun")
	if err := os.WriteFile(launcher, []byte("#!/bin/sh\necho \"$@\" >&2\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	log := filepath.Join(dir, "out.index.log")
	p := resource.NewPolicy(1, 0, "", 0, map[string]string{"TMPDIR_SPEC": "/s"})
	target := NewDistributed(resource.Distributed{Processes: 8, Launcher: launcher}, p)

	cmd := command.New("/x/expgram_counts_index_mpi").Path("--ngram", "/o.counts").Raw("--prog", "/x/expgram_counts_index_mpi")
	if err := target.Execute(context.Background(), Job{Name: "index", Command: cmd, Log: log}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "--np 8 -x TMPDIR_SPEC /x/expgram_counts_index_mpi --ngram /o.counts --prog /x/expgram_counts_index_mpi"
	if got := strings.TrimSpace(readLog(t, log)); got != want {
		t.Errorf("launcher saw %q\nwant %q", got, want)
	}
}

func TestJobScript_Distributed(t *testing.T) {
	p := resource.NewPolicy(4, 0.5, "", 0, map[string]string{"LD_LIBRARY_PATH": "/opt/lib"})
	m := resource.Batched{
		Queue:   "ltg",
		WorkDir: "/work/lm",
		Inner:   resource.Distributed{Processes: 6, HostFile: "/h/my hosts", Launcher: "/opt/mpi/bin/mpirun"},
	}
	job := Job{
		Name:    "estimate",
		RunID:   "run-1",
		Command: command.New("/x/expgram_counts_estimate_mpi").Path("--ngram", "/o.modified"),
		Log:     "/o.estimated.log",
	}

	want := `#!/bin/sh
#PBS -N estimate
#PBS -W block=true
#PBS -e /dev/null
#PBS -o /dev/null
#PBS -q ltg
#PBS -l select=6:ncpus=2:mpiprocs=1:mem=500mb
#PBS -l place=scatter
# expgram run run-1
export LD_LIBRARY_PATH="/opt/lib"
cd "/work/lm"
/opt/mpi/bin/mpirun --np 6 --hostfile "/h/my hosts" -x LD_LIBRARY_PATH /x/expgram_counts_estimate_mpi --ngram "/o.modified" 2> "/o.estimated.log"
`
	if diff := cmp.Diff(want, JobScript(job, m, p)); diff != "" {
		t.Errorf("JobScript mismatch (-want +got):\n%s", diff)
	}
}

func TestJobScript_DistributedMatchesDirectLaunch(t *testing.T) {
	p := resource.NewPolicy(2, 1, "", 0, map[string]string{"LD_LIBRARY_PATH": "/opt/lib", "TMPDIR": "/tmp/x"})
	d := resource.Distributed{Processes: 4, Hosts: "n1,n2"}
	job := Job{Name: "index", Command: command.New("/x/expgram_counts_index_mpi"), Log: "/o.log"}

	got := JobScript(job, resource.Batched{Inner: d}, p)
	want := strings.Join(LauncherArgs(d, p.Env()), " ") + " /x/expgram_counts_index_mpi 2> \"/o.log\"\n"
	if want != "mpirun --np 4 --host n1,n2 -x TMPDIR -x LD_LIBRARY_PATH /x/expgram_counts_index_mpi 2> \"/o.log\"\n" {
		t.Fatalf("unexpected direct launch prefix %q", want)
	}
	if !strings.HasSuffix(got, want) {
		t.Errorf("batch script should wrap the command like a direct launch:\n%s", got)
	}
}

func TestJobScript_Local(t *testing.T) {
	p := resource.NewPolicy(8, 16, "", 0, nil)
	m := resource.Batched{Inner: resource.Local{Threads: 8}}
	got := JobScript(Job{Name: "vocab", Command: command.New("/x/expgram_vocab")}, m, p)

	if !strings.Contains(got, "#PBS -l select=1:ncpus=8:mpiprocs=1:mem=16gb\n") {
		t.Errorf("missing local resource line:\n%s", got)
	}
	if strings.Contains(got, "#PBS -q") || strings.Contains(got, "place=scatter") {
		t.Errorf("unexpected queue or placement line:\n%s", got)
	}
	if !strings.HasSuffix(got, "/x/expgram_vocab\n") {
		t.Errorf("command line should be last:\n%s", got)
	}
}

func TestMemorySpec(t *testing.T) {
	tests := []struct {
		gb   float64
		want string
	}{
		{0, ""},
		{0.0005, ":mem=500kb"},
		{0.25, ":mem=250mb"},
		{1, ":mem=1gb"},
		{8.7, ":mem=8gb"},
	}
	for _, tt := range tests {
		if got := MemorySpec(tt.gb); got != tt.want {
			t.Errorf("MemorySpec(%v) = %q, want %q", tt.gb, got, tt.want)
		}
	}
}

func TestBatched_SubmitsScriptAndWaits(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "out.modified.log")
	m := resource.Batched{Submitter: []string{"/bin/sh"}, WorkDir: dir, Inner: resource.Local{Threads: 2}}
	target := NewBatched(m, resource.NewPolicy(2, 1, "", 0, nil))

	err := target.Execute(context.Background(), Job{Name: "modify", Command: shell("echo queued >&2; exit 5"), Log: log})
	var ee *ExitError
	if !errors.As(err, &ee) || ee.Code != 5 {
		t.Fatalf("error = %v, want exit code 5", err)
	}
	if got := readLog(t, log); !strings.Contains(got, "queued") {
		t.Errorf("log = %q", got)
	}
}

type fakeTarget struct {
	err  error
	jobs []string
}

func (f *fakeTarget) Execute(_ context.Context, job Job) error {
	f.jobs = append(f.jobs, job.Name)
	return f.err
}

func TestExecution_Lifecycle(t *testing.T) {
	ok := NewExecution(Job{Name: "quantize"})
	if ok.State() != Idle {
		t.Fatalf("initial state = %s", ok.State())
	}
	if err := ok.Run(context.Background(), &fakeTarget{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ok.State() != Completed {
		t.Errorf("state = %s, want completed", ok.State())
	}
	if err := ok.Run(context.Background(), &fakeTarget{}); err == nil {
		t.Error("re-running a completed execution should fail")
	}

	boom := &ExitError{Job: "backward", Code: 2}
	bad := NewExecution(Job{Name: "backward"})
	if err := bad.Run(context.Background(), &fakeTarget{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("Run error = %v", err)
	}
	if bad.State() != Failed || bad.Err() != boom {
		t.Errorf("state = %s err = %v", bad.State(), bad.Err())
	}
}

func TestForMode(t *testing.T) {
	p := resource.NewPolicy(1, 0, "", 0, nil)
	tests := []struct {
		mode    resource.Mode
		want    string
		wantErr bool
	}{
		{resource.Local{Threads: 2}, "*dispatch.LocalTarget", false},
		{resource.Distributed{Processes: 2}, "*dispatch.DistributedTarget", false},
		{resource.Batched{Inner: resource.Local{}}, "*dispatch.BatchedTarget", false},
		{resource.Batched{Inner: resource.Batched{}}, "", true},
		{nil, "", true},
	}
	for _, tt := range tests {
		target, err := ForMode(tt.mode, p)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ForMode(%#v) should fail", tt.mode)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForMode(%#v): %v", tt.mode, err)
			continue
		}
		if got := typeName(target); got != tt.want {
			t.Errorf("ForMode(%#v) = %s, want %s", tt.mode, got, tt.want)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *LocalTarget:
		return "*dispatch.LocalTarget"
	case *DistributedTarget:
		return "*dispatch.DistributedTarget"
	case *BatchedTarget:
		return "*dispatch.BatchedTarget"
	default:
		return "?"
	}
}
