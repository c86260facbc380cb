// Package resource holds the per-run resource policy and the execution mode
// every stage and dispatcher receives. Both are plain values built once by the
// configuration layer and never mutated afterwards.
package resource

import (
	"maps"
	"strconv"
)

// PropagatedEnv lists the environment variables forwarded to distributed
// launches and batch job scripts, in the order they are emitted.
var PropagatedEnv = []string{"TMPDIR", "TMPDIR_SPEC", "LD_LIBRARY_PATH", "DYLD_LIBRARY_PATH"}

// Policy is the read-only resource policy shared by all stages of a run.
type Policy struct {
	Threads   int     // threads (local) or cpus per node (batch)
	MaxMalloc float64 // memory ceiling in GB; 0 = unbounded
	TempDir   string  // passed as --temporary when set
	Debug     int     // verbosity handed to the external tools
	env       map[string]string
}

// NewPolicy copies env so later changes to the caller's map are not observed.
// Only whitelisted variables are retained.
func NewPolicy(threads int, maxMalloc float64, tempDir string, debug int, env map[string]string) Policy {
	kept := make(map[string]string, len(PropagatedEnv))
	for _, name := range PropagatedEnv {
		if v, ok := env[name]; ok {
			kept[name] = v
		}
	}
	return Policy{
		Threads:   threads,
		MaxMalloc: maxMalloc,
		TempDir:   tempDir,
		Debug:     debug,
		env:       kept,
	}
}

// Env returns the propagated variables as name/value pairs in whitelist order.
func (p Policy) Env() []EnvVar {
	var out []EnvVar
	for _, name := range PropagatedEnv {
		if v, ok := p.env[name]; ok {
			out = append(out, EnvVar{Name: name, Value: v})
		}
	}
	return out
}

// EnvMap returns a copy of the propagated variables.
func (p Policy) EnvMap() map[string]string {
	return maps.Clone(p.env)
}

// EnvVar is one propagated environment variable.
type EnvVar struct {
	Name  string
	Value string
}

// Mode is the tagged execution-mode variant. The concrete types are Local,
// Distributed and Batched; consumers dispatch with a type switch.
type Mode interface {
	mode()
}

// Local runs a stage as a multi-threaded process on this host.
type Local struct {
	Threads int
}

// Distributed runs a stage under the message-passing launcher.
type Distributed struct {
	Processes int    // --np; 0 lets the launcher decide
	Hosts     string // comma separated host list, exclusive with HostFile
	HostFile  string // absolute path of a launcher host file
	Launcher  string // launcher executable (mpirun)
}

// Batched submits a stage to a batch queue. Inner is Local or Distributed.
type Batched struct {
	Queue     string
	Submitter []string // command reading the job script on stdin
	WorkDir   string
	Inner     Mode
}

func (Local) mode()       {}
func (Distributed) mode() {}
func (Batched) mode()     {}

// IsDistributed reports whether commands must use the distributed binaries,
// looking through a Batched wrapper.
func IsDistributed(m Mode) bool {
	switch m := m.(type) {
	case Distributed:
		return true
	case Batched:
		return IsDistributed(m.Inner)
	default:
		return false
	}
}

// DistributedOf returns the Distributed settings of m, if any.
func DistributedOf(m Mode) (Distributed, bool) {
	switch m := m.(type) {
	case Distributed:
		return m, true
	case Batched:
		return DistributedOf(m.Inner)
	default:
		return Distributed{}, false
	}
}

// Describe returns a short human label, e.g. "batched(ltg)/distributed(np=8)".
func Describe(m Mode) string {
	switch m := m.(type) {
	case Local:
		return "local(threads=" + strconv.Itoa(m.Threads) + ")"
	case Distributed:
		if m.Processes > 0 {
			return "distributed(np=" + strconv.Itoa(m.Processes) + ")"
		}
		return "distributed"
	case Batched:
		return "batched(" + m.Queue + ")/" + Describe(m.Inner)
	default:
		return "unknown"
	}
}
