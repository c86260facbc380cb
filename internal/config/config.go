// Package config turns command-line options, an optional options file and the
// process environment into a validated pipeline configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"expgram/internal/binary"
	"expgram/internal/dispatch"
	"expgram/internal/pipeline"
	"expgram/internal/resource"
	"expgram/internal/stage"
)

// Options holds every user-settable knob. Field tags double as the keys of a
// --config file.
type Options struct {
	Corpus     string `json:"corpus,omitempty" yaml:"corpus,omitempty"`
	CorpusList string `json:"corpus-list,omitempty" yaml:"corpus-list,omitempty"`
	Counts     string `json:"counts,omitempty" yaml:"counts,omitempty"`
	CountsList string `json:"counts-list,omitempty" yaml:"counts-list,omitempty"`

	Cutoff int    `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	KBest  int    `json:"kbest,omitempty" yaml:"kbest,omitempty"`
	Vocab  string `json:"vocab,omitempty" yaml:"vocab,omitempty"`

	Order          int    `json:"order,omitempty" yaml:"order,omitempty"`
	Output         string `json:"output,omitempty" yaml:"output,omitempty"`
	Tokenizer      string `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty"`
	RemoveUnk      bool   `json:"remove-unk,omitempty" yaml:"remove-unk,omitempty"`
	EraseTemporary bool   `json:"erase-temporary,omitempty" yaml:"erase-temporary,omitempty"`
	FirstStep      int    `json:"first-step,omitempty" yaml:"first-step,omitempty"`
	LastStep       int    `json:"last-step,omitempty" yaml:"last-step,omitempty"`

	ExpgramDir   string  `json:"expgram-dir,omitempty" yaml:"expgram-dir,omitempty"`
	MPIDir       string  `json:"mpi-dir,omitempty" yaml:"mpi-dir,omitempty"`
	TemporaryDir string  `json:"temporary-dir,omitempty" yaml:"temporary-dir,omitempty"`
	MaxMalloc    float64 `json:"max-malloc,omitempty" yaml:"max-malloc,omitempty"`

	MPI         int    `json:"mpi,omitempty" yaml:"mpi,omitempty"`
	MPIHost     string `json:"mpi-host,omitempty" yaml:"mpi-host,omitempty"`
	MPIHostFile string `json:"mpi-host-file,omitempty" yaml:"mpi-host-file,omitempty"`
	Threads     int    `json:"threads,omitempty" yaml:"threads,omitempty"`
	PBS         bool   `json:"pbs,omitempty" yaml:"pbs,omitempty"`
	PBSQueue    string `json:"pbs-queue,omitempty" yaml:"pbs-queue,omitempty"`

	Debug     int    `json:"debug,omitempty" yaml:"debug,omitempty"`
	EnvFile   string `json:"env-file,omitempty" yaml:"env-file,omitempty"`
	LogFormat string `json:"log-format,omitempty" yaml:"log-format,omitempty"`
}

// Defaults returns the options used when nothing is specified.
func Defaults() Options {
	return Options{
		Cutoff:    1,
		Order:     5,
		FirstStep: int(stage.First),
		LastStep:  int(stage.Last),
		MaxMalloc: 8,
		Threads:   2,
		PBSQueue:  "ltg",
		LogFormat: "text",
	}
}

// Error is a configuration problem detected before any stage runs.
type Error struct {
	Option string // flag name without dashes, empty when several are involved
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Option != "" {
		msg = "--" + e.Option + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "invalid configuration: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(option, format string, args ...any) *Error {
	return &Error{Option: option, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the options against each other and the filesystem.
func (o Options) Validate() error {
	if o.Output == "" {
		return errorf("output", "no output for the language model")
	}
	if o.Counts == "" && o.Corpus == "" && o.CorpusList == "" && o.CountsList == "" {
		return errorf("", "no corpus: one of --corpus, --corpus-list, --counts or --counts-list is required")
	}
	for _, f := range []struct{ option, path string }{
		{"counts", o.Counts},
		{"corpus", o.Corpus},
		{"corpus-list", o.CorpusList},
		{"counts-list", o.CountsList},
		{"vocab", o.Vocab},
		{"tokenizer", o.Tokenizer},
		{"mpi-host-file", o.MPIHostFile},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); err != nil {
			return &Error{Option: f.option, Msg: "no such file " + f.path, Err: err}
		}
	}
	if o.Counts != "" && (o.Corpus != "" || o.CorpusList != "" || o.CountsList != "") {
		return errorf("counts", "counts are supplied, so --corpus, --corpus-list and --counts-list must not be")
	}

	if err := o.vocabPolicy().Check(); err != nil {
		return &Error{Msg: "vocabulary policy", Err: err}
	}
	if err := o.window().Validate(); err != nil {
		return &Error{Msg: "step window", Err: err}
	}
	if o.Order < 1 {
		return errorf("order", "must be positive, got %d", o.Order)
	}
	if o.Threads < 1 {
		return errorf("threads", "must be positive, got %d", o.Threads)
	}
	if o.MPI < 0 {
		return errorf("mpi", "must not be negative, got %d", o.MPI)
	}
	if o.MaxMalloc < 0 {
		return errorf("max-malloc", "must not be negative, got %g", o.MaxMalloc)
	}
	if o.Debug < 0 {
		return errorf("debug", "must not be negative, got %d", o.Debug)
	}
	if o.PBS && o.PBSQueue == "" {
		return errorf("pbs-queue", "required with --pbs")
	}
	return nil
}

func (o Options) vocabPolicy() stage.VocabPolicy {
	return stage.VocabPolicy{Cutoff: o.Cutoff, KBest: o.KBest, File: o.Vocab}
}

func (o Options) window() pipeline.Window {
	return pipeline.Window{First: stage.Kind(o.FirstStep), Last: stage.Kind(o.LastStep)}
}

// Distributed reports whether the options ask for the message-passing launcher.
func (o Options) Distributed() bool {
	return o.MPI > 0 || o.MPIHost != "" || o.MPIHostFile != ""
}

// Build validates o and assembles the pipeline configuration. env holds the
// captured environment (see CaptureEnv).
func (o Options) Build(runID string, env map[string]string) (pipeline.Config, error) {
	if err := o.Validate(); err != nil {
		return pipeline.Config{}, err
	}

	if o.TemporaryDir != "" {
		if info, err := os.Stat(o.TemporaryDir); err != nil || !info.IsDir() {
			return pipeline.Config{}, errorf("temporary-dir", "%s is not a directory", o.TemporaryDir)
		}
		env = withEnv(env, "TMPDIR_SPEC", o.TemporaryDir)
	}
	policy := resource.NewPolicy(o.Threads, o.MaxMalloc, o.TemporaryDir, o.Debug, env)

	mode, err := o.mode()
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		RunID:  runID,
		Output: o.Output,
		Corpus: stage.Corpus{
			File:       o.Corpus,
			List:       o.CorpusList,
			Counts:     o.Counts,
			CountsList: o.CountsList,
		},
		Vocab:          o.vocabPolicy(),
		Order:          o.Order,
		Tokenizer:      o.Tokenizer,
		RemoveUnk:      o.RemoveUnk,
		EraseTemporary: o.EraseTemporary,
		Window:         o.window(),
		Policy:         policy,
		Mode:           mode,
	}, nil
}

func (o Options) mode() (resource.Mode, error) {
	var m resource.Mode = resource.Local{Threads: o.Threads}
	if o.Distributed() {
		launcher, err := binary.Launcher(o.MPIDir)
		if err != nil {
			return nil, &Error{Option: "mpi-dir", Msg: "no launcher", Err: err}
		}
		hostFile := o.MPIHostFile
		if hostFile != "" {
			if abs, err := filepath.Abs(hostFile); err == nil {
				hostFile = abs
			}
			if real, err := filepath.EvalSymlinks(hostFile); err == nil {
				hostFile = real
			}
		}
		m = resource.Distributed{
			Processes: o.MPI,
			Hosts:     o.MPIHost,
			HostFile:  hostFile,
			Launcher:  launcher,
		}
	}
	if o.PBS {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		m = resource.Batched{
			Queue:     o.PBSQueue,
			Submitter: dispatch.DefaultSubmitter,
			WorkDir:   wd,
			Inner:     m,
		}
	}
	return m, nil
}

// Resolver returns the binary resolver for --expgram-dir.
func (o Options) Resolver() (*binary.Resolver, error) {
	r, err := binary.NewResolver(o.ExpgramDir)
	if err != nil {
		return nil, &Error{Option: "expgram-dir", Msg: "cannot search for binaries", Err: err}
	}
	return r, nil
}
