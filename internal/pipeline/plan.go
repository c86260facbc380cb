// Package pipeline decides which of the seven stages run, in which order and
// on what inputs, then drives them one after another through a dispatch
// target.
package pipeline

import (
	"fmt"

	"expgram/internal/binary"
	"expgram/internal/command"
	"expgram/internal/resource"
	"expgram/internal/stage"
)

// Window is the inclusive range of stage ordinals to execute.
type Window struct {
	First stage.Kind
	Last  stage.Kind
}

// FullWindow covers every stage.
var FullWindow = Window{First: stage.First, Last: stage.Last}

// Validate checks 1 <= First <= Last <= 7.
func (w Window) Validate() error {
	if !w.First.Valid() {
		return fmt.Errorf("first step %d out of range %d..%d", w.First, stage.First, stage.Last)
	}
	if !w.Last.Valid() {
		return fmt.Errorf("last step %d out of range %d..%d", w.Last, stage.First, stage.Last)
	}
	if w.First > w.Last {
		return fmt.Errorf("first step %d is after last step %d", w.First, w.Last)
	}
	return nil
}

// Contains reports whether k falls inside the window.
func (w Window) Contains(k stage.Kind) bool {
	return w.First <= k && k <= w.Last
}

// Config is the validated description of one build.
type Config struct {
	RunID          string
	Output         string
	Corpus         stage.Corpus
	Vocab          stage.VocabPolicy
	Order          int
	Tokenizer      string
	RemoveUnk      bool
	EraseTemporary bool
	Window         Window
	Policy         resource.Policy
	Mode           resource.Mode
}

// Status is what the runner will do with a step.
type Status int

const (
	Run Status = iota
	SkippedWindow
	SkippedSource
	PassThrough
	NotSelected
)

func (s Status) String() string {
	switch s {
	case Run:
		return "run"
	case SkippedWindow:
		return "skipped (window)"
	case SkippedSource:
		return "skipped (counts supplied)"
	case PassThrough:
		return "pass-through"
	case NotSelected:
		return "not selected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Step is one planned stage.
type Step struct {
	Kind     stage.Kind
	Status   Status
	Artifact string // what downstream stages read; empty when nothing is produced
	Log      string
	Command  command.Command
}

// HasCommand reports whether the step invokes an external program.
func (s Step) HasCommand() bool {
	return s.Status == Run || s.Status == SkippedWindow
}

// Plan is the full, ordered set of steps for a configuration.
type Plan struct {
	RunID string
	Mode  resource.Mode
	Steps []Step
}

// Runnable returns the steps that will execute.
func (p Plan) Runnable() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Status == Run {
			out = append(out, s)
		}
	}
	return out
}

// Context returns the command context every stage of cfg shares.
func (cfg Config) Context(bins binary.Set) stage.Context {
	return stage.Context{
		Binaries:  bins,
		Output:    cfg.Output,
		Corpus:    cfg.Corpus,
		Vocab:     stage.VocabularyPath(cfg.Output, cfg.Vocab),
		Tokenizer: cfg.Tokenizer,
		Order:     cfg.Order,
		RemoveUnk: cfg.RemoveUnk,
		Policy:    cfg.Policy,
		Mode:      cfg.Mode,
	}
}

// NewPlan computes every step of cfg without touching the filesystem. The
// same configuration always yields the same artifacts and commands.
func NewPlan(cfg Config, bins binary.Set) Plan {
	sc := cfg.Context(bins)
	plan := Plan{RunID: cfg.RunID, Mode: cfg.Mode}
	for _, k := range stage.All() {
		step := Step{
			Kind:     k,
			Status:   statusOf(k, cfg),
			Artifact: k.Artifact(cfg.Output),
			Log:      stage.LogPath(k.Artifact(cfg.Output)),
		}
		switch k {
		case stage.Vocabulary:
			step.Artifact = sc.Vocab
		case stage.Extract:
			if cfg.Corpus.Counts != "" {
				step.Artifact = cfg.Corpus.Counts
				step.Log = ""
			}
		}
		if step.HasCommand() {
			step.Command = stage.Command(k, sc)
		} else if k == stage.Vocabulary {
			step.Log = ""
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

func statusOf(k stage.Kind, cfg Config) Status {
	switch k {
	case stage.Vocabulary:
		switch {
		case cfg.Corpus.Counts != "":
			return SkippedSource
		case !cfg.Vocab.Selected():
			return NotSelected
		case cfg.Vocab.External():
			return PassThrough
		}
	case stage.Extract:
		if cfg.Corpus.Counts != "" {
			return SkippedSource
		}
	}
	if !cfg.Window.Contains(k) {
		return SkippedWindow
	}
	return Run
}
