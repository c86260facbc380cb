package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"expgram/internal/binary"
	"expgram/internal/dispatch"
	"expgram/internal/logging"
	"expgram/internal/stage"
)

// erasable are the stages whose artifacts --erase-temporary may remove.
var erasable = []stage.Kind{stage.Index, stage.Modify, stage.Estimate}

// Runner executes a plan stage by stage.
type Runner struct {
	cfg    Config
	bins   binary.Set
	target dispatch.Target
	log    *slog.Logger
}

// New creates a runner over already resolved binaries.
func New(cfg Config, bins binary.Set, target dispatch.Target) *Runner {
	return &Runner{
		cfg:    cfg,
		bins:   bins,
		target: target,
		log:    logging.New("pipeline").With("run_id", cfg.RunID),
	}
}

// Setup resolves all fourteen stage binaries and selects the dispatch target
// for cfg's mode. Nothing is executed when either fails.
func Setup(ctx context.Context, cfg Config, resolver *binary.Resolver) (*Runner, error) {
	bins, err := resolver.ResolveAll(ctx, stage.BinaryNames())
	if err != nil {
		return nil, fmt.Errorf("resolve binaries: %w", err)
	}
	target, err := dispatch.ForMode(cfg.Mode, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("select execution target: %w", err)
	}
	return New(cfg, bins, target), nil
}

// Plan returns the steps this runner will walk.
func (r *Runner) Plan() Plan {
	return NewPlan(r.cfg, r.bins)
}

// Result summarises a run.
type Result struct {
	RunID      string
	Executions []*dispatch.Execution
	Removed    []string
	Final      string // artifact of the last executed stage
	Duration   time.Duration
}

// Ran reports whether stage k executed in this run.
func (res *Result) Ran(k stage.Kind) bool {
	for _, e := range res.Executions {
		if e.Job.Name == k.String() {
			return true
		}
	}
	return false
}

// Run executes the runnable steps strictly in order and stops at the first
// failure, returning the partial result together with the error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	plan := r.Plan()
	res := &Result{RunID: r.cfg.RunID}
	start := time.Now()

	r.log.Info("pipeline started", "output", r.cfg.Output, "first", r.cfg.Window.First.Ordinal(), "last", r.cfg.Window.Last.Ordinal())

	for _, step := range plan.Steps {
		if step.Status != Run {
			r.log.Debug("stage not executed", "stage", step.Kind.String(), "status", step.Status.String())
		}
	}

	var ran []Step
	for _, step := range plan.Runnable() {
		exec := dispatch.NewExecution(dispatch.Job{
			Name:    step.Kind.String(),
			RunID:   r.cfg.RunID,
			Command: step.Command,
			Log:     step.Log,
		})
		res.Executions = append(res.Executions, exec)

		r.log.Info("stage started", "stage", step.Kind.String(), "ordinal", step.Kind.Ordinal())
		if err := exec.Run(ctx, r.target); err != nil {
			r.log.Error("stage failed", "stage", step.Kind.String(), "log", step.Log, "error", err)
			res.Duration = time.Since(start)
			return res, fmt.Errorf("stage %s: %w", step.Kind, err)
		}

		if step.Kind == stage.Vocabulary {
			if err := r.filterVocabulary(); err != nil {
				res.Duration = time.Since(start)
				return res, fmt.Errorf("stage %s: %w", step.Kind, err)
			}
		}

		r.log.Info("stage finished", "stage", step.Kind.String(), "artifact", step.Artifact, "duration", exec.Duration())
		ran = append(ran, step)
		res.Final = step.Artifact
	}

	if r.cfg.EraseTemporary {
		res.Removed = r.erase(ran)
	}

	res.Duration = time.Since(start)
	r.log.Info("pipeline finished", "stages", len(ran), "final", res.Final, "duration", res.Duration)
	return res, nil
}

// filterVocabulary turns the raw token counts into the vocabulary Extract
// reads.
func (r *Runner) filterVocabulary() error {
	counts := stage.Vocabulary.Artifact(r.cfg.Output)
	target := stage.VocabularyPath(r.cfg.Output, r.cfg.Vocab)

	in, err := os.Open(counts)
	if err != nil {
		return fmt.Errorf("open vocabulary counts: %w", err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create vocabulary: %w", err)
	}
	n, err := stage.FilterVocabulary(in, out, r.cfg.Vocab)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close vocabulary: %w", cerr)
	}
	if err != nil {
		return err
	}
	r.log.Info("vocabulary written", "path", target, "tokens", n, "policy", r.cfg.Vocab.Describe())
	return nil
}

// erase removes the intermediate artifacts of stages that ran, leaving the
// last executed stage's artifact in place. Removal failures are logged and
// do not fail the run.
func (r *Runner) erase(ran []Step) []string {
	if len(ran) == 0 {
		return nil
	}
	last := ran[len(ran)-1].Kind

	var removed []string
	for _, step := range ran {
		if step.Kind == last || !slices.Contains(erasable, step.Kind) {
			continue
		}
		if err := os.RemoveAll(step.Artifact); err != nil {
			r.log.Warn("erase temporary failed", "stage", step.Kind.String(), "path", step.Artifact, "error", err)
			continue
		}
		r.log.Info("temporary erased", "stage", step.Kind.String(), "path", step.Artifact)
		removed = append(removed, step.Artifact)
	}
	return removed
}
