package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"expgram/internal/config"
	"expgram/internal/logging"
	"expgram/internal/pipeline"
	"expgram/internal/stage"
)

// pipelineFlags is the flag set shared by build and plan.
type pipelineFlags struct {
	opts       config.Options
	configFile string
}

func bindPipelineFlags(f *pflag.FlagSet, p *pipelineFlags) {
	d := config.Defaults()
	o := &p.opts

	f.StringVar(&p.configFile, "config", "", "Options file (YAML or JSON); flags given on the command line win")

	f.StringVar(&o.Corpus, "corpus", "", "Corpus file")
	f.StringVar(&o.CorpusList, "corpus-list", "", "File listing corpus files")
	f.StringVar(&o.Counts, "counts", "", "Precomputed counts; skips vocabulary and extraction")
	f.StringVar(&o.CountsList, "counts-list", "", "File listing n-gram counts files")

	f.IntVar(&o.Cutoff, "cutoff", d.Cutoff, "Count cutoff for the vocabulary (1 keeps all the counts)")
	f.IntVar(&o.KBest, "kbest", d.KBest, "Keep the k most frequent words as vocabulary")
	f.StringVar(&o.Vocab, "vocab", "", "Externally supplied vocabulary file")

	f.IntVar(&o.Order, "order", d.Order, "N-gram order")
	f.StringVar(&o.Output, "output", "", "Output prefix for every artifact (required)")
	f.StringVar(&o.Tokenizer, "tokenizer", "", "Tokenizer applied to the data")
	f.BoolVar(&o.RemoveUnk, "remove-unk", false, "Remove <unk> from estimation")
	f.BoolVar(&o.EraseTemporary, "erase-temporary", false, "Erase intermediate artifacts after a successful run")
	o.FirstStep, o.LastStep = d.FirstStep, d.LastStep
	f.Var((*stepValue)(&o.FirstStep), "first-step", "First stage to run, by ordinal (1-7) or name (vocab, ..., quantize)")
	f.Var((*stepValue)(&o.LastStep), "last-step", "Last stage to run, by ordinal (1-7) or name (vocab, ..., quantize)")

	f.StringVar(&o.ExpgramDir, "expgram-dir", "", "Directory holding the expgram programs")
	f.StringVar(&o.MPIDir, "mpi-dir", "", "MPI installation directory")
	f.StringVar(&o.TemporaryDir, "temporary-dir", "", "Scratch directory for the tools (also exported as TMPDIR_SPEC)")
	f.Float64Var(&o.MaxMalloc, "max-malloc", d.MaxMalloc, "Maximum memory in GB")

	f.IntVar(&o.MPI, "mpi", d.MPI, "Number of MPI processes (mpirun --np)")
	f.StringVar(&o.MPIHost, "mpi-host", "", "Comma separated hosts (mpirun --host)")
	f.StringVar(&o.MPIHostFile, "mpi-host-file", "", "Host file (mpirun --hostfile)")
	f.IntVar(&o.Threads, "threads", d.Threads, "Threads per process")
	f.BoolVar(&o.PBS, "pbs", false, "Submit every stage through PBS")
	f.StringVar(&o.PBSQueue, "pbs-queue", d.PBSQueue, "PBS queue")

	f.IntVar(&o.Debug, "debug", d.Debug, "Debug level passed to the tools; >0 also enables debug logs")
	f.StringVar(&o.EnvFile, "env-file", "", "Dotenv file overriding TMPDIR, TMPDIR_SPEC and library paths")
	f.StringVar(&o.LogFormat, "log-format", d.LogFormat, "Log format: text or json")
}

// stepValue is a stage ordinal that also accepts a stage name. Out of range
// ordinals are kept and rejected by configuration validation.
type stepValue int

func (s *stepValue) String() string { return strconv.Itoa(int(*s)) }

func (s *stepValue) Set(v string) error {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*s = stepValue(n)
		return nil
	}
	k, err := stage.Parse(v)
	if err != nil {
		return err
	}
	*s = stepValue(k.Ordinal())
	return nil
}

func (*stepValue) Type() string { return "stage" }

// resolveOptions merges the --config file under the explicitly set flags.
func resolveOptions(cmd *cobra.Command, p *pipelineFlags) (config.Options, error) {
	if p.configFile == "" {
		return p.opts, nil
	}

	explicit := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	loaded, err := config.LoadFile(p.configFile, p.opts)
	if err != nil {
		return config.Options{}, err
	}
	p.opts = loaded
	for name, value := range explicit {
		if err := cmd.Flags().Set(name, value); err != nil {
			return config.Options{}, fmt.Errorf("reapply --%s: %w", name, err)
		}
	}
	return p.opts, nil
}

// prepare merges options, installs logging and builds the pipeline
// configuration for a fresh run id.
func prepare(cmd *cobra.Command, p *pipelineFlags) (config.Options, pipeline.Config, error) {
	opts, err := resolveOptions(cmd, p)
	if err != nil {
		return opts, pipeline.Config{}, err
	}
	if err := logging.CheckFormat(opts.LogFormat); err != nil {
		return opts, pipeline.Config{}, &config.Error{Option: "log-format", Msg: err.Error()}
	}
	logging.Init(logging.LevelForDebug(opts.Debug), opts.LogFormat, cmd.ErrOrStderr())

	env, err := config.CaptureEnv(opts.EnvFile)
	if err != nil {
		return opts, pipeline.Config{}, err
	}
	cfg, err := opts.Build(uuid.NewString(), env)
	if err != nil {
		return opts, pipeline.Config{}, err
	}
	return opts, cfg, nil
}
