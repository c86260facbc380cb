package stage

import (
	"expgram/internal/binary"
	"expgram/internal/command"
	"expgram/internal/resource"
)

// Corpus is the configured input data. Counts, when set, replaces the
// Vocabulary and Extract stages.
type Corpus struct {
	File       string
	List       string
	Counts     string
	CountsList string
}

// Context carries everything a stage needs to build its command. It is
// assembled once per run and shared read-only by every stage.
type Context struct {
	Binaries  binary.Set
	Output    string
	Corpus    Corpus
	Vocab     string // vocabulary handed to Extract, empty for none
	Tokenizer string
	Order     int
	RemoveUnk bool
	Policy    resource.Policy
	Mode      resource.Mode
}

// Input returns the artifact k consumes through --ngram. Vocabulary and
// Extract read the corpus instead and have no input artifact.
func (c Context) Input(k Kind) string {
	switch k {
	case Vocabulary, Extract:
		return ""
	case Index:
		if c.Corpus.Counts != "" {
			return c.Corpus.Counts
		}
		return Extract.Artifact(c.Output)
	default:
		return (k - 1).Artifact(c.Output)
	}
}

// Command builds the invocation of stage k.
func Command(k Kind, c Context) command.Command {
	distributed := resource.IsDistributed(c.Mode)
	cmd := command.New(c.Binaries.Path(k.Binary(distributed)))

	switch k {
	case Vocabulary, Extract:
		cmd = corpusInputs(cmd, c.Corpus)
		cmd = cmd.Path("--output", k.Artifact(c.Output))
		if k == Extract {
			cmd = cmd.Int("--order", c.Order)
			if c.Vocab != "" {
				cmd = cmd.Path("--vocab", c.Vocab)
			}
		}
		if c.Tokenizer != "" {
			cmd = cmd.Path("--filter", c.Tokenizer)
		}
		if k == Extract {
			cmd = cmd.Float("--max-malloc", c.Policy.MaxMalloc)
		}
	default:
		cmd = cmd.Path("--ngram", c.Input(k))
		cmd = cmd.Path("--output", k.Artifact(c.Output))
		if k == Estimate && c.RemoveUnk {
			cmd = cmd.Switch("--remove-unk")
		}
		if c.Policy.TempDir != "" {
			cmd = cmd.Path("--temporary", c.Policy.TempDir)
		}
	}

	if d, ok := resource.DistributedOf(c.Mode); ok {
		cmd = cmd.Raw("--prog", c.Binaries.Path(k.Binary(true)))
		// Tools that spawn their own workers need the host selection too;
		// the others reject the flags and get it from the launcher only.
		switch {
		case !descriptors[k].hosts:
		case d.Hosts != "":
			cmd = cmd.Raw("--host", d.Hosts)
		case d.HostFile != "":
			cmd = cmd.Path("--hostfile", d.HostFile)
		}
	} else if k == Vocabulary || k == Extract {
		cmd = cmd.Int("--threads", c.Policy.Threads)
	} else {
		cmd = cmd.Int("--shard", c.Policy.Threads)
	}

	if c.Policy.Debug >= 2 {
		return cmd.Int("--debug", c.Policy.Debug)
	}
	return cmd.Switch("--debug")
}

// corpusInputs adds the corpus flags. Without any list the tools are told to
// split the single corpus by lines.
func corpusInputs(cmd command.Command, c Corpus) command.Command {
	if c.File != "" {
		cmd = cmd.Path("--corpus", c.File)
	}
	if c.List == "" && c.CountsList == "" {
		return cmd.Switch("--map-line")
	}
	if c.List != "" {
		cmd = cmd.Path("--corpus-list", c.List)
	}
	if c.CountsList != "" {
		cmd = cmd.Path("--counts-list", c.CountsList)
	}
	return cmd
}
