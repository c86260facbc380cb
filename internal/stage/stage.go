// Package stage describes the seven external programs of an expgram build:
// their names, the binaries behind them, the artifacts they leave behind and
// the command line each one receives.
package stage

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one pipeline stage. The numeric value is the stage ordinal
// used by --first-step and --last-step.
type Kind int

const (
	Vocabulary Kind = iota + 1
	Extract
	Index
	Modify
	Estimate
	Backward
	Quantize
)

// First and Last bound the valid ordinals.
const (
	First = Vocabulary
	Last  = Quantize
)

type descriptor struct {
	name   string
	binary string
	suffix string
	// hosts is set when the distributed build accepts --host and --hostfile.
	hosts bool
}

var descriptors = map[Kind]descriptor{
	Vocabulary: {"vocab", "expgram_vocab", ".vocab", false},
	Extract:    {"extract", "expgram_counts_extract", ".counts", true},
	Index:      {"index", "expgram_counts_index", ".index", false},
	Modify:     {"modify", "expgram_counts_modify", ".modified", true},
	Estimate:   {"estimate", "expgram_counts_estimate", ".estimated", false},
	Backward:   {"backward", "expgram_backward", ".lm", true},
	Quantize:   {"quantize", "expgram_quantize", ".lm.quantize", true},
}

// distributedSuffix is appended to a binary name for its message-passing build.
const distributedSuffix = "_mpi"

// All returns every stage in execution order.
func All() []Kind {
	return []Kind{Vocabulary, Extract, Index, Modify, Estimate, Backward, Quantize}
}

// Parse returns the stage with the given name or ordinal ("index" or "3").
func Parse(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, k := range All() {
		if s == k.String() || s == strconv.Itoa(int(k)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", s)
}

// Valid reports whether k is one of the seven stages.
func (k Kind) Valid() bool {
	_, ok := descriptors[k]
	return ok
}

// Ordinal returns the 1-based position of the stage.
func (k Kind) Ordinal() int { return int(k) }

func (k Kind) String() string {
	if d, ok := descriptors[k]; ok {
		return d.name
	}
	return fmt.Sprintf("stage(%d)", int(k))
}

// Binary returns the executable name of the stage, selecting the distributed
// build when distributed is true.
func (k Kind) Binary(distributed bool) string {
	name := descriptors[k].binary
	if distributed {
		return name + distributedSuffix
	}
	return name
}

// Artifact returns the path the stage writes for the given output base. For
// Vocabulary this is the raw token-count file; see VocabularyPath for the
// filtered list.
func (k Kind) Artifact(output string) string {
	return output + descriptors[k].suffix
}

// LogPath returns the diagnostics file paired with an artifact.
func LogPath(artifact string) string {
	return artifact + ".log"
}

// BinaryNames returns the fourteen executables a build may call, local and
// distributed for every stage, in stage order.
func BinaryNames() []string {
	names := make([]string, 0, 2*len(descriptors))
	for _, k := range All() {
		names = append(names, k.Binary(false), k.Binary(true))
	}
	return names
}
