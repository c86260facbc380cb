package stage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// VocabPolicy selects how the vocabulary handed to Extract is obtained. At
// most one of Cutoff > 1, KBest > 0 or File may be set.
type VocabPolicy struct {
	Cutoff int    // keep tokens whose count is at least Cutoff; 1 keeps everything
	KBest  int    // keep the first KBest tokens of the count file
	File   string // externally supplied vocabulary
}

// ErrVocabularyConflict reports more than one vocabulary policy.
var ErrVocabularyConflict = errors.New("cutoff, kbest and vocab are mutually exclusive")

// Check validates the policy on its own.
func (p VocabPolicy) Check() error {
	if p.Cutoff < 1 {
		return fmt.Errorf("cutoff must be at least 1, got %d", p.Cutoff)
	}
	if p.KBest < 0 {
		return fmt.Errorf("kbest must not be negative, got %d", p.KBest)
	}
	n := 0
	if p.Cutoff > 1 {
		n++
	}
	if p.KBest > 0 {
		n++
	}
	if p.File != "" {
		n++
	}
	if n > 1 {
		return ErrVocabularyConflict
	}
	return nil
}

// Selected reports whether any policy is in effect.
func (p VocabPolicy) Selected() bool {
	return p.Cutoff > 1 || p.KBest > 0 || p.File != ""
}

// External reports whether the vocabulary comes from a supplied file.
func (p VocabPolicy) External() bool { return p.File != "" }

// Describe names the policy for plan output, e.g. "cutoff=2".
func (p VocabPolicy) Describe() string {
	switch {
	case p.File != "":
		return "file=" + p.File
	case p.KBest > 0:
		return "kbest=" + strconv.Itoa(p.KBest)
	case p.Cutoff > 1:
		return "cutoff=" + strconv.Itoa(p.Cutoff)
	default:
		return "none"
	}
}

// VocabularyPath returns the vocabulary passed to Extract: the supplied file,
// or <output>.vocab.<cutoff|kbest>. It is empty when no policy is selected.
func VocabularyPath(output string, p VocabPolicy) string {
	switch {
	case p.File != "":
		return p.File
	case p.KBest > 0:
		return Vocabulary.Artifact(output) + "." + strconv.Itoa(p.KBest)
	case p.Cutoff > 1:
		return Vocabulary.Artifact(output) + "." + strconv.Itoa(p.Cutoff)
	default:
		return ""
	}
}

// FilterVocabulary reads "token count" lines from r and writes the selected
// tokens to w, one per line, preserving input order. Lines that do not have
// exactly two fields are skipped. Under kbest the counts are not inspected.
// It returns the number of tokens written.
func FilterVocabulary(r io.Reader, w io.Writer, p VocabPolicy) (int, error) {
	if p.External() {
		return 0, errors.New("filter vocabulary: external vocabulary is not filtered")
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	bw := bufio.NewWriter(w)

	written := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		if p.KBest > 0 {
			if written >= p.KBest {
				break
			}
		} else {
			count, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return written, fmt.Errorf("filter vocabulary: line %d: invalid count %q", lineNo, fields[1])
			}
			if count < int64(p.Cutoff) {
				continue
			}
		}
		if _, err := bw.WriteString(fields[0] + "\n"); err != nil {
			return written, fmt.Errorf("filter vocabulary: %w", err)
		}
		written++
	}
	if err := sc.Err(); err != nil {
		return written, fmt.Errorf("filter vocabulary: read: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("filter vocabulary: %w", err)
	}
	return written, nil
}
