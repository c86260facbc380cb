package format_test

import (
	"strings"
	"testing"
	"time"

	"expgram/internal/binary"
	"expgram/internal/format"
	"expgram/internal/pipeline"
	"expgram/internal/resource"
	"expgram/internal/stage"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Stage", "Artifact")
	tb.Row("index", "/w/lm.index")
	out := tb.String()

	if !strings.Contains(out, "/w/lm.index") {
		t.Errorf("expected artifact in output:\n%s", out)
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Stage", "Seconds")
	tb.Row("extract", 100)
	tb.Footer("total", 100)
	out := tb.String()

	if !strings.Contains(out, "| Stage") || !strings.Contains(out, "---") {
		t.Errorf("expected markdown table:\n%s", out)
	}
	if !strings.Contains(out, "total") {
		t.Errorf("expected footer in output:\n%s", out)
	}
}

func TestPlanTable(t *testing.T) {
	cfg := pipeline.Config{
		RunID:  "r-42",
		Output: "/w/lm",
		Corpus: stage.Corpus{Counts: "/d/c.counts"},
		Vocab:  stage.VocabPolicy{Cutoff: 1},
		Order:  5,
		Window: pipeline.Window{First: stage.Index, Last: stage.Backward},
		Policy: resource.NewPolicy(4, 8, "", 0, nil),
		Mode:   resource.Local{Threads: 4},
	}
	out := format.PlanTable(pipeline.NewPlan(cfg, nil), format.Markdown)

	for _, want := range []string{
		"skipped (counts supplied)",
		"skipped (window)",
		`expgram_counts_index --ngram "/d/c.counts"`,
		"/w/lm.lm.quantize",
		"local(threads=4)",
		"run r-42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan table missing %q:\n%s", want, out)
		}
	}
}

func TestBinaryTable(t *testing.T) {
	bins := binary.Set{"expgram_vocab": "/opt/expgram/bin/expgram_vocab"}
	out := format.BinaryTable([]string{"expgram_vocab", "expgram_vocab_mpi"}, bins, format.ASCII)
	if !strings.Contains(out, "/opt/expgram/bin/expgram_vocab") || !strings.Contains(out, "expgram_vocab_mpi") {
		t.Errorf("unexpected binaries table:\n%s", out)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{120 * time.Millisecond, "120ms"},
		{5 * time.Second, "5s"},
		{3*time.Minute + 4*time.Second, "3m 4s"},
		{time.Hour + 2*time.Minute, "1h 2m"},
	}
	for _, tt := range tests {
		if got := format.FmtDuration(tt.d); got != tt.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
