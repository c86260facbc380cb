package format

import (
	"expgram/internal/binary"
	"expgram/internal/pipeline"
	"expgram/internal/resource"
)

// PlanTable lists every step of plan with its status, artifact and command.
func PlanTable(plan pipeline.Plan, m Mode) string {
	tb := NewTable(m)
	tb.Header("#", "Stage", "Status", "Artifact", "Command")
	for _, s := range plan.Steps {
		cmd := ""
		if s.HasCommand() {
			cmd = s.Command.Render()
		}
		tb.Row(s.Kind.Ordinal(), s.Kind.String(), s.Status.String(), orDash(s.Artifact), orDash(cmd))
	}
	tb.Footer("", "", "mode", resource.Describe(plan.Mode), "run "+orDash(plan.RunID))
	if m == ASCII {
		tb.Columns(ColumnConfig{Number: 5, AlignLeft: true, MaxWidth: 100})
	}
	return tb.String()
}

// BinaryTable lists the resolved path of each name, in the given order.
func BinaryTable(names []string, bins binary.Set, m Mode) string {
	tb := NewTable(m)
	tb.Header("Binary", "Path")
	for _, n := range names {
		tb.Row(n, bins.Path(n))
	}
	return tb.String()
}

// ResultTable summarises the stages a run executed.
func ResultTable(res *pipeline.Result, m Mode) string {
	tb := NewTable(m)
	tb.Header("Stage", "State", "Duration", "Log")
	for _, e := range res.Executions {
		tb.Row(e.Job.Name, e.State().String(), FmtDuration(e.Duration()), orDash(e.Job.Log))
	}
	for _, p := range res.Removed {
		tb.Row("erased", p, "", "")
	}
	tb.Footer("total", orDash(res.Final), FmtDuration(res.Duration), "")
	return tb.String()
}
