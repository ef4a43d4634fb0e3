package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/athenastats/internal/stats"
)

type section = orderedmap.OrderedMap[string, string]

// TextReporter renders a sectioned, aligned report with the stage tree drawn
// using box glyphs.
type TextReporter struct {
	w    io.Writer
	opts Options
	err  error
}

func (r *TextReporter) Report(s *stats.ExecutionSummary) error {
	r.err = nil

	if r.opts.PlanOnly {
		r.header("Query Plan: %s", s.QueryExecutionID)
		r.printf("\n")
		r.stages(s)
		return r.err
	}

	r.header("Athena Query Execution: %s", s.QueryExecutionID)

	sections := r.sections(s)
	for el := sections.Front(); el != nil; el = el.Next() {
		r.printf("\n")
		r.section(el.Key)
		r.keyValues(el.Value)
	}

	r.printf("\n")
	r.section("Stages")
	r.stages(s)

	return r.err
}

func (r *TextReporter) sections(s *stats.ExecutionSummary) *orderedmap.OrderedMap[string, *section] {
	execution := orderedmap.NewOrderedMap[string, string]()
	execution.Set("Status", r.state(s.Status))
	if s.StateChangeReason != "" {
		execution.Set("Reason", s.StateChangeReason)
	}
	if s.StatementType != "" {
		execution.Set("Statement Type", s.StatementType)
	}
	execution.Set("Work Group", s.WorkGroup)
	if s.Catalog != "" {
		execution.Set("Catalog", s.Catalog)
	}
	if s.Database != "" {
		execution.Set("Database", s.Database)
	}
	if s.EngineVersion != "" {
		execution.Set("Engine", s.EngineVersion)
	}
	execution.Set("Data Scanned", formatBytes(s.DataScannedBytes))
	execution.Set("Query", strings.TrimSpace(s.Query))

	timing := orderedmap.NewOrderedMap[string, string]()
	timing.Set("Start", s.StartTime.UTC().Format(time.RFC3339Nano))
	timing.Set("End", s.EndTime.UTC().Format(time.RFC3339Nano))
	timing.Set("Elapsed", formatMillis(s.ElapsedTimeMs))
	timing.Set("Queued", formatMillis(s.QueuedTimeMs))
	timing.Set("Planning", formatMillis(s.PlanningTimeMs))
	timing.Set("Execution", formatMillis(s.ExecutionTimeMs))
	timing.Set("Analysis", formatMillis(s.AnalysisTimeMs))
	timing.Set("Total Execution", formatMillis(s.TotalExecutionTimeMs))
	timing.Set("Service Pre-processing", formatMillis(s.ServicePreProcessingTimeMs))
	timing.Set("Service Processing", formatMillis(s.ServiceProcessingTimeMs))

	rows := orderedmap.NewOrderedMap[string, string]()
	rows.Set("Input Rows", humanize.Comma(s.InputRows))
	rows.Set("Input Bytes", formatBytes(s.InputBytes))
	rows.Set("Output Rows", humanize.Comma(s.OutputRows))
	rows.Set("Output Bytes", formatBytes(s.OutputBytes))

	out := orderedmap.NewOrderedMap[string, *section]()
	out.Set("Execution", execution)
	out.Set("Timing", timing)
	out.Set("Rows", rows)
	return out
}

func (r *TextReporter) header(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	r.printf("%s\n", strings.Repeat("=", width))
	r.printf("  %s\n", title)
	r.printf("%s\n", strings.Repeat("=", width))
}

func (r *TextReporter) section(title string) {
	r.printf("[%s]\n", title)
	r.printf("%s\n", strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// keyValues aligns values on the widest key, measured in terminal cells.
func (r *TextReporter) keyValues(kv *section) {
	width := 0
	for el := kv.Front(); el != nil; el = el.Next() {
		if w := runewidth.StringWidth(el.Key) + 1; w > width {
			width = w
		}
	}

	pad := strings.Repeat(" ", width+4)
	for el := kv.Front(); el != nil; el = el.Next() {
		lines := strings.Split(el.Value, "\n")
		r.printf("  %s  %s\n", runewidth.FillRight(el.Key+":", width), lines[0])
		for _, line := range lines[1:] {
			r.printf("%s%s\n", pad, line)
		}
	}
}

func (r *TextReporter) stages(s *stats.ExecutionSummary) {
	if s.OutputStage == nil {
		r.printf("  (no stage tree reported)\n")
		return
	}
	r.stage(s.OutputStage, "  ", "  ", 0)
}

// stage writes st, then its plan and sub-stages as children in that order.
func (r *TextReporter) stage(st *stats.StageNode, linePrefix, childPrefix string, depth int) {
	r.printf("%s%s\n", linePrefix, r.stageLine(st))

	if r.truncated(depth + 1) {
		if hidden := treeSize(st) - 1; hidden > 0 {
			r.printf("%s└── … %d more\n", childPrefix, hidden)
		}
		return
	}

	children := len(st.SubStages)
	if st.Plan != nil {
		children++
	}

	i := 0
	if st.Plan != nil {
		last := i == children-1
		r.plan(st.Plan, childPrefix+branch(last), childPrefix+indent(last), depth+1)
		i++
	}
	for j := range st.SubStages {
		last := i == children-1
		r.stage(&st.SubStages[j], childPrefix+branch(last), childPrefix+indent(last), depth+1)
		i++
	}
}

func (r *TextReporter) plan(p *stats.PlanNode, linePrefix, childPrefix string, depth int) {
	r.printf("%s%s\n", linePrefix, planLine(p))

	if len(p.Children) == 0 {
		return
	}
	if r.truncated(depth + 1) {
		r.printf("%s└── … %d more\n", childPrefix, p.Count()-1)
		return
	}
	for i := range p.Children {
		last := i == len(p.Children)-1
		r.plan(&p.Children[i], childPrefix+branch(last), childPrefix+indent(last), depth+1)
	}
}

func (r *TextReporter) truncated(depth int) bool {
	return r.opts.MaxDepth > 0 && depth >= r.opts.MaxDepth
}

func (r *TextReporter) stageLine(st *stats.StageNode) string {
	return fmt.Sprintf("Stage %d %s  rows %s → %s  bytes %s → %s  time %d ms",
		st.StageID,
		r.state(st.State),
		humanize.Comma(st.InputRows),
		humanize.Comma(st.OutputRows),
		formatBytes(st.InputBytes),
		formatBytes(st.OutputBytes),
		st.ExecutionTimeMs,
	)
}

func planLine(p *stats.PlanNode) string {
	line := fmt.Sprintf("%s [%s]", p.Name, p.Identifier)
	if len(p.RemoteSources) > 0 {
		line += " ← " + strings.Join(p.RemoteSources, ", ")
	}
	return line
}

// state colors query and stage states when color output is enabled.
func (r *TextReporter) state(state string) string {
	if state == "" {
		state = "-"
	}
	if !r.opts.Color {
		return state
	}
	switch state {
	case "SUCCEEDED", "FINISHED":
		return color.FgGreen.Render(state)
	case "FAILED", "CANCELLED", "ABORTED":
		return color.FgRed.Render(state)
	case "QUEUED", "RUNNING", "PLANNED", "SCHEDULED":
		return color.FgYellow.Render(state)
	default:
		return state
	}
}

func (r *TextReporter) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}

// treeSize counts stages and operators below and including st.
func treeSize(st *stats.StageNode) int {
	n := 0
	st.Walk(func(s *stats.StageNode, _ int) bool {
		n++
		if s.Plan != nil {
			n += s.Plan.Count()
		}
		return true
	})
	return n
}

func formatBytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}
	return humanize.IBytes(uint64(b))
}

func formatMillis(ms int64) string {
	return fmt.Sprintf("%d ms (%s)", ms, time.Duration(ms)*time.Millisecond)
}
