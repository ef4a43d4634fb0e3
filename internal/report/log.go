package report

import (
	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/stats"
)

// LogReporter emits the summary as structured log entries: one for the
// execution and one per stage.
type LogReporter struct {
	log *logger.Logger
}

func (r *LogReporter) Report(s *stats.ExecutionSummary) error {
	log := r.log.WithQuery(s.QueryExecutionID)

	log.Infow("Athena query metrics",
		"status", s.Status,
		"work_group", s.WorkGroup,
		"data_scanned_bytes", s.DataScannedBytes,
		"start_time", s.StartTime,
		"end_time", s.EndTime,
		"elapsed_ms", s.ElapsedTimeMs,
		"queued_ms", s.QueuedTimeMs,
		"planning_ms", s.PlanningTimeMs,
		"execution_ms", s.ExecutionTimeMs,
		"analysis_ms", s.AnalysisTimeMs,
		"total_execution_ms", s.TotalExecutionTimeMs,
		"input_rows", s.InputRows,
		"input_bytes", s.InputBytes,
		"output_rows", s.OutputRows,
		"output_bytes", s.OutputBytes,
	)

	if s.OutputStage == nil {
		return nil
	}

	s.OutputStage.Walk(func(st *stats.StageNode, depth int) bool {
		fields := []interface{}{
			"depth", depth,
			"state", st.State,
			"input_rows", st.InputRows,
			"output_rows", st.OutputRows,
			"input_bytes", st.InputBytes,
			"output_bytes", st.OutputBytes,
			"execution_ms", st.ExecutionTimeMs,
			"sub_stages", len(st.SubStages),
		}
		if st.Plan != nil {
			fields = append(fields, "operators", st.Plan.Count(), "root_operator", st.Plan.Name)
		}
		log.WithStage(st.StageID).Infow("Athena stage metrics", fields...)
		return true
	})
	return nil
}
