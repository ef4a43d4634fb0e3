package stats

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
)

// Assemble combines a GetQueryExecution result and a GetQueryRuntimeStatistics
// result into one ExecutionSummary. The output stage tree is mapped with m
// (default limits when m is nil).
//
// Elapsed time needs both submission and completion timestamps, and analysis
// time needs total, engine and planning times; a missing value yields an
// *IncompleteExecutionError and no summary. Analysis time is reported as
// computed, even when negative.
func Assemble(exec *athena.QueryExecution, runtime *athena.QueryRuntimeStatistics, m *Mapper) (*ExecutionSummary, error) {
	if m == nil {
		m = defaultMapper
	}
	if exec == nil {
		return nil, &IncompleteExecutionError{Field: "QueryExecution"}
	}

	id := aws.StringValue(exec.QueryExecutionId)
	missing := func(field string) error {
		return &IncompleteExecutionError{QueryExecutionID: id, Field: field}
	}

	status := exec.Status
	if status == nil {
		return nil, missing("Status")
	}
	if status.SubmissionDateTime == nil {
		return nil, missing("Status.SubmissionDateTime")
	}
	if status.CompletionDateTime == nil {
		return nil, missing("Status.CompletionDateTime")
	}

	st := exec.Statistics
	if st == nil {
		return nil, missing("Statistics")
	}
	if st.TotalExecutionTimeInMillis == nil {
		return nil, missing("Statistics.TotalExecutionTimeInMillis")
	}
	if st.EngineExecutionTimeInMillis == nil {
		return nil, missing("Statistics.EngineExecutionTimeInMillis")
	}
	if st.QueryPlanningTimeInMillis == nil {
		return nil, missing("Statistics.QueryPlanningTimeInMillis")
	}
	if runtime == nil {
		return nil, missing("QueryRuntimeStatistics")
	}

	start := aws.TimeValue(status.SubmissionDateTime)
	end := aws.TimeValue(status.CompletionDateTime)
	total := aws.Int64Value(st.TotalExecutionTimeInMillis)
	engine := aws.Int64Value(st.EngineExecutionTimeInMillis)
	planning := aws.Int64Value(st.QueryPlanningTimeInMillis)

	summary := &ExecutionSummary{
		QueryExecutionID:           id,
		Status:                     aws.StringValue(status.State),
		StateChangeReason:          aws.StringValue(status.StateChangeReason),
		Query:                      aws.StringValue(exec.Query),
		StatementType:              aws.StringValue(exec.StatementType),
		WorkGroup:                  aws.StringValue(exec.WorkGroup),
		DataScannedBytes:           aws.Int64Value(st.DataScannedInBytes),
		StartTime:                  start,
		EndTime:                    end,
		ElapsedTimeMs:              end.Sub(start).Milliseconds(),
		QueuedTimeMs:               aws.Int64Value(st.QueryQueueTimeInMillis),
		PlanningTimeMs:             planning,
		ExecutionTimeMs:            engine,
		AnalysisTimeMs:             total - engine - planning,
		TotalExecutionTimeMs:       total,
		ServicePreProcessingTimeMs: aws.Int64Value(st.ServicePreProcessingTimeInMillis),
		ServiceProcessingTimeMs:    aws.Int64Value(st.ServiceProcessingTimeInMillis),
	}

	if qc := exec.QueryExecutionContext; qc != nil {
		summary.Catalog = aws.StringValue(qc.Catalog)
		summary.Database = aws.StringValue(qc.Database)
	}
	if ev := exec.EngineVersion; ev != nil {
		summary.EngineVersion = aws.StringValue(ev.EffectiveEngineVersion)
	}

	if rows := runtime.Rows; rows != nil {
		summary.InputRows = aws.Int64Value(rows.InputRows)
		summary.InputBytes = aws.Int64Value(rows.InputBytes)
		summary.OutputRows = aws.Int64Value(rows.OutputRows)
		summary.OutputBytes = aws.Int64Value(rows.OutputBytes)
	}

	if runtime.OutputStage != nil {
		stage, err := m.MapStage(runtime.OutputStage)
		if err != nil {
			return nil, err
		}
		summary.OutputStage = &stage
	}

	return summary, nil
}
