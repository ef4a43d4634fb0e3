package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	submitted = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	completed = submitted.Add(2500 * time.Millisecond)
)

func sampleExecution() *athena.QueryExecution {
	return &athena.QueryExecution{
		QueryExecutionId: aws.String("q-1"),
		Query:            aws.String("SELECT count(*) FROM events"),
		StatementType:    aws.String(athena.StatementTypeDml),
		WorkGroup:        aws.String("primary"),
		QueryExecutionContext: &athena.QueryExecutionContext{
			Catalog:  aws.String("AwsDataCatalog"),
			Database: aws.String("analytics"),
		},
		EngineVersion: &athena.EngineVersion{EffectiveEngineVersion: aws.String("Athena engine version 3")},
		Status: &athena.QueryExecutionStatus{
			State:              aws.String(athena.QueryExecutionStateSucceeded),
			SubmissionDateTime: aws.Time(submitted),
			CompletionDateTime: aws.Time(completed),
		},
		Statistics: &athena.QueryExecutionStatistics{
			DataScannedInBytes:               aws.Int64(4096),
			TotalExecutionTimeInMillis:       aws.Int64(2400),
			EngineExecutionTimeInMillis:      aws.Int64(1800),
			QueryPlanningTimeInMillis:        aws.Int64(300),
			QueryQueueTimeInMillis:           aws.Int64(90),
			ServicePreProcessingTimeInMillis: aws.Int64(20),
			ServiceProcessingTimeInMillis:    aws.Int64(10),
		},
	}
}

func sampleRuntime() *athena.QueryRuntimeStatistics {
	return &athena.QueryRuntimeStatistics{
		Rows: &athena.QueryRuntimeStatisticsRows{
			InputRows:   aws.Int64(1000),
			InputBytes:  aws.Int64(4096),
			OutputRows:  aws.Int64(1),
			OutputBytes: aws.Int64(8),
		},
		OutputStage: &athena.QueryStage{
			StageId:        aws.Int64(0),
			State:          aws.String("FINISHED"),
			QueryStagePlan: planNode("Output", "op0", planNode("Aggregate", "op1")),
			SubStages: []*athena.QueryStage{
				{StageId: aws.Int64(1), State: aws.String("FINISHED"), QueryStagePlan: planNode("TableScan", "op2")},
			},
		},
	}
}

func TestAssemble(t *testing.T) {
	summary, err := Assemble(sampleExecution(), sampleRuntime(), nil)
	require.NoError(t, err)

	assert.Equal(t, "q-1", summary.QueryExecutionID)
	assert.Equal(t, "SUCCEEDED", summary.Status)
	assert.Equal(t, "SELECT count(*) FROM events", summary.Query)
	assert.Equal(t, "DML", summary.StatementType)
	assert.Equal(t, "primary", summary.WorkGroup)
	assert.Equal(t, "AwsDataCatalog", summary.Catalog)
	assert.Equal(t, "analytics", summary.Database)
	assert.Equal(t, "Athena engine version 3", summary.EngineVersion)

	assert.Equal(t, int64(4096), summary.DataScannedBytes)
	assert.True(t, summary.StartTime.Equal(submitted))
	assert.True(t, summary.EndTime.Equal(completed))
	assert.Equal(t, int64(2500), summary.ElapsedTimeMs)
	assert.Equal(t, 2500*time.Millisecond, summary.Elapsed())
	assert.Equal(t, int64(90), summary.QueuedTimeMs)
	assert.Equal(t, int64(1800), summary.ExecutionTimeMs)
	assert.Equal(t, int64(300), summary.PlanningTimeMs)
	assert.Equal(t, int64(2400), summary.TotalExecutionTimeMs)
	assert.Equal(t, int64(300), summary.AnalysisTimeMs, "2400 - 1800 - 300")
	assert.Equal(t, int64(20), summary.ServicePreProcessingTimeMs)
	assert.Equal(t, int64(10), summary.ServiceProcessingTimeMs)

	assert.Equal(t, int64(1000), summary.InputRows)
	assert.Equal(t, int64(4096), summary.InputBytes)
	assert.Equal(t, int64(1), summary.OutputRows)
	assert.Equal(t, int64(8), summary.OutputBytes)

	require.NotNil(t, summary.OutputStage)
	assert.Equal(t, 2, summary.OutputStage.Count())
	require.NotNil(t, summary.OutputStage.Plan)
	assert.Equal(t, "Output", summary.OutputStage.Plan.Name)
	assert.Equal(t, "Aggregate", summary.OutputStage.Plan.Children[0].Name)
	assert.Equal(t, "TableScan", summary.OutputStage.SubStages[0].Plan.Name)
}

func TestAssemble_NegativeAnalysisTimeIsKept(t *testing.T) {
	exec := sampleExecution()
	exec.Statistics.TotalExecutionTimeInMillis = aws.Int64(1000)
	exec.Statistics.EngineExecutionTimeInMillis = aws.Int64(1200)
	exec.Statistics.QueryPlanningTimeInMillis = aws.Int64(150)

	summary, err := Assemble(exec, sampleRuntime(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-350), summary.AnalysisTimeMs)
	assert.Equal(t, -350*time.Millisecond, summary.Analysis())
}

func TestAssemble_IncompleteExecution(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*athena.QueryExecution)
		runtime *athena.QueryRuntimeStatistics
		field   string
	}{
		{
			name:   "missing submission time",
			mutate: func(e *athena.QueryExecution) { e.Status.SubmissionDateTime = nil },
			field:  "Status.SubmissionDateTime",
		},
		{
			name: "still running",
			mutate: func(e *athena.QueryExecution) {
				e.Status.State = aws.String(athena.QueryExecutionStateRunning)
				e.Status.CompletionDateTime = nil
			},
			field: "Status.CompletionDateTime",
		},
		{
			name:   "missing status",
			mutate: func(e *athena.QueryExecution) { e.Status = nil },
			field:  "Status",
		},
		{
			name:   "missing statistics",
			mutate: func(e *athena.QueryExecution) { e.Statistics = nil },
			field:  "Statistics",
		},
		{
			name:   "missing total execution time",
			mutate: func(e *athena.QueryExecution) { e.Statistics.TotalExecutionTimeInMillis = nil },
			field:  "Statistics.TotalExecutionTimeInMillis",
		},
		{
			name:   "missing engine execution time",
			mutate: func(e *athena.QueryExecution) { e.Statistics.EngineExecutionTimeInMillis = nil },
			field:  "Statistics.EngineExecutionTimeInMillis",
		},
		{
			name:   "missing planning time",
			mutate: func(e *athena.QueryExecution) { e.Statistics.QueryPlanningTimeInMillis = nil },
			field:  "Statistics.QueryPlanningTimeInMillis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := sampleExecution()
			tt.mutate(exec)

			summary, err := Assemble(exec, sampleRuntime(), nil)
			assert.Nil(t, summary)

			var incomplete *IncompleteExecutionError
			require.True(t, errors.As(err, &incomplete), "got %v", err)
			assert.Equal(t, tt.field, incomplete.Field)
			assert.Equal(t, "q-1", incomplete.QueryExecutionID)
		})
	}
}

func TestAssemble_MissingResponses(t *testing.T) {
	var incomplete *IncompleteExecutionError

	_, err := Assemble(nil, sampleRuntime(), nil)
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, "QueryExecution", incomplete.Field)

	_, err = Assemble(sampleExecution(), nil, nil)
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, "QueryRuntimeStatistics", incomplete.Field)
}

func TestAssemble_NoStageTree(t *testing.T) {
	summary, err := Assemble(sampleExecution(), &athena.QueryRuntimeStatistics{}, nil)
	require.NoError(t, err)
	assert.Nil(t, summary.OutputStage)
	assert.Zero(t, summary.InputRows)
	assert.Zero(t, summary.OutputBytes)
}

func TestAssemble_MalformedTreeFailsWholeSummary(t *testing.T) {
	runtime := sampleRuntime()
	runtime.OutputStage.SubStages = append(runtime.OutputStage.SubStages, nil)

	summary, err := Assemble(sampleExecution(), runtime, NewMapper(Limits{}))
	assert.Nil(t, summary)

	var mte *MalformedTreeError
	require.True(t, errors.As(err, &mte))
	assert.Equal(t, "stage.sub[1]", mte.Path)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		"incomplete execution q-1: Status.CompletionDateTime is missing",
		(&IncompleteExecutionError{QueryExecutionID: "q-1", Field: "Status.CompletionDateTime"}).Error())
	assert.Equal(t,
		"incomplete execution: QueryExecution is missing",
		(&IncompleteExecutionError{Field: "QueryExecution"}).Error())
	assert.Equal(t,
		"malformed tree at stage.sub[0]: nil stage",
		(&MalformedTreeError{Path: "stage.sub[0]", Reason: "nil stage"}).Error())
}
