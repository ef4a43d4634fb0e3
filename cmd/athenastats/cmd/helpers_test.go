package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/athenastats/internal/client"
	"github.com/dbsmedya/athenastats/internal/config"
	"github.com/dbsmedya/athenastats/internal/database"
	"github.com/dbsmedya/athenastats/internal/logger"
)

const baseConfig = `
aws:
  region: ap-south-1
  access_key: AKIATEST
  secret_key: secret
query:
  execution_id: q-1
report:
  color: false
logging:
  level: error
`

// writeConfig writes body to a temp config file and points --config at it.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "athenastats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfgFile = path
	return path
}

// resetFlags restores every package-level flag variable after the test.
func resetFlags(t *testing.T) {
	t.Helper()
	saved := struct {
		cfgFile, envFile, logLevel, logFormat, region, queryExecutionID string
		reportFormat, textfile, verifyMethod                            string
		noColor, createSchema, checkAccess                              bool
		maxDepth                                                        int
	}{cfgFile, envFile, logLevel, logFormat, region, queryExecutionID,
		reportFormat, textfile, verifyMethod, noColor, createSchema, checkAccess, maxDepth}

	envFile = filepath.Join(t.TempDir(), "missing.env")

	t.Cleanup(func() {
		cfgFile, envFile, logLevel, logFormat = saved.cfgFile, saved.envFile, saved.logLevel, saved.logFormat
		region, queryExecutionID = saved.region, saved.queryExecutionID
		reportFormat, textfile, verifyMethod = saved.reportFormat, saved.textfile, saved.verifyMethod
		noColor, createSchema, checkAccess = saved.noColor, saved.createSchema, saved.checkAccess
		maxDepth = saved.maxDepth
	})
}

// captureOutput redirects command output into a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	setOutputWriter(&buf)
	t.Cleanup(resetOutputWriter)
	return &buf
}

// withMockAthena routes every Athena call of the test to a seeded mock.
func withMockAthena(t *testing.T) *client.MockAthenaAPI {
	t.Helper()
	submitted := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock := client.NewMockAthenaAPI()
	mock.Executions["q-1"] = &athena.QueryExecution{
		QueryExecutionId: aws.String("q-1"),
		Query:            aws.String("SELECT count(*) FROM events"),
		WorkGroup:        aws.String("primary"),
		Status: &athena.QueryExecutionStatus{
			State:              aws.String(athena.QueryExecutionStateSucceeded),
			SubmissionDateTime: aws.Time(submitted),
			CompletionDateTime: aws.Time(submitted.Add(2 * time.Second)),
		},
		Statistics: &athena.QueryExecutionStatistics{
			DataScannedInBytes:          aws.Int64(2048),
			TotalExecutionTimeInMillis:  aws.Int64(1900),
			EngineExecutionTimeInMillis: aws.Int64(1500),
			QueryPlanningTimeInMillis:   aws.Int64(200),
		},
	}
	mock.RuntimeStatistics["q-1"] = &athena.QueryRuntimeStatistics{
		Rows: &athena.QueryRuntimeStatisticsRows{
			InputRows:  aws.Int64(500),
			OutputRows: aws.Int64(1),
		},
		OutputStage: &athena.QueryStage{
			StageId:        aws.Int64(0),
			State:          aws.String("FINISHED"),
			ExecutionTime:  aws.Int64(40),
			QueryStagePlan: &athena.QueryStagePlanNode{Name: aws.String("Output"), Identifier: aws.String("0")},
			SubStages: []*athena.QueryStage{
				{StageId: aws.Int64(1), State: aws.String("FINISHED"), ExecutionTime: aws.Int64(30)},
			},
		},
	}

	original := newClient
	newClient = func(config.AWSConfig) (*client.Client, error) {
		return client.NewWithAPI(mock), nil
	}
	t.Cleanup(func() { newClient = original })
	return mock
}

// withArchiveDB makes the archive command connect to db.
func withArchiveDB(t *testing.T, db *sql.DB) {
	t.Helper()
	original := newArchiveManager
	newArchiveManager = func(cfg *config.DatabaseConfig, log *logger.Logger) *database.Manager {
		return database.NewManagerWithDB(cfg, db, log)
	}
	t.Cleanup(func() { newArchiveManager = original })
}
