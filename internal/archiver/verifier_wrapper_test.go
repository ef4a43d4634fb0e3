package archiver

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/athenastats/internal/verifier"
)

func TestVerify_Count(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `athena_query_executions` WHERE `query_execution_id` = ?")).
		WithArgs("q-1").WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `athena_query_stages` WHERE `query_execution_id` = ?")).
		WithArgs("q-1").WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `athena_query_plan_nodes` WHERE `query_execution_id` = ?")).
		WithArgs("q-1").WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(3))

	result, err := store.Verify(context.Background(), "count", archiveSummary())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TablesPassed)
	assert.Equal(t, int64(6), result.TotalRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_CountMismatch(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `athena_query_executions`")).
		WithArgs("q-1").WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `athena_query_stages`")).
		WithArgs("q-1").WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))

	_, err := store.Verify(context.Background(), "count", archiveSummary())
	require.Error(t, err)
	assert.True(t, errors.Is(err, verifier.ErrMismatch))
	assert.Contains(t, err.Error(), "athena_query_stages")
}

func TestVerify_SHA256(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `status`, `work_group`, `data_scanned_bytes`, `elapsed_ms`, `total_execution_ms`, `output_rows`, `stage_count` FROM `athena_query_executions`")).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "work_group", "data_scanned_bytes", "elapsed_ms", "total_execution_ms", "output_rows", "stage_count"}).
			AddRow([]byte("SUCCEEDED"), []byte("primary"), []byte("4096"), []byte("2500"), []byte("2400"), []byte("1"), []byte("2")))

	mock.ExpectQuery(regexp.QuoteMeta("FROM `athena_query_stages` WHERE `query_execution_id` = ? ORDER BY `stage_seq`")).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"stage_seq", "parent_seq", "depth", "stage_id", "state",
			"input_rows", "input_bytes", "output_rows", "output_bytes", "execution_ms"}).
			AddRow(int64(0), nil, int64(0), int64(0), "FINISHED", int64(1000), int64(4096), int64(1), int64(8), int64(120)).
			AddRow(int64(1), int64(0), int64(1), int64(1), "FINISHED", int64(1000), int64(4096), int64(1000), int64(4096), int64(80)))

	mock.ExpectQuery(regexp.QuoteMeta("FROM `athena_query_plan_nodes` WHERE `query_execution_id` = ? ORDER BY `stage_seq`, `node_seq`")).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"stage_seq", "node_seq", "parent_seq", "depth", "name", "identifier", "remote_sources"}).
			AddRow(int64(0), int64(0), nil, int64(0), "Output", "op0", "").
			AddRow(int64(0), int64(1), int64(0), int64(1), "Aggregate", "op1", "1,2").
			AddRow(int64(1), int64(0), nil, int64(0), "TableScan", "op2", ""))

	result, err := store.Verify(context.Background(), "sha256", archiveSummary())
	require.NoError(t, err)
	assert.Equal(t, verifier.MethodSHA256, result.Method)
	require.Len(t, result.Results, 3)
	for _, r := range result.Results {
		assert.True(t, r.Match, r.ErrorMessage)
		assert.Equal(t, r.ExpectedHash, r.ArchivedHash)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_Skip(t *testing.T) {
	store, mock, _ := newTestStore(t)

	result, err := store.Verify(context.Background(), "skip", archiveSummary())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TablesVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_UnknownMethod(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Verify(context.Background(), "md5", archiveSummary())
	assert.Error(t, err)
}

func TestVerificationTables_NoStageTree(t *testing.T) {
	store, _, _ := newTestStore(t)
	summary := archiveSummary()
	summary.OutputStage = nil

	tables := store.verificationTables(summary)
	require.Len(t, tables, 3)
	assert.Len(t, tables[0].Expected, 1)
	assert.Equal(t, 0, tables[0].Expected[0][6])
	assert.Empty(t, tables[1].Expected)
	assert.Empty(t, tables[2].Expected)
}
