package cmd

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/athenastats/internal/config"
	"github.com/dbsmedya/athenastats/internal/lock"
)

const archiveConfig = baseConfig + `
archive:
  enabled: true
  table_prefix: athena_
  database:
    host: localhost
    port: 3306
    user: stats
    password: secret
    database: athena_archive
`

func expectArchiveLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WithArgs("athenastats:q-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))
}

func expectArchiveUnlock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")).
		WithArgs("athenastats:q-1").
		WillReturnRows(sqlmock.NewRows([]string{"RELEASE_LOCK"}).AddRow(1))
}

func expectCount(mock sqlmock.Sqlmock, table string, count int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `" + table + "`")).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(count))
}

func TestArchiveCommandStructure(t *testing.T) {
	assert.NotNil(t, archiveCmd)
	assert.Equal(t, "archive", archiveCmd.Use)
	assert.NotEmpty(t, archiveCmd.Short)
	assert.NotEmpty(t, archiveCmd.Long)
	assert.NotNil(t, archiveCmd.RunE)

	flag := archiveCmd.Flags().Lookup("create-schema")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)

	flag = archiveCmd.Flags().Lookup("verify")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestRunArchive_Disabled(t *testing.T) {
	resetFlags(t)
	writeConfig(t, baseConfig)
	mock := withMockAthena(t)

	err := runArchive(archiveCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive is not enabled")
	assert.Empty(t, mock.Calls)
}

func TestRunArchive(t *testing.T) {
	resetFlags(t)
	writeConfig(t, archiveConfig)
	withMockAthena(t)
	out := captureOutput(t)
	createSchema = true

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	withArchiveDB(t, db)

	for _, table := range []string{"athena_query_executions", "athena_query_stages", "athena_query_plan_nodes"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `" + table + "`")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	expectArchiveLock(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `athena_query_executions`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `athena_query_plan_nodes`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `athena_query_stages`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	stages := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO `athena_query_stages`"))
	stages.ExpectExec().WithArgs("q-1", 0, nil, 0, 0, "FINISHED", 0, 0, 0, 0, 40).
		WillReturnResult(sqlmock.NewResult(1, 1))
	stages.ExpectExec().WithArgs("q-1", 1, 0, 1, 1, "FINISHED", 0, 0, 0, 0, 30).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO `athena_query_plan_nodes`")).
		ExpectExec().WithArgs("q-1", 0, 0, nil, 0, "Output", "0", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectArchiveUnlock(mock)
	expectCount(mock, "athena_query_executions", 1)
	expectCount(mock, "athena_query_stages", 2)
	expectCount(mock, "athena_query_plan_nodes", 1)
	mock.ExpectClose()

	require.NoError(t, runArchive(archiveCmd, nil))

	assert.Contains(t, out.String(), "Archived q-1 (run ")
	assert.Contains(t, out.String(), "2 stages, 1 plan nodes")
	assert.Contains(t, out.String(), "✓ Verified archive (count): 3 tables, 4 rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunArchive_SaveFailureRollsBack(t *testing.T) {
	resetFlags(t)
	writeConfig(t, archiveConfig)
	withMockAthena(t)
	captureOutput(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	withArchiveDB(t, db)

	expectArchiveLock(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `athena_query_executions`")).
		WillReturnError(errors.New("table doesn't exist"))
	mock.ExpectRollback()
	expectArchiveUnlock(mock)
	mock.ExpectClose()

	err = runArchive(archiveCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to archive query execution")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunArchive_VerifySkippedByFlag(t *testing.T) {
	resetFlags(t)
	writeConfig(t, archiveConfig)
	withMockAthena(t)
	out := captureOutput(t)
	verifyMethod = "skip"

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	withArchiveDB(t, db)

	expectArchiveLock(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `athena_query_executions`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `athena_query_plan_nodes`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `athena_query_stages`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	stages := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO `athena_query_stages`"))
	stages.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	stages.ExpectExec().WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO `athena_query_plan_nodes`")).
		ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectArchiveUnlock(mock)
	mock.ExpectClose()

	require.NoError(t, runArchive(archiveCmd, nil))
	assert.NotContains(t, out.String(), "Verified archive")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunArchive_LockBusy(t *testing.T) {
	resetFlags(t)
	writeConfig(t, archiveConfig+"  lock_timeout_seconds: 0\n")
	withMockAthena(t)
	captureOutput(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	withArchiveDB(t, db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WithArgs("athenastats:q-1", 0).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(0))
	mock.ExpectClose()

	err = runArchive(archiveCmd, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunArchive_InvalidVerifyFlagRejectedBeforeWrites(t *testing.T) {
	resetFlags(t)
	writeConfig(t, archiveConfig)
	api := withMockAthena(t)
	out := captureOutput(t)
	verifyMethod = "bogus"

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	withArchiveDB(t, db)

	err = runArchive(archiveCmd, nil)
	require.Error(t, err)

	var cfgErr *config.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "archive.verify")
	assert.Empty(t, api.Calls)
	assert.Empty(t, out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
