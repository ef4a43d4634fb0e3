// Package archiver persists retrieved execution summaries to MySQL so runs can
// be compared over time.
package archiver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/athenastats/internal/lock"
	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/sqlutil"
	"github.com/dbsmedya/athenastats/internal/stats"
)

// SaveStats describes one Save call.
type SaveStats struct {
	RunID     string
	Stages    int
	PlanNodes int
	Duration  time.Duration
}

// Store writes summaries into three tables sharing a configurable prefix:
// executions, stages and plan nodes. Stage and plan rows carry their pre-order
// sequence, parent sequence and depth so the trees can be rebuilt.
type Store struct {
	db         *sql.DB
	executions string
	stages     string
	planNodes  string
	logger     *logger.Logger
	now        func() time.Time

	// lockTimeout is the GET_LOCK wait in seconds; -1 waits forever.
	lockTimeout int
}

// NewStore creates a Store. The prefix must form valid identifiers.
func NewStore(db *sql.DB, tablePrefix string, log *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("archive database is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Store{db: db, logger: log, now: time.Now, lockTimeout: lock.TimeoutMedium}

	var err error
	if s.executions, err = sqlutil.TableName(tablePrefix, "query_executions"); err != nil {
		return nil, err
	}
	if s.stages, err = sqlutil.TableName(tablePrefix, "query_stages"); err != nil {
		return nil, err
	}
	if s.planNodes, err = sqlutil.TableName(tablePrefix, "query_plan_nodes"); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLockTimeout sets how long Save waits for another run archiving the same
// query execution.
func (s *Store) SetLockTimeout(seconds int) {
	s.lockTimeout = seconds
}

// EnsureSchema creates the archive tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  query_execution_id VARCHAR(128) NOT NULL,
  run_id CHAR(36) NOT NULL,
  status VARCHAR(32) NOT NULL,
  statement_type VARCHAR(32) NOT NULL DEFAULT '',
  work_group VARCHAR(128) NOT NULL DEFAULT '',
  catalog_name VARCHAR(255) NOT NULL DEFAULT '',
  database_name VARCHAR(255) NOT NULL DEFAULT '',
  engine_version VARCHAR(64) NOT NULL DEFAULT '',
  query_text MEDIUMTEXT,
  data_scanned_bytes BIGINT NOT NULL DEFAULT 0,
  start_time DATETIME(3) NOT NULL,
  end_time DATETIME(3) NOT NULL,
  elapsed_ms BIGINT NOT NULL,
  queued_ms BIGINT NOT NULL,
  planning_ms BIGINT NOT NULL,
  execution_ms BIGINT NOT NULL,
  analysis_ms BIGINT NOT NULL,
  total_execution_ms BIGINT NOT NULL,
  input_rows BIGINT NOT NULL DEFAULT 0,
  input_bytes BIGINT NOT NULL DEFAULT 0,
  output_rows BIGINT NOT NULL DEFAULT 0,
  output_bytes BIGINT NOT NULL DEFAULT 0,
  stage_count INT NOT NULL DEFAULT 0,
  archived_at DATETIME(3) NOT NULL,
  PRIMARY KEY (query_execution_id)
) ENGINE=InnoDB`, s.executions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  query_execution_id VARCHAR(128) NOT NULL,
  stage_seq INT NOT NULL,
  parent_seq INT NULL,
  depth INT NOT NULL,
  stage_id BIGINT NOT NULL,
  state VARCHAR(32) NOT NULL DEFAULT '',
  input_rows BIGINT NOT NULL DEFAULT 0,
  input_bytes BIGINT NOT NULL DEFAULT 0,
  output_rows BIGINT NOT NULL DEFAULT 0,
  output_bytes BIGINT NOT NULL DEFAULT 0,
  execution_ms BIGINT NOT NULL DEFAULT 0,
  PRIMARY KEY (query_execution_id, stage_seq)
) ENGINE=InnoDB`, s.stages),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  query_execution_id VARCHAR(128) NOT NULL,
  stage_seq INT NOT NULL,
  node_seq INT NOT NULL,
  parent_seq INT NULL,
  depth INT NOT NULL,
  name VARCHAR(255) NOT NULL DEFAULT '',
  identifier VARCHAR(64) NOT NULL DEFAULT '',
  remote_sources VARCHAR(1024) NOT NULL DEFAULT '',
  PRIMARY KEY (query_execution_id, stage_seq, node_seq)
) ENGINE=InnoDB`, s.planNodes),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create archive schema: %w", err)
		}
	}
	s.logger.Debug("Archive schema is in place")
	return nil
}

// Save writes summary in a single transaction, replacing any rows previously
// archived for the same query execution. An empty runID gets a fresh UUID.
// Concurrent saves of one execution are serialized by an advisory lock held
// on the same connection as the transaction.
func (s *Store) Save(ctx context.Context, runID string, summary *stats.ExecutionSummary) (*SaveStats, error) {
	if summary == nil {
		return nil, fmt.Errorf("summary is nil")
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	startTime := time.Now()
	stageRows, planRows := flatten(summary.OutputStage)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive connection: %w", err)
	}
	defer conn.Close()

	advisory := lock.NewAdvisoryLock(conn, lock.ExecutionLockName(summary.QueryExecutionID))
	err = advisory.WithLock(ctx, s.lockTimeout, func() error {
		return s.write(ctx, conn, runID, summary, stageRows, planRows)
	}, func(err error) {
		s.logger.Warnf("Failed to release archive lock %s: %v", advisory.LockName(), err)
	})
	if err != nil {
		return nil, err
	}

	result := &SaveStats{
		RunID:     runID,
		Stages:    len(stageRows),
		PlanNodes: len(planRows),
		Duration:  time.Since(startTime),
	}

	s.logger.Infof("Archived query execution %s: %d stages, %d plan nodes, duration: %s",
		summary.QueryExecutionID, result.Stages, result.PlanNodes, result.Duration)

	return result, nil
}

func (s *Store) write(ctx context.Context, conn *sql.Conn, runID string, summary *stats.ExecutionSummary, stageRows []stageRow, planRows []planRow) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			s.logger.Warn("Rolling back archive transaction")
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Errorf("Failed to rollback transaction: %v", rbErr)
			}
		}
	}()

	if err := s.upsertExecution(ctx, tx, runID, summary, len(stageRows)); err != nil {
		return err
	}

	for _, table := range []string{s.planNodes, s.stages} {
		query := fmt.Sprintf("DELETE FROM %s WHERE query_execution_id = ?", table)
		if _, err := tx.ExecContext(ctx, query, summary.QueryExecutionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := s.insertStages(ctx, tx, summary.QueryExecutionID, stageRows); err != nil {
		return err
	}
	if err := s.insertPlanNodes(ctx, tx, summary.QueryExecutionID, planRows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	tx = nil
	return nil
}

func (s *Store) upsertExecution(ctx context.Context, tx *sql.Tx, runID string, e *stats.ExecutionSummary, stageCount int) error {
	columns := []string{
		"query_execution_id", "run_id", "status", "statement_type", "work_group",
		"catalog_name", "database_name", "engine_version", "query_text",
		"data_scanned_bytes", "start_time", "end_time",
		"elapsed_ms", "queued_ms", "planning_ms", "execution_ms", "analysis_ms", "total_execution_ms",
		"input_rows", "input_bytes", "output_rows", "output_bytes",
		"stage_count", "archived_at",
	}
	values := []interface{}{
		e.QueryExecutionID, runID, e.Status, e.StatementType, e.WorkGroup,
		e.Catalog, e.Database, e.EngineVersion, e.Query,
		e.DataScannedBytes, e.StartTime.UTC(), e.EndTime.UTC(),
		e.ElapsedTimeMs, e.QueuedTimeMs, e.PlanningTimeMs, e.ExecutionTimeMs, e.AnalysisTimeMs, e.TotalExecutionTimeMs,
		e.InputRows, e.InputBytes, e.OutputRows, e.OutputBytes,
		stageCount, s.now().UTC(),
	}

	updates := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		s.executions,
		strings.Join(columns, ", "),
		placeholders(len(columns)),
		strings.Join(updates, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to write execution row: %w", err)
	}
	return nil
}

func (s *Store) insertStages(ctx context.Context, tx *sql.Tx, id string, rows []stageRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (query_execution_id, stage_seq, parent_seq, depth, stage_id, state,
  input_rows, input_bytes, output_rows, output_bytes, execution_ms) VALUES (%s)`, s.stages, placeholders(11))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare stage insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("archive interrupted: %w", err)
		}
		st := r.stage
		if _, err := stmt.ExecContext(ctx, id, r.seq, r.parent, r.depth, st.StageID, st.State,
			st.InputRows, st.InputBytes, st.OutputRows, st.OutputBytes, st.ExecutionTimeMs); err != nil {
			return fmt.Errorf("failed to insert stage %d: %w", st.StageID, err)
		}
	}
	return nil
}

func (s *Store) insertPlanNodes(ctx context.Context, tx *sql.Tx, id string, rows []planRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (query_execution_id, stage_seq, node_seq, parent_seq, depth,
  name, identifier, remote_sources) VALUES (%s)`, s.planNodes, placeholders(8))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare plan node insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("archive interrupted: %w", err)
		}
		n := r.node
		if _, err := stmt.ExecContext(ctx, id, r.stageSeq, r.seq, r.parent, r.depth,
			n.Name, n.Identifier, strings.Join(n.RemoteSources, ",")); err != nil {
			return fmt.Errorf("failed to insert plan node %q: %w", n.Identifier, err)
		}
	}
	return nil
}

// stageRow is a stage in pre-order with its position in the tree.
type stageRow struct {
	seq    int
	parent sql.NullInt64
	depth  int
	stage  *stats.StageNode
}

// planRow is a plan node in pre-order within its stage.
type planRow struct {
	stageSeq int
	seq      int
	parent   sql.NullInt64
	depth    int
	node     *stats.PlanNode
}

// flatten lists stages and plan nodes in pre-order. A nil root yields no rows.
func flatten(root *stats.StageNode) ([]stageRow, []planRow) {
	var stages []stageRow
	var plans []planRow
	if root == nil {
		return stages, plans
	}

	var walkPlan func(stageSeq int, n *stats.PlanNode, parent sql.NullInt64, depth int, next *int)
	walkPlan = func(stageSeq int, n *stats.PlanNode, parent sql.NullInt64, depth int, next *int) {
		seq := *next
		*next++
		plans = append(plans, planRow{stageSeq: stageSeq, seq: seq, parent: parent, depth: depth, node: n})
		for i := range n.Children {
			walkPlan(stageSeq, &n.Children[i], sql.NullInt64{Int64: int64(seq), Valid: true}, depth+1, next)
		}
	}

	var walkStage func(st *stats.StageNode, parent sql.NullInt64, depth int)
	walkStage = func(st *stats.StageNode, parent sql.NullInt64, depth int) {
		seq := len(stages)
		stages = append(stages, stageRow{seq: seq, parent: parent, depth: depth, stage: st})
		if st.Plan != nil {
			next := 0
			walkPlan(seq, st.Plan, sql.NullInt64{}, 0, &next)
		}
		for i := range st.SubStages {
			walkStage(&st.SubStages[i], sql.NullInt64{Int64: int64(seq), Valid: true}, depth+1)
		}
	}

	walkStage(root, sql.NullInt64{}, 0)
	return stages, plans
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
