package archiver

import (
	"context"
	"strings"

	"github.com/dbsmedya/athenastats/internal/stats"
	"github.com/dbsmedya/athenastats/internal/verifier"
)

// Verify reads the rows archived for summary back and compares them with the
// rows Save would write. method is one of count, sha256 or skip.
func (s *Store) Verify(ctx context.Context, method string, summary *stats.ExecutionSummary) (*verifier.VerifyStats, error) {
	v, err := verifier.NewVerifier(s.db, verifier.VerificationMethod(method), s.logger)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, s.verificationTables(summary))
}

// verificationTables lists the executions, stages and plan node rows expected
// for summary, in the order and form they are read back.
func (s *Store) verificationTables(summary *stats.ExecutionSummary) []verifier.Table {
	stageRows, planRows := flatten(summary.OutputStage)
	id := summary.QueryExecutionID

	executions := verifier.Table{
		Name:      s.executions,
		KeyColumn: "query_execution_id",
		Key:       id,
		Columns: []string{"status", "work_group", "data_scanned_bytes",
			"elapsed_ms", "total_execution_ms", "output_rows", "stage_count"},
		Expected: [][]interface{}{{
			summary.Status, summary.WorkGroup, summary.DataScannedBytes,
			summary.ElapsedTimeMs, summary.TotalExecutionTimeMs, summary.OutputRows, len(stageRows),
		}},
	}

	stages := verifier.Table{
		Name:      s.stages,
		KeyColumn: "query_execution_id",
		Key:       id,
		Columns: []string{"stage_seq", "parent_seq", "depth", "stage_id", "state",
			"input_rows", "input_bytes", "output_rows", "output_bytes", "execution_ms"},
		OrderBy: []string{"stage_seq"},
	}
	for _, r := range stageRows {
		st := r.stage
		stages.Expected = append(stages.Expected, []interface{}{
			r.seq, r.parent, r.depth, st.StageID, st.State,
			st.InputRows, st.InputBytes, st.OutputRows, st.OutputBytes, st.ExecutionTimeMs,
		})
	}

	plans := verifier.Table{
		Name:      s.planNodes,
		KeyColumn: "query_execution_id",
		Key:       id,
		Columns:   []string{"stage_seq", "node_seq", "parent_seq", "depth", "name", "identifier", "remote_sources"},
		OrderBy:   []string{"stage_seq", "node_seq"},
	}
	for _, r := range planRows {
		n := r.node
		plans.Expected = append(plans.Expected, []interface{}{
			r.stageSeq, r.seq, r.parent, r.depth, n.Name, n.Identifier, strings.Join(n.RemoteSources, ","),
		})
	}

	return []verifier.Table{executions, stages, plans}
}
