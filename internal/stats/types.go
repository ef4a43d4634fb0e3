// Package stats holds the application-owned records describing one Athena
// query execution and the mapping from the SDK's runtime-statistics tree.
package stats

import "time"

// ExecutionSummary is the assembled view of one query execution.
// It is built once by Assemble and never mutated afterwards.
type ExecutionSummary struct {
	QueryExecutionID  string `json:"query_execution_id" yaml:"query_execution_id"`
	Status            string `json:"status" yaml:"status"`
	StateChangeReason string `json:"state_change_reason,omitempty" yaml:"state_change_reason,omitempty"`

	Query         string `json:"query" yaml:"query"`
	StatementType string `json:"statement_type,omitempty" yaml:"statement_type,omitempty"`
	WorkGroup     string `json:"work_group" yaml:"work_group"`
	Catalog       string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Database      string `json:"database,omitempty" yaml:"database,omitempty"`
	EngineVersion string `json:"engine_version,omitempty" yaml:"engine_version,omitempty"`

	DataScannedBytes int64     `json:"data_scanned_bytes" yaml:"data_scanned_bytes"`
	StartTime        time.Time `json:"start_time" yaml:"start_time"`
	EndTime          time.Time `json:"end_time" yaml:"end_time"`

	ElapsedTimeMs              int64 `json:"elapsed_time_ms" yaml:"elapsed_time_ms"`
	QueuedTimeMs               int64 `json:"queued_time_ms" yaml:"queued_time_ms"`
	PlanningTimeMs             int64 `json:"planning_time_ms" yaml:"planning_time_ms"`
	ExecutionTimeMs            int64 `json:"execution_time_ms" yaml:"execution_time_ms"`
	AnalysisTimeMs             int64 `json:"analysis_time_ms" yaml:"analysis_time_ms"`
	TotalExecutionTimeMs       int64 `json:"total_execution_time_ms" yaml:"total_execution_time_ms"`
	ServicePreProcessingTimeMs int64 `json:"service_pre_processing_time_ms" yaml:"service_pre_processing_time_ms"`
	ServiceProcessingTimeMs    int64 `json:"service_processing_time_ms" yaml:"service_processing_time_ms"`

	InputRows   int64 `json:"input_rows" yaml:"input_rows"`
	InputBytes  int64 `json:"input_bytes" yaml:"input_bytes"`
	OutputRows  int64 `json:"output_rows" yaml:"output_rows"`
	OutputBytes int64 `json:"output_bytes" yaml:"output_bytes"`

	// OutputStage is nil when Athena reports no stage tree (DDL, cached results).
	OutputStage *StageNode `json:"output_stage,omitempty" yaml:"output_stage,omitempty"`
}

// Elapsed returns the wall-clock time between submission and completion.
func (s *ExecutionSummary) Elapsed() time.Duration {
	return time.Duration(s.ElapsedTimeMs) * time.Millisecond
}

// Analysis returns the time not attributed to planning or engine execution.
// It is negative when the upstream statistics are inconsistent.
func (s *ExecutionSummary) Analysis() time.Duration {
	return time.Duration(s.AnalysisTimeMs) * time.Millisecond
}

// StageNode is one unit of distributed execution. It owns its plan tree and
// its sub-stages.
type StageNode struct {
	StageID         int64       `json:"stage_id" yaml:"stage_id"`
	State           string      `json:"state" yaml:"state"`
	InputRows       int64       `json:"input_rows" yaml:"input_rows"`
	InputBytes      int64       `json:"input_bytes" yaml:"input_bytes"`
	OutputRows      int64       `json:"output_rows" yaml:"output_rows"`
	OutputBytes     int64       `json:"output_bytes" yaml:"output_bytes"`
	ExecutionTimeMs int64       `json:"execution_time_ms" yaml:"execution_time_ms"`
	Plan            *PlanNode   `json:"plan,omitempty" yaml:"plan,omitempty"`
	SubStages       []StageNode `json:"sub_stages" yaml:"sub_stages"`
}

// Count returns the number of stages in the tree rooted at s.
func (s *StageNode) Count() int {
	n := 0
	s.Walk(func(*StageNode, int) bool {
		n++
		return true
	})
	return n
}

// Depth returns the number of levels in the tree rooted at s (1 for a leaf).
func (s *StageNode) Depth() int {
	deepest := 0
	s.Walk(func(_ *StageNode, depth int) bool {
		if depth+1 > deepest {
			deepest = depth + 1
		}
		return true
	})
	return deepest
}

// Walk visits the stage tree in pre-order. Returning false from fn skips the
// children of the visited stage.
func (s *StageNode) Walk(fn func(stage *StageNode, depth int) bool) {
	walkStage(s, 0, fn)
}

func walkStage(s *StageNode, depth int, fn func(*StageNode, int) bool) {
	if !fn(s, depth) {
		return
	}
	for i := range s.SubStages {
		walkStage(&s.SubStages[i], depth+1, fn)
	}
}

// PlanNode is one operator of a stage's physical plan.
type PlanNode struct {
	Name          string     `json:"name" yaml:"name"`
	Identifier    string     `json:"identifier" yaml:"identifier"`
	RemoteSources []string   `json:"remote_sources,omitempty" yaml:"remote_sources,omitempty"`
	Children      []PlanNode `json:"children" yaml:"children"`
}

// Count returns the number of operators in the tree rooted at p.
func (p *PlanNode) Count() int {
	n := 0
	p.Walk(func(*PlanNode, int) bool {
		n++
		return true
	})
	return n
}

// Depth returns the number of levels in the tree rooted at p (1 for a leaf).
func (p *PlanNode) Depth() int {
	deepest := 0
	p.Walk(func(_ *PlanNode, depth int) bool {
		if depth+1 > deepest {
			deepest = depth + 1
		}
		return true
	})
	return deepest
}

// Walk visits the operator tree in pre-order. Returning false from fn skips
// the children of the visited node.
func (p *PlanNode) Walk(fn func(node *PlanNode, depth int) bool) {
	walkPlan(p, 0, fn)
}

func walkPlan(p *PlanNode, depth int, fn func(*PlanNode, int) bool) {
	if !fn(p, depth) {
		return
	}
	for i := range p.Children {
		walkPlan(&p.Children[i], depth+1, fn)
	}
}
