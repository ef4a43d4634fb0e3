package stats

import "fmt"

// IncompleteExecutionError reports a timestamp or statistic that Athena left
// out of a response but that a derived value depends on.
type IncompleteExecutionError struct {
	QueryExecutionID string
	Field            string
}

func (e *IncompleteExecutionError) Error() string {
	if e.QueryExecutionID == "" {
		return fmt.Sprintf("incomplete execution: %s is missing", e.Field)
	}
	return fmt.Sprintf("incomplete execution %s: %s is missing", e.QueryExecutionID, e.Field)
}

// MalformedTreeError is returned when a stage or plan-node tree exceeds the
// mapping limits or contains a nil node.
type MalformedTreeError struct {
	Path   string // position of the offending node, e.g. "stage.sub[0].plan[2]"
	Reason string
	// Depth is the number of path segments below the root. Path elides the
	// middle of long paths, Depth does not.
	Depth int

	// segments are collected innermost first while the mapper unwinds.
	segments []string
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed tree at %s: %s", e.Path, e.Reason)
}
