package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dbsmedya/athenastats/internal/stats"
)

// JSONReporter writes the summary as indented JSON.
type JSONReporter struct {
	w io.Writer
}

func (r *JSONReporter) Report(s *stats.ExecutionSummary) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary as JSON: %w", err)
	}
	return nil
}
