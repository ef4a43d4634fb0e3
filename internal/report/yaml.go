package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/athenastats/internal/stats"
)

// YAMLReporter writes the summary as a YAML document.
type YAMLReporter struct {
	w io.Writer
}

func (r *YAMLReporter) Report(s *stats.ExecutionSummary) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary as YAML: %w", err)
	}
	return enc.Close()
}
