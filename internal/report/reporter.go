// Package report renders ExecutionSummary values for people and machines.
package report

import (
	"fmt"
	"io"

	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/stats"
)

// Reporter writes one summary in a specific format.
type Reporter interface {
	Report(s *stats.ExecutionSummary) error
}

// Options tunes human-readable output.
type Options struct {
	Color    bool
	MaxDepth int // 0 renders the full tree
	PlanOnly bool
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "yaml", "log"}

// New returns the reporter for format. Text, JSON and YAML go to w; the log
// format goes to log.
func New(format string, w io.Writer, opts Options, log *logger.Logger) (Reporter, error) {
	switch format {
	case "", "text":
		return &TextReporter{w: w, opts: opts}, nil
	case "json":
		return &JSONReporter{w: w}, nil
	case "yaml":
		return &YAMLReporter{w: w}, nil
	case "log":
		if log == nil {
			log = logger.NewDefault()
		}
		return &LogReporter{log: log}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
