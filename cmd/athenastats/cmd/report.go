package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/report"
)

var (
	reportFormat string
	noColor      bool
	maxDepth     int
	textfile     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report timing, rows and stages of a query execution",
	Long: `Report retrieves the execution status and runtime statistics of a
query execution and prints a summary.

The summary shows:
  - Execution status, work group, engine and data scanned
  - Elapsed, queued, planning, execution and analysis time
  - Input and output rows and bytes
  - The stage tree with each stage's operator plan

Example:
  athenastats report --config athenastats.yaml -q 2f6f7a1e-...
  athenastats report --format json --textfile /var/lib/node_exporter/athena.prom`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "",
		fmt.Sprintf("Override report format (%s)", strings.Join(report.Formats, ", ")))
	reportCmd.Flags().BoolVar(&noColor, "no-color", false,
		"Disable colored state output")
	reportCmd.Flags().IntVar(&maxDepth, "max-depth", 0,
		"Limit the rendered stage and operator tree depth (0 = unlimited)")
	reportCmd.Flags().StringVar(&textfile, "textfile", "",
		"Also write Prometheus gauges to this textfile")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.retrieve()
	if err != nil {
		return fmt.Errorf("failed to retrieve query execution: %w", err)
	}

	reportLog := s.log
	if cfg.Report.Format == "log" {
		l, err := logger.NewReport(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize report logger: %w", err)
		}
		defer func() { _ = l.Sync() }()
		reportLog = l.WithRun(s.runID)
	}

	r, err := report.New(cfg.Report.Format, outputWriter, report.Options{
		Color:    cfg.Report.Color,
		MaxDepth: cfg.Report.MaxDepth,
	}, reportLog)
	if err != nil {
		return err
	}
	if err := r.Report(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Report.Textfile != "" {
		if err := report.WriteTextfile(cfg.Report.Textfile, summary); err != nil {
			return err
		}
		s.log.Infow("Wrote Prometheus textfile", "path", cfg.Report.Textfile)
	}

	return nil
}
