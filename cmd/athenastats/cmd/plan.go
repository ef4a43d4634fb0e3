package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/athenastats/internal/report"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the stage and operator tree of a query execution",
	Long: `Plan retrieves a query execution and prints only its stage tree.

Each stage line shows its state, rows and bytes in and out, and execution
time, followed by the physical operators of that stage. Operators fed by
other stages list those stage ids after an arrow.

Example:
  athenastats plan -q 2f6f7a1e-... --max-depth 4`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&noColor, "no-color", false,
		"Disable colored state output")
	planCmd.Flags().IntVar(&maxDepth, "max-depth", 0,
		"Limit the rendered tree depth (0 = unlimited)")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	r, err := report.New("text", outputWriter, report.Options{
		Color:    cfg.Report.Color,
		MaxDepth: cfg.Report.MaxDepth,
		PlanOnly: true,
	}, s.log)
	if err != nil {
		return err
	}
	return r.Report(summary)
}
