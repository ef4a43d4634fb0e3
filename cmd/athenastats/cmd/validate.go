package cmd

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/spf13/cobra"
)

var checkAccess bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and optionally Athena access",
	Long: `Validate checks the configuration file without contacting AWS.

Checks performed:
  - Configuration syntax and required fields
  - AWS credentials, region and query execution id are present
  - Report and mapping limits are sane
  - Archive database settings, when the archive is enabled

With --check-access, one GetQueryExecution call proves the credentials can
read the configured query execution.

Example:
  athenastats validate --config athenastats.yaml --check-access`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&checkAccess, "check-access", false,
		"Call GetQueryExecution once to verify credentials")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := outputWriter
	fmt.Fprintf(w, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(w, "Config file:        %s\n", GetConfigFile())
	fmt.Fprintf(w, "Region:             %s\n", cfg.AWS.Region)
	fmt.Fprintf(w, "Query execution:    %s\n", cfg.Query.ExecutionID)
	fmt.Fprintf(w, "Report format:      %s\n", cfg.Report.Format)
	fmt.Fprintf(w, "Mapping limits:     depth %d, nodes %d\n", cfg.Mapping.MaxDepth, cfg.Mapping.MaxNodes)
	if cfg.Archive.Enabled {
		fmt.Fprintf(w, "Archive:            %s@%s:%d/%s (prefix %q)\n",
			cfg.Archive.Database.User, cfg.Archive.Database.Host, cfg.Archive.Database.Port,
			cfg.Archive.Database.Database, cfg.Archive.TablePrefix)
		fmt.Fprintf(w, "Archive verify:     %s (lock timeout %ds)\n", cfg.Archive.Verify, cfg.Archive.LockTimeoutSeconds)
	} else {
		fmt.Fprintf(w, "Archive:            disabled\n")
	}
	fmt.Fprintf(w, "✓ Configuration is valid\n")

	if !checkAccess {
		return nil
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	exec, err := s.client.GetExecutionStatus(s.ctx, cfg.Query.ExecutionID)
	if err != nil {
		return fmt.Errorf("athena access check failed: %w", err)
	}

	state := "UNKNOWN"
	if exec != nil && exec.Status != nil {
		state = aws.StringValue(exec.Status.State)
	}
	fmt.Fprintf(w, "✓ Athena access verified (query state: %s)\n", state)
	return nil
}
