package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/athenastats/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile          string
	envFile          string
	logLevel         string
	logFormat        string
	region           string
	queryExecutionID string
)

var rootCmd = &cobra.Command{
	Use:   "athenastats",
	Short: "Amazon Athena query execution statistics",
	Long: `Fetch the execution status and runtime statistics of a finished
Amazon Athena query and report where its time went.

Features:
  - Timing breakdown (queued, planning, execution, analysis)
  - Row and byte counts for the query and every stage
  - Stage tree with the physical operator plan of each stage
  - Text, JSON, YAML and structured log output
  - Prometheus textfile export and MySQL archive of summaries`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "athenastats.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Dotenv file loaded before the config (ignored when the default is missing)")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Athena overrides
	rootCmd.PersistentFlags().StringVar(&region, "region", "",
		"Override AWS region")
	rootCmd.PersistentFlags().StringVarP(&queryExecutionID, "query-execution-id", "q", "",
		"Override the query execution to inspect")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.CLIOverrides {
	return config.CLIOverrides{
		LogLevel:         logLevel,
		LogFormat:        logFormat,
		Region:           region,
		QueryExecutionID: queryExecutionID,
		ReportFormat:     reportFormat,
		NoColor:          noColor,
		MaxDepth:         maxDepth,
		Textfile:         textfile,
		VerifyMethod:     verifyMethod,
	}
}

// loadConfig reads the env file and config file, applies flag overrides and
// validates the result. Every failure is a *config.ConfigError.
func loadConfig() (*config.Config, error) {
	required := rootCmd.PersistentFlags().Changed("env-file")
	if err := config.LoadEnvFile(envFile, required); err != nil {
		return nil, err
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}

	cfg.ApplyOverrides(GetCLIOverrides())

	if err := cfg.Validate(); err != nil {
		return nil, &config.ConfigError{Path: GetConfigFile(), Err: err}
	}
	return cfg, nil
}
