// Package config provides configuration structures and loading for athenastats.
package config

// Config represents the complete application configuration.
type Config struct {
	AWS     AWSConfig     `yaml:"aws" mapstructure:"aws"`
	Query   QueryConfig   `yaml:"query" mapstructure:"query"`
	Mapping MappingConfig `yaml:"mapping" mapstructure:"mapping"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// AWSConfig holds the static credentials and endpoint settings for the Athena client.
type AWSConfig struct {
	Region         string `yaml:"region" mapstructure:"region"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key"`
	SessionToken   string `yaml:"session_token" mapstructure:"session_token"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"` // optional, for VPC endpoints or local stubs
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// QueryConfig identifies the query execution to inspect.
type QueryConfig struct {
	ExecutionID string `yaml:"execution_id" mapstructure:"execution_id"`
}

// MappingConfig bounds the stage and plan-node tree mapping.
type MappingConfig struct {
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
	MaxNodes int `yaml:"max_nodes" mapstructure:"max_nodes"`
}

// ReportConfig represents reporter settings.
type ReportConfig struct {
	Format   string `yaml:"format" mapstructure:"format"` // text, json, yaml or log
	Color    bool   `yaml:"color" mapstructure:"color"`
	MaxDepth int    `yaml:"max_depth" mapstructure:"max_depth"` // 0 renders the full tree
	Textfile string `yaml:"textfile" mapstructure:"textfile"`   // prometheus textfile path, empty disables
}

// ArchiveConfig represents the optional MySQL archive of retrieved summaries.
type ArchiveConfig struct {
	Enabled            bool           `yaml:"enabled" mapstructure:"enabled"`
	TablePrefix        string         `yaml:"table_prefix" mapstructure:"table_prefix"`
	LockTimeoutSeconds int            `yaml:"lock_timeout_seconds" mapstructure:"lock_timeout_seconds"` // -1 waits forever
	Verify             string         `yaml:"verify" mapstructure:"verify"`                             // count, sha256 or skip
	Database           DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		AWS: AWSConfig{
			Region:         "ap-south-1",
			MaxRetries:     3,
			TimeoutSeconds: 30,
		},
		Mapping: MappingConfig{
			MaxDepth: 1000,
			MaxNodes: 1000000,
		},
		Report: ReportConfig{
			Format: "text",
			Color:  true,
		},
		Archive: ArchiveConfig{
			Enabled:            false,
			TablePrefix:        "athena_",
			LockTimeoutSeconds: 10,
			Verify:             "count",
			Database: DatabaseConfig{
				Port:               3306,
				TLS:                "preferred",
				MaxConnections:     4,
				MaxIdleConnections: 2,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// CLIOverrides contains flag values that override config file settings.
// Zero values leave the file setting untouched.
type CLIOverrides struct {
	LogLevel         string
	LogFormat        string
	Region           string
	QueryExecutionID string
	ReportFormat     string
	NoColor          bool
	MaxDepth         int
	Textfile         string
	VerifyMethod     string
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o CLIOverrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Region != "" {
		c.AWS.Region = o.Region
	}
	if o.QueryExecutionID != "" {
		c.Query.ExecutionID = o.QueryExecutionID
	}
	if o.ReportFormat != "" {
		c.Report.Format = o.ReportFormat
	}
	if o.NoColor {
		c.Report.Color = false
	}
	if o.MaxDepth > 0 {
		c.Report.MaxDepth = o.MaxDepth
	}
	if o.Textfile != "" {
		c.Report.Textfile = o.Textfile
	}
	if o.VerifyMethod != "" {
		c.Archive.Verify = o.VerifyMethod
	}
}
