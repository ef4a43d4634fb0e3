package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigError is returned when configuration cannot be read, parsed or validated.
// It is always fatal and is raised before any network call.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// legacyKeys maps the flat keys of the original input_data.yaml onto their nested equivalents.
var legacyKeys = map[string]string{
	"access-key":         "aws.access_key",
	"secret-key":         "aws.secret_key",
	"query-execution-id": "query.execution_id",
}

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: configPath, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	cfg, err := LoadFromViper(v)
	if err != nil {
		return nil, &ConfigError{Path: configPath, Err: err}
	}
	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	applyLegacyKeys(v)

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process environment.
// Variables already set in the environment win. A missing file is only an error when
// required is true.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ConfigError{Path: path, Err: fmt.Errorf("failed to load env file: %w", err)}
	}
	return nil
}

func applyLegacyKeys(v *viper.Viper) {
	for legacy, key := range legacyKeys {
		if v.IsSet(legacy) && !v.IsSet(key) {
			v.Set(key, v.GetString(legacy))
		}
	}
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.AWS.AccessKey = expandEnvVar(cfg.AWS.AccessKey)
	cfg.AWS.SecretKey = expandEnvVar(cfg.AWS.SecretKey)
	cfg.AWS.SessionToken = expandEnvVar(cfg.AWS.SessionToken)
	cfg.AWS.Region = expandEnvVar(cfg.AWS.Region)
	cfg.AWS.Endpoint = expandEnvVar(cfg.AWS.Endpoint)

	cfg.Query.ExecutionID = expandEnvVar(cfg.Query.ExecutionID)

	cfg.Archive.Database.Host = expandEnvVar(cfg.Archive.Database.Host)
	cfg.Archive.Database.User = expandEnvVar(cfg.Archive.Database.User)
	cfg.Archive.Database.Password = expandEnvVar(cfg.Archive.Database.Password)
	cfg.Archive.Database.Database = expandEnvVar(cfg.Archive.Database.Database)

	cfg.Report.Textfile = expandEnvVar(cfg.Report.Textfile)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}
