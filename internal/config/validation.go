package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/athenastats/internal/lock"
	"github.com/dbsmedya/athenastats/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateAWS()...)

	if c.Query.ExecutionID == "" {
		errors = append(errors, ValidationError{
			Field:   "query.execution_id",
			Message: "execution_id is required",
		})
	}

	errors = append(errors, c.validateMapping()...)
	errors = append(errors, c.validateReport()...)

	if c.Archive.Enabled {
		errors = append(errors, c.validateArchive()...)
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateAWS() ValidationErrors {
	var errors ValidationErrors

	if c.AWS.AccessKey == "" {
		errors = append(errors, ValidationError{
			Field:   "aws.access_key",
			Message: "access_key is required",
		})
	}

	if c.AWS.SecretKey == "" {
		errors = append(errors, ValidationError{
			Field:   "aws.secret_key",
			Message: "secret_key is required",
		})
	}

	if c.AWS.Region == "" {
		errors = append(errors, ValidationError{
			Field:   "aws.region",
			Message: "region is required",
		})
	}

	if c.AWS.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "aws.max_retries",
			Message: "max_retries cannot be negative",
		})
	}

	if c.AWS.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "aws.timeout_seconds",
			Message: "timeout_seconds cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateMapping() ValidationErrors {
	var errors ValidationErrors

	if c.Mapping.MaxDepth <= 0 {
		errors = append(errors, ValidationError{
			Field:   "mapping.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Mapping.MaxNodes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "mapping.max_nodes",
			Message: "max_nodes must be positive",
		})
	}

	return errors
}

func (c *Config) validateReport() ValidationErrors {
	var errors ValidationErrors

	validFormats := map[string]bool{"text": true, "json": true, "yaml": true, "log": true, "": true}
	if !validFormats[c.Report.Format] {
		errors = append(errors, ValidationError{
			Field:   "report.format",
			Message: "format must be 'text', 'json', 'yaml', or 'log'",
		})
	}

	if c.Report.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "report.max_depth",
			Message: "max_depth cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateArchive() ValidationErrors {
	var errors ValidationErrors
	db := &c.Archive.Database

	if c.Archive.TablePrefix != "" && !sqlutil.IsValidIdentifier(c.Archive.TablePrefix) {
		errors = append(errors, ValidationError{
			Field:   "archive.table_prefix",
			Message: "table_prefix must contain only alphanumeric characters and underscores",
		})
	}

	if c.Archive.LockTimeoutSeconds < lock.TimeoutInfinite {
		errors = append(errors, ValidationError{
			Field:   "archive.lock_timeout_seconds",
			Message: "lock_timeout_seconds must be -1 (wait forever) or greater",
		})
	}

	validVerify := map[string]bool{"count": true, "sha256": true, "skip": true, "": true}
	if !validVerify[c.Archive.Verify] {
		errors = append(errors, ValidationError{
			Field:   "archive.verify",
			Message: "verify must be 'count', 'sha256', or 'skip'",
		})
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "archive.database.host",
			Message: "host is required when archive is enabled",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "archive.database.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "archive.database.user",
			Message: "user is required when archive is enabled",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "archive.database.database",
			Message: "database name is required when archive is enabled",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "archive.database.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "archive.database.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "archive.database.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
