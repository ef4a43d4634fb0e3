// Package sqlutil quotes and validates MySQL identifiers for the archive tables.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a MySQL identifier with backticks, doubling any
// embedded backtick.
// Example: "athena_query_stages" -> "`athena_query_stages`"
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Archive table names are built from a configurable prefix, so only
// alphanumerics and underscores are accepted.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// maxIdentifierLength is MySQL's limit for table names.
const maxIdentifierLength = 64

// IsValidIdentifier reports whether name is safe to splice into DDL and DML.
func IsValidIdentifier(name string) bool {
	return len(name) <= maxIdentifierLength && validIdentifierRegex.MatchString(name)
}

// TableName joins prefix and name, validates the result and returns it quoted.
func TableName(prefix, name string) (string, error) {
	full := prefix + name
	if !IsValidIdentifier(full) {
		return "", &InvalidIdentifierError{Name: full}
	}
	return QuoteIdentifier(full), nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must be at most 64 alphanumeric characters or underscores)"
}
