// Package verifier checks archived rows against the in-memory rows they were
// written from.
package verifier

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/sqlutil"
)

// VerificationMethod defines how to verify data integrity.
type VerificationMethod string

const (
	// MethodCount compares row counts (fast)
	MethodCount VerificationMethod = "count"
	// MethodSHA256 compares a SHA256 hash of every row (slower but more thorough)
	MethodSHA256 VerificationMethod = "sha256"
	// MethodSkip skips verification entirely
	MethodSkip VerificationMethod = "skip"
)

// ErrMismatch is wrapped by Verify when archived rows differ from the expected ones.
var ErrMismatch = errors.New("verification mismatch")

// Table describes the archived rows sharing one key value and the rows they
// are expected to hold.
type Table struct {
	// Name is the quoted table name.
	Name      string
	KeyColumn string
	Key       interface{}
	// Columns are read back and hashed in this order. Each Expected row holds
	// one value per column.
	Columns  []string
	OrderBy  []string
	Expected [][]interface{}
}

// VerifyResult holds verification results for a single table.
type VerifyResult struct {
	Table         string
	Method        VerificationMethod
	ExpectedCount int64
	ArchivedCount int64
	ExpectedHash  string
	ArchivedHash  string
	Match         bool
	ErrorMessage  string
}

// VerifyStats contains overall verification statistics.
type VerifyStats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	TotalRows      int64
	Method         VerificationMethod
	Results        []VerifyResult
}

// Verifier reads archived rows back and compares them with the expected rows.
type Verifier struct {
	db     *sql.DB
	method VerificationMethod
	logger *logger.Logger
}

// NewVerifier creates a verifier. An empty method defaults to MethodCount.
func NewVerifier(db *sql.DB, method VerificationMethod, log *logger.Logger) (*Verifier, error) {
	if db == nil {
		return nil, fmt.Errorf("archive database is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	switch method {
	case "":
		method = MethodCount
	case MethodCount, MethodSHA256, MethodSkip:
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", method)
	}

	return &Verifier{
		db:     db,
		method: method,
		logger: log,
	}, nil
}

// Verify checks each table in order and stops at the first mismatch.
func (v *Verifier) Verify(ctx context.Context, tables []Table) (*VerifyStats, error) {
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &VerifyStats{Method: MethodSkip}, nil
	}

	stats := &VerifyStats{Method: v.method}
	v.logger.Debugf("Starting verification (method=%s) for %d tables", v.method, len(tables))

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		var result *VerifyResult
		var err error
		switch v.method {
		case MethodCount:
			result, err = v.verifyByCount(ctx, table)
		case MethodSHA256:
			result, err = v.verifyBySHA256(ctx, table)
		}
		if err != nil {
			return stats, fmt.Errorf("verification failed for table %s: %w", table.Name, err)
		}

		stats.TablesVerified++
		stats.TotalRows += result.ExpectedCount
		stats.Results = append(stats.Results, *result)

		if !result.Match {
			stats.TablesFailed++
			v.logger.Errorf("Verification FAILED for table %s: %s", table.Name, result.ErrorMessage)
			return stats, fmt.Errorf("%w in table %s: %s", ErrMismatch, table.Name, result.ErrorMessage)
		}
		stats.TablesPassed++
		v.logger.Debugf("Verification PASSED for table %s (%d rows)", table.Name, result.ExpectedCount)
	}

	v.logger.Infof("Verification complete: %d tables verified, %d total rows", stats.TablesVerified, stats.TotalRows)
	return stats, nil
}

func (v *Verifier) verifyByCount(ctx context.Context, table Table) (*VerifyResult, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table.Name, sqlutil.QuoteIdentifier(table.KeyColumn))

	var archived int64
	if err := v.db.QueryRowContext(ctx, query, table.Key).Scan(&archived); err != nil {
		return nil, fmt.Errorf("failed to count archived rows: %w", err)
	}

	expected := int64(len(table.Expected))
	result := &VerifyResult{
		Table:         table.Name,
		Method:        MethodCount,
		ExpectedCount: expected,
		ArchivedCount: archived,
		Match:         expected == archived,
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: expected=%d, archived=%d", expected, archived)
	}
	return result, nil
}

func (v *Verifier) verifyBySHA256(ctx context.Context, table Table) (*VerifyResult, error) {
	hasher := sha256.New()
	for _, row := range table.Expected {
		hasher.Write([]byte(serializeRow(table.Columns, row)))
		hasher.Write([]byte("\n"))
	}
	expectedHash := hex.EncodeToString(hasher.Sum(nil))
	expectedCount := int64(len(table.Expected))

	archivedHash, archivedCount, err := v.computeTableHash(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to compute archived hash: %w", err)
	}

	result := &VerifyResult{
		Table:         table.Name,
		Method:        MethodSHA256,
		ExpectedCount: expectedCount,
		ArchivedCount: archivedCount,
		ExpectedHash:  expectedHash,
		ArchivedHash:  archivedHash,
		Match:         expectedHash == archivedHash && expectedCount == archivedCount,
	}

	if !result.Match {
		if expectedCount != archivedCount {
			result.ErrorMessage = fmt.Sprintf("count mismatch: expected=%d, archived=%d", expectedCount, archivedCount)
		} else {
			result.ErrorMessage = fmt.Sprintf("hash mismatch: expected=%s, archived=%s", expectedHash[:16], archivedHash[:16])
		}
	}
	return result, nil
}

// computeTableHash hashes the archived rows in the same form as the expected rows.
func (v *Verifier) computeTableHash(ctx context.Context, table Table) (string, int64, error) {
	columns := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = sqlutil.QuoteIdentifier(c)
	}
	order := make([]string, len(table.OrderBy))
	for i, c := range table.OrderBy {
		order[i] = sqlutil.QuoteIdentifier(c)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(columns, ", "), table.Name, sqlutil.QuoteIdentifier(table.KeyColumn))
	if len(order) > 0 {
		query += " ORDER BY " + strings.Join(order, ", ")
	}

	rows, err := v.db.QueryContext(ctx, query, table.Key)
	if err != nil {
		return "", 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	hasher := sha256.New()
	var total int64
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("hash computation interrupted: %w", err)
		}

		values := make([]interface{}, len(table.Columns))
		ptrs := make([]interface{}, len(table.Columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", 0, fmt.Errorf("failed to scan row: %w", err)
		}

		hasher.Write([]byte(serializeRow(table.Columns, values)))
		hasher.Write([]byte("\n"))
		total++
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), total, nil
}

// serializeRow converts a row to a deterministic string for hashing.
// Format: col1=val1\x00col2=val2...
func serializeRow(columns []string, values []interface{}) string {
	parts := make([]string, 0, len(columns))

	for i, col := range columns {
		var val interface{}
		if i < len(values) {
			val = values[i]
		}

		var valStr string
		switch v := val.(type) {
		case nil:
			valStr = "NULL"
		case []byte:
			valStr = string(v)
		case int:
			valStr = fmt.Sprintf("%d", v)
		case int64:
			valStr = fmt.Sprintf("%d", v)
		case float64:
			valStr = fmt.Sprintf("%f", v)
		case bool:
			valStr = fmt.Sprintf("%t", v)
		case string:
			valStr = v
		case sql.NullInt64:
			if !v.Valid {
				valStr = "NULL"
			} else {
				valStr = fmt.Sprintf("%d", v.Int64)
			}
		default:
			valStr = fmt.Sprintf("%v", v)
		}

		parts = append(parts, col+"="+valStr)
	}

	return strings.Join(parts, "\x00")
}
