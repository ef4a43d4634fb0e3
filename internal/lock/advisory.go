// Package lock provides MySQL advisory locks that serialize archive writes
// for a single query execution.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Lock acquisition timeouts (in seconds). Zero returns immediately.
const (
	// TimeoutMedium is the default wait used by the archive store.
	TimeoutMedium = 10

	// TimeoutInfinite waits until the lock is acquired.
	// MySQL treats negative values as an infinite wait.
	TimeoutInfinite = -1
)

// maxLockNameLength is MySQL's limit for GET_LOCK names.
const maxLockNameLength = 64

// Queryer is the subset of *sql.Conn used by AdvisoryLock. GET_LOCK is scoped
// to a session, so callers must pass a pinned connection rather than a pool.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// AdvisoryLock is a named MySQL lock obtained with GET_LOCK(). It is released
// by RELEASE_LOCK() or when the owning session closes.
type AdvisoryLock struct {
	conn     Queryer
	lockName string
	held     bool
}

// NewAdvisoryLock creates a lock bound to conn. Nothing is acquired until
// AcquireLock is called.
func NewAdvisoryLock(conn Queryer, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		conn:     conn,
		lockName: lockName,
	}
}

// ExecutionLockName returns the lock name guarding the archive rows of one
// query execution. Characters outside [A-Za-z0-9_-] become underscores and
// the result is capped at 64 characters.
//
// Example: ExecutionLockName("a1b2-c3") -> "athenastats:a1b2-c3"
func ExecutionLockName(queryExecutionID string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, queryExecutionID)

	name := "athenastats:" + sanitized
	if len(name) > maxLockNameLength {
		name = name[:maxLockNameLength]
	}
	return name
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// It returns false without error when the wait expired.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}
	if a.conn == nil {
		return false, fmt.Errorf("lock %q has no connection", a.lockName)
	}

	var result sql.NullInt64
	if err := a.conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.held = true
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// ReleaseLock releases the lock. It returns false when the lock was not held
// by this session.
//
// MySQL RELEASE_LOCK() return values:
//   - 1: Lock was released successfully
//   - 0: Lock was not established by this thread (not held)
//   - NULL: Named lock did not exist
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var result sql.NullInt64
	if err := a.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}

	a.held = false
	if !result.Valid {
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected RELEASE_LOCK return value: %d", result.Int64)
	}
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// AcquireOrFail acquires the lock or returns an error wrapping ErrLockTimeout
// when another session still holds it after timeoutSeconds.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context, timeoutSeconds int) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// WithLock runs fn while holding the lock and releases it when fn returns or
// panics. Release uses its own short deadline so a cancelled ctx still frees
// the lock. releaseErr, when non-nil, receives release failures.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error, releaseErr func(error)) error {
	if err := a.AcquireOrFail(ctx, timeoutSeconds); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := a.ReleaseLock(releaseCtx); err != nil && releaseErr != nil {
			releaseErr(err)
		}
	}()

	return fn()
}
