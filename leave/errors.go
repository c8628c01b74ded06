/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error values in one place. The engine's read paths degrade rather
  than fail: a missing employee projects to zero, a duplicate expiration
  write is skipped, a rejected override becomes a warning. The sentinels
  here exist so stores and callers can classify with errors.Is.

SEE ALSO:
  - expiration.go: uses ErrDuplicateExpiration as its idempotency guard
  - projection.go: maps ErrEmployeeNotFound to a zero projection
*/
package leave

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned by a Directory for an unknown id.
	// Projection treats it as zero-entitlement, zero-usage, not a failure.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDuplicateExpiration is returned when an expiration record for the
	// same (employee, kind, boundary) already exists. Expected on re-runs.
	ErrDuplicateExpiration = errors.New("duplicate expiration record")

	// ErrSnapshotNotFound is returned when no cached balance exists for
	// the requested (employee, year).
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidPolicy is returned when a policy configuration is
	// internally inconsistent (e.g. ceiling below base grant).
	ErrInvalidPolicy = errors.New("invalid policy configuration")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// OverrideRejectedWarning describes a manual override ignored because its
// month falls at or before the anniversary month of the employee's new
// accrual year. It is surfaced on Balance.Warnings, not returned as an
// error: computation proceeds on event-derived data.
type OverrideRejectedWarning struct {
	EmployeeID EmployeeID
	Year       int
	Month      time.Month
}

func (w OverrideRejectedWarning) String() string {
	return fmt.Sprintf("override ignored for %s %d-%02d: month precedes the accrual-year anniversary",
		w.EmployeeID, w.Year, int(w.Month))
}

// ProjectionError ties a batch-projection failure to its employee so one
// bad record never blocks the rest of the roster.
type ProjectionError struct {
	EmployeeID EmployeeID
	Year       int
	Err        error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projecting %s for %d: %v", e.EmployeeID, e.Year, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) || errors.Is(err, ErrSnapshotNotFound)
}
