/*
store.go - Persistence interfaces around the engine

PURPOSE:
  The engine itself does no I/O; these interfaces are the seam to the
  collaborators that own the raw data. Events and employees are supplied
  by the attendance shell; expiration records and snapshots are the
  engine's two derived outputs.

APPEND SEMANTICS:
  ExpirationStore.Record refuses duplicates for (employee, kind, boundary)
  with ErrDuplicateExpiration - that constraint IS the engine's
  idempotency guard. Records are only ever removed wholesale per employee,
  when a hire-date correction forces a full recompute.

IMPLEMENTATIONS:
  - store/memory: in-memory, for tests and dev
  - store/sqlite: production SQLite

SEE ALSO:
  - expiration.go: check-then-create against ExpirationStore
  - projection.go: snapshot-accelerated carry-in lookups
*/
package leave

import (
	"context"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// DIRECTORY - Employee snapshots
// =============================================================================

// Directory supplies read-only employee snapshots. Employee returns
// ErrEmployeeNotFound for unknown ids; the engine maps that to a zero
// projection rather than a failure.
type Directory interface {
	Employee(ctx context.Context, id EmployeeID) (Employee, error)
	Employees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error
}

// =============================================================================
// EVENT STORE - Leave-consumption events
// =============================================================================

// EventStore holds leave-consumption events. Events returns events dated
// in [from, to), chronologically.
type EventStore interface {
	RecordEvent(ctx context.Context, ev Event) error
	Events(ctx context.Context, id EmployeeID, from, to calendar.Date) ([]Event, error)
	DeleteEvent(ctx context.Context, ev Event) error
}

// =============================================================================
// EXPIRATION STORE - Forfeiture records
// =============================================================================

type ExpirationStore interface {
	// RecordExpiration appends a record; returns ErrDuplicateExpiration
	// when one already exists for (employee, kind, boundary).
	RecordExpiration(ctx context.Context, rec ExpirationRecord) error

	// HasExpiration checks for an existing record at a boundary.
	HasExpiration(ctx context.Context, id EmployeeID, kind ExpirationKind, boundary calendar.Date) (bool, error)

	// Expirations returns records with ExpiredAt in [from, to],
	// chronologically.
	Expirations(ctx context.Context, id EmployeeID, from, to calendar.Date) ([]ExpirationRecord, error)

	// DeleteExpirations removes all records for an employee. Used only by
	// the recompute path after a hire-date correction.
	DeleteExpirations(ctx context.Context, id EmployeeID) error
}

// =============================================================================
// SNAPSHOT STORE - Carry-in cache
// =============================================================================

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// Snapshot returns ErrSnapshotNotFound when nothing is cached.
	Snapshot(ctx context.Context, id EmployeeID, year int) (Snapshot, error)

	DeleteSnapshots(ctx context.Context, id EmployeeID) error
}

// =============================================================================
// OVERRIDE STORE - Manual monthly adjustments
// =============================================================================

type OverrideStore interface {
	UpsertOverride(ctx context.Context, ov MonthlyOverride) error
	Overrides(ctx context.Context, id EmployeeID, year int) ([]MonthlyOverride, error)
}
