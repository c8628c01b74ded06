/*
Package sqlite provides the SQLite-backed implementation of the leave
store interfaces.

PURPOSE:
  Persists the raw inputs (employees, leave events, manual overrides) and
  the engine's derived outputs (expiration records, balance snapshots).

INTERFACES IMPLEMENTED:
  leave.Directory:       Employee records
  leave.EventStore:      Leave consumption register
  leave.ExpirationStore: Forfeiture records
  leave.SnapshotStore:   Cached balances
  leave.OverrideStore:   Manual monthly adjustments

KEY TABLES:
  employees:          Directory rows, hire date as the period anchor
  leave_events:       One row per recorded day (or half day) of leave
  expiration_records: Forfeitures, unique per (employee, kind, boundary)
  balance_snapshots:  Cached remaining balance per (employee, year)
  monthly_overrides:  Manual usage adjustments per (employee, year, month)

IDEMPOTENCY:
  idx_expirations_boundary enforces at the database what the engine
  guards with check-then-create: a boundary can never hold two records
  of the same kind. A violated constraint maps to
  leave.ErrDuplicateExpiration.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so balance reads do
  not block the attendance writer.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
)

// Store implements all leave storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Interface checks
var (
	_ leave.Directory       = (*Store)(nil)
	_ leave.EventStore      = (*Store)(nil)
	_ leave.ExpirationStore = (*Store)(nil)
	_ leave.SnapshotStore   = (*Store)(nil)
	_ leave.OverrideStore   = (*Store)(nil)
)

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		resignation_date TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		force_senior INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_employee_date
		ON leave_events(employee_id, date);

	CREATE TABLE IF NOT EXISTS expiration_records (
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		expired_at TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_expirations_boundary
		ON expiration_records(employee_id, kind, expired_at);

	CREATE INDEX IF NOT EXISTS idx_expirations_employee_date
		ON expiration_records(employee_id, expired_at);

	CREATE TABLE IF NOT EXISTS balance_snapshots (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		remaining TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		UNIQUE(employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS monthly_overrides (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, year, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY (leave.Directory interface)
// =============================================================================

func (s *Store) Employee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, hire_date, resignation_date, active, force_senior
		FROM employees WHERE id = ?
	`, id)

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return leave.Employee{}, fmt.Errorf("failed to load employee: %w", err)
	}
	return emp, nil
}

func (s *Store) Employees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, hire_date, resignation_date, active, force_senior
		FROM employees ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var result []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, emp)
	}
	return result, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resignation any
	if emp.ResignationDate != nil {
		resignation = emp.ResignationDate.String()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, hire_date, resignation_date, active, force_senior, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hire_date = excluded.hire_date,
			resignation_date = excluded.resignation_date,
			active = excluded.active,
			force_senior = excluded.force_senior,
			updated_at = excluded.updated_at
	`, emp.ID, emp.Name, emp.HireDate.String(), resignation,
		boolInt(emp.Active), boolInt(emp.ForceSeniorRegime), now, now)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (leave.Employee, error) {
	var (
		emp         leave.Employee
		hireDate    string
		resignation sql.NullString
		active      int
		forceSenior int
	)
	if err := row.Scan(&emp.ID, &emp.Name, &hireDate, &resignation, &active, &forceSenior); err != nil {
		return emp, err
	}

	hd, err := calendar.Parse(hireDate)
	if err != nil {
		return emp, fmt.Errorf("malformed hire date %q: %w", hireDate, err)
	}
	emp.HireDate = hd
	emp.Active = active != 0
	emp.ForceSeniorRegime = forceSenior != 0

	if resignation.Valid && resignation.String != "" {
		rd, err := calendar.Parse(resignation.String)
		if err != nil {
			return emp, fmt.Errorf("malformed resignation date %q: %w", resignation.String, err)
		}
		emp.ResignationDate = &rd
	}
	return emp, nil
}

// =============================================================================
// EVENT STORE (leave.EventStore interface)
// =============================================================================

func (s *Store) RecordEvent(ctx context.Context, ev leave.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_events (employee_id, date, kind, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.EmployeeID, ev.Date.String(), ev.Kind, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func (s *Store) Events(ctx context.Context, id leave.EmployeeID, from, to calendar.Date) ([]leave.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, date, kind
		FROM leave_events
		WHERE employee_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC, id ASC
	`, id, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var result []leave.Event
	for rows.Next() {
		var (
			ev   leave.Event
			date string
		)
		if err := rows.Scan(&ev.EmployeeID, &date, &ev.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		d, err := calendar.Parse(date)
		if err != nil {
			return nil, fmt.Errorf("malformed event date %q: %w", date, err)
		}
		ev.Date = d
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (s *Store) DeleteEvent(ctx context.Context, ev leave.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Corrections remove a single row even when the register holds
	// duplicates for the date.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM leave_events
		WHERE id IN (
			SELECT id FROM leave_events
			WHERE employee_id = ? AND date = ? AND kind = ?
			LIMIT 1
		)
	`, ev.EmployeeID, ev.Date.String(), ev.Kind)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// =============================================================================
// EXPIRATION STORE (leave.ExpirationStore interface)
// =============================================================================

func (s *Store) RecordExpiration(ctx context.Context, rec leave.ExpirationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expiration_records (employee_id, kind, amount, expired_at, period_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.EmployeeID, rec.Kind, rec.Amount.String(), rec.ExpiredAt.String(),
		rec.PeriodYear, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrDuplicateExpiration
		}
		return fmt.Errorf("failed to record expiration: %w", err)
	}
	return nil
}

func (s *Store) HasExpiration(ctx context.Context, id leave.EmployeeID, kind leave.ExpirationKind, boundary calendar.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM expiration_records
		WHERE employee_id = ? AND kind = ? AND expired_at = ?
	`, id, kind, boundary.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check expiration: %w", err)
	}
	return count > 0, nil
}

func (s *Store) Expirations(ctx context.Context, id leave.EmployeeID, from, to calendar.Date) ([]leave.ExpirationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, kind, amount, expired_at, period_year
		FROM expiration_records
		WHERE employee_id = ? AND expired_at >= ? AND expired_at <= ?
		ORDER BY expired_at ASC
	`, id, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query expirations: %w", err)
	}
	defer rows.Close()

	var result []leave.ExpirationRecord
	for rows.Next() {
		var (
			rec       leave.ExpirationRecord
			amount    string
			expiredAt string
		)
		if err := rows.Scan(&rec.EmployeeID, &rec.Kind, &amount, &expiredAt, &rec.PeriodYear); err != nil {
			return nil, fmt.Errorf("failed to scan expiration: %w", err)
		}
		rec.Amount = mustDecimal(amount)
		d, err := calendar.Parse(expiredAt)
		if err != nil {
			return nil, fmt.Errorf("malformed expiration date %q: %w", expiredAt, err)
		}
		rec.ExpiredAt = d
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) DeleteExpirations(ctx context.Context, id leave.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM expiration_records WHERE employee_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expirations: %w", err)
	}
	return nil
}

// =============================================================================
// SNAPSHOT STORE (leave.SnapshotStore interface)
// =============================================================================

func (s *Store) SaveSnapshot(ctx context.Context, snap leave.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_snapshots (employee_id, year, remaining, taken_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			remaining = excluded.remaining,
			taken_at = excluded.taken_at
	`, snap.EmployeeID, snap.Year, snap.Remaining.String(), snap.TakenAt.String())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, id leave.EmployeeID, year int) (leave.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		snap      leave.Snapshot
		remaining string
		takenAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT employee_id, year, remaining, taken_at
		FROM balance_snapshots WHERE employee_id = ? AND year = ?
	`, id, year).Scan(&snap.EmployeeID, &snap.Year, &remaining, &takenAt)
	if err == sql.ErrNoRows {
		return leave.Snapshot{}, leave.ErrSnapshotNotFound
	}
	if err != nil {
		return leave.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap.Remaining = mustDecimal(remaining)
	if d, err := calendar.Parse(takenAt); err == nil {
		snap.TakenAt = d
	}
	return snap, nil
}

func (s *Store) DeleteSnapshots(ctx context.Context, id leave.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM balance_snapshots WHERE employee_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}

// =============================================================================
// OVERRIDE STORE (leave.OverrideStore interface)
// =============================================================================

func (s *Store) UpsertOverride(ctx context.Context, ov leave.MonthlyOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_overrides (employee_id, year, month, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, ov.EmployeeID, ov.Year, int(ov.Month), ov.Value.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert override: %w", err)
	}
	return nil
}

func (s *Store) Overrides(ctx context.Context, id leave.EmployeeID, year int) ([]leave.MonthlyOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, year, month, value
		FROM monthly_overrides WHERE employee_id = ? AND year = ?
		ORDER BY month ASC
	`, id, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var result []leave.MonthlyOverride
	for rows.Next() {
		var (
			ov    leave.MonthlyOverride
			month int
			value string
		)
		if err := rows.Scan(&ov.EmployeeID, &ov.Year, &month, &value); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		ov.Month = time.Month(month)
		ov.Value = mustDecimal(value)
		result = append(result, ov)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
