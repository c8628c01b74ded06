/*
Package leave implements statutory leave accrual, usage, carry-over and
expiration.

PURPOSE:
  Given an employee's hire date and a sequence of leave-consumption events,
  this package answers four questions as of any date:
    (a) how many leave units the employee has earned (accrual)
    (b) how many they have used (usage)
    (c) how much unused balance carries across anniversaries (carry-over)
    (d) how much is forfeited at each anniversary boundary (expiration)

KEY CONCEPTS:
  - Employee: hire date anchors every period boundary
  - Event: one day's consumption, full (1.0) or half (0.5) unit
  - ExpirationRecord: forfeiture at an anniversary boundary, written once
  - Balance: the year-by-employee ledger row, recomputed on every query

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, half days are exact 0.5
  2. Idempotency: re-running any computation over processed history is a
     no-op; Balance is never the source of truth
  3. Purity on read paths: no blocking I/O inside the calculation,
     persistence happens in the stores around it

SEE ALSO:
  - policy.go: tenure-based accrual regimes
  - usage.go: half-day-deduplicated usage aggregation
  - expiration.go: anniversary boundary walk
  - projection.go: ledger row orchestration
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

type EmployeeID string

// Employee is a read-only snapshot supplied by the directory. HireDate is
// the anchor for all period boundaries; correcting it invalidates every
// derived record for the employee.
type Employee struct {
	ID       EmployeeID
	Name     string
	HireDate calendar.Date

	// ResignationDate caps the usable horizon. It does not by itself
	// forfeit balance; see Policy.ForfeitOnResignation.
	ResignationDate *calendar.Date

	Active bool

	// ForceSeniorRegime marks legacy employees whose accrual history
	// predates full records. Resolved at the data layer, never by name.
	ForceSeniorRegime bool
}

// Horizon returns the last date visible for this employee, the earlier of
// asOf and the resignation date.
func (e Employee) Horizon(asOf calendar.Date) calendar.Date {
	if e.ResignationDate != nil && e.ResignationDate.Before(asOf) {
		return *e.ResignationDate
	}
	return asOf
}

// =============================================================================
// LEAVE EVENT - One day's consumption
// =============================================================================

type EventKind string

const (
	FullDay EventKind = "full_day"
	HalfDay EventKind = "half_day"
)

var (
	oneUnit  = decimal.NewFromInt(1)
	halfUnit = decimal.NewFromFloat(0.5)
)

// Units returns the leave units a single event of this kind consumes.
func (k EventKind) Units() decimal.Decimal {
	if k == HalfDay {
		return halfUnit
	}
	return oneUnit
}

// Event records a single day of leave consumption. Multiple HalfDay
// events on the same calendar date collapse to one 0.5-unit contribution
// during aggregation; the raw records stay as written.
type Event struct {
	EmployeeID EmployeeID
	Date       calendar.Date
	Kind       EventKind
}

// =============================================================================
// MANUAL MONTHLY OVERRIDE
// =============================================================================

// MonthlyOverride is a manual adjustment supplied by the editing shell for
// one employee/year/month. It is summed in addition to event-derived
// usage, except for months at or before the employee's anniversary month
// in the report year, where it is rejected with a warning.
type MonthlyOverride struct {
	EmployeeID EmployeeID
	Year       int
	Month      time.Month
	Value      decimal.Decimal
}

// =============================================================================
// EXPIRATION RECORD
// =============================================================================

type ExpirationKind string

const (
	// ExpireAnnual is forfeiture of the annual grant at an anniversary.
	ExpireAnnual ExpirationKind = "annual"
	// ExpireMonthly is the one-shot forfeiture of pre-1-year monthly
	// grants at the first anniversary.
	ExpireMonthly ExpirationKind = "monthly"
)

// ExpirationRecord is written exactly once per (employee, kind, boundary).
// It is never mutated; a recompute deletes and rewrites the employee's
// records wholesale.
type ExpirationRecord struct {
	EmployeeID EmployeeID
	Kind       ExpirationKind
	Amount     decimal.Decimal
	ExpiredAt  calendar.Date
	PeriodYear int // anniversary index n of the boundary
}

// =============================================================================
// BALANCE - The ledger row for one employee and one report year
// =============================================================================

// Balance is a projection output, computed fresh on every query. It is
// always derivable from Employee + Event + ExpirationRecord and is never
// persisted as its own entity (only Remaining is cached, see Snapshot).
type Balance struct {
	EmployeeID EmployeeID
	ReportYear int

	// CarryIn is the prior year's final remaining balance, after netting
	// expirations up to the report year's anniversary (clamped at zero).
	CarryIn decimal.Decimal

	// MonthlyUsage holds usage per calendar month, January first.
	MonthlyUsage [12]decimal.Decimal

	YearUsage   decimal.Decimal
	YearAccrual decimal.Decimal

	// Remaining may be negative (over-use); it is surfaced, never clamped.
	Remaining decimal.Decimal

	// Expirations dated within the report year.
	Expirations []ExpirationRecord

	// Warnings from rejected overrides and similar non-fatal conditions.
	Warnings []string
}

// =============================================================================
// SNAPSHOT - Cached prior-year remaining balance
// =============================================================================

// Snapshot caches the final remaining balance for (employee, year) to
// accelerate carry-in lookups. It is a pure cache: dropping it and
// recomputing must produce identical projections.
type Snapshot struct {
	EmployeeID EmployeeID
	Year       int
	Remaining  decimal.Decimal
	TakenAt    calendar.Date
}
