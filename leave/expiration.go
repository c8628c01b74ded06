/*
expiration.go - Anniversary boundary walk and forfeiture

PURPOSE:
  Walks every anniversary boundary from hire date to an as-of date,
  strictly chronologically, computing the unused balance at each boundary
  and recording forfeiture. Each boundary is processed exactly once ever:
  the check-then-create against ExpirationStore makes re-running the walk
  over already-processed history a no-op.

BOUNDARY RULE (annual):
  For boundary n at Anniversary(hire, n), the period [boundary n-1,
  boundary n) generated the entitlement delta across it - the annual
  grant vesting at the boundary, or the absolute entitlement for the
  first period. Whatever was generated and not used expires:

    expired = max(0, generated - used)

MONTHLY RULE (one-shot):
  Pre-1-year monthly grants expire once, at the first anniversary:

    expired = max(0, min(cap, months accrued by boundary-1 day) - used)

  guarded the same way under ExpireMonthly.

SAFETY:
  The walk is capped at Policy.MaxBoundaryWalk iterations against
  malformed hire dates. Invalid calendar dates are already recovered by
  the clamp rule in the calendar package; nothing escapes from here.

SEE ALSO:
  - policy.go: entitlement per boundary
  - usage.go: per-period usage sums
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// EXPIRATION ENGINE
// =============================================================================

type ExpirationEngine struct {
	Policy *AccrualPolicy
	Events EventStore
	Store  ExpirationStore
	Trace  Tracer
}

func NewExpirationEngine(policy *AccrualPolicy, events EventStore, store ExpirationStore) *ExpirationEngine {
	return &ExpirationEngine{Policy: policy, Events: events, Store: store}
}

// Run processes every boundary from hire up to asOf and returns all
// expiration records for the employee in that range, both pre-existing
// and newly created. Boundaries past asOf are left untouched.
func (e *ExpirationEngine) Run(ctx context.Context, emp Employee, asOf calendar.Date) ([]ExpirationRecord, error) {
	hire := emp.HireDate
	if hire.IsZero() || asOf.Before(hire) {
		return nil, nil
	}

	events, err := e.Events.Events(ctx, emp.ID, hire, asOf.AddDays(1))
	if err != nil {
		return nil, fmt.Errorf("loading events for %s: %w", emp.ID, err)
	}

	if err := e.runMonthly(ctx, emp, events, asOf); err != nil {
		return nil, err
	}

	periodStart := hire
	for n := 1; n <= e.Policy.Policy.MaxBoundaryWalk; n++ {
		boundary := calendar.Anniversary(hire, n)
		if boundary.After(asOf) {
			break
		}

		generated := e.generatedForPeriod(emp, n, periodStart, boundary)
		used := SumUsage(events, periodStart, boundary)
		expired := generated.Sub(used)

		if expired.IsPositive() {
			if err := e.record(ctx, ExpirationRecord{
				EmployeeID: emp.ID,
				Kind:       ExpireAnnual,
				Amount:     expired,
				ExpiredAt:  boundary,
				PeriodYear: n,
			}); err != nil {
				return nil, err
			}
		}
		periodStart = boundary
	}

	return e.Store.Expirations(ctx, emp.ID, hire, asOf)
}

// generatedForPeriod returns the entitlement generated during the period
// ending at boundary n: the absolute entitlement for the first period,
// the cumulative delta (the grant vesting at the boundary) afterwards.
func (e *ExpirationEngine) generatedForPeriod(emp Employee, n int, periodStart, periodEnd calendar.Date) decimal.Decimal {
	if n == 1 {
		return e.Policy.EntitlementForPeriod(emp, periodEnd)
	}
	return e.Policy.AnnualGrant(n)
}

// runMonthly fires the one-shot monthly expiration at the first
// anniversary: whatever monthly-regime entitlement was accrued before the
// boundary and not used is forfeited.
func (e *ExpirationEngine) runMonthly(ctx context.Context, emp Employee, events []Event, asOf calendar.Date) error {
	boundary := calendar.Anniversary(emp.HireDate, 1)
	if boundary.After(asOf) {
		return nil
	}

	entitled := e.Policy.MonthlyEntitlement(emp.HireDate, boundary.AddDays(-1))
	used := SumUsage(events, emp.HireDate, boundary)
	expired := entitled.Sub(used)
	if !expired.IsPositive() {
		return nil
	}

	return e.record(ctx, ExpirationRecord{
		EmployeeID: emp.ID,
		Kind:       ExpireMonthly,
		Amount:     expired,
		ExpiredAt:  boundary,
		PeriodYear: 1,
	})
}

// record performs the check-then-create that keeps the walk idempotent.
// A concurrent writer losing the race surfaces as ErrDuplicateExpiration,
// which is the same no-op.
func (e *ExpirationEngine) record(ctx context.Context, rec ExpirationRecord) error {
	exists, err := e.Store.HasExpiration(ctx, rec.EmployeeID, rec.Kind, rec.ExpiredAt)
	if err != nil {
		return fmt.Errorf("checking expiration at %s: %w", rec.ExpiredAt, err)
	}
	if exists {
		return nil
	}
	if err := e.Store.RecordExpiration(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateExpiration) {
			return nil
		}
		return fmt.Errorf("recording expiration at %s: %w", rec.ExpiredAt, err)
	}
	e.Trace.emit(TraceExpirationFired, rec.EmployeeID, rec.ExpiredAt, map[string]any{
		"kind":   string(rec.Kind),
		"amount": rec.Amount.String(),
		"year":   rec.PeriodYear,
	})
	return nil
}
