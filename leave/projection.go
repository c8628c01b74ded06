/*
projection.go - The year-by-employee ledger row

PURPOSE:
  Produces the full ledger row for one employee and one report year:
  prior-year carry-in, twelve monthly usages, current-year usage and
  accrual, expirations, and the final remaining balance.

COMPOSITION ORDER (this must not change):
  1. carry_in = prior year's remaining, from a cached snapshot when one
     exists, else by recursively projecting the prior year
  2. year_accrual from the accrual policy, epoch-gated
  3. usage from the anniversary (the true period start) when the employee
     predates the report year, from the hire date when hired during it,
     else from January 1
  4. expiration walk through the report year; carry_in netted against
     forfeitures dated up to the report-year anniversary, clamped at zero
  5. remaining = (year_accrual - year_usage) + carry_in_after_expiration;
     with ForfeitOnResignation set, a positive remaining is zeroed once
     the resignation date falls inside the horizon

  The published formula must reproduce identically whichever path
  computed carry_in; the snapshot store is a pure cache.

FAILURE SEMANTICS:
  A missing employee projects to zero (logged, not raised). In a batch,
  each employee is independent; one failure never blocks the rest.

SEE ALSO:
  - expiration.go: boundary walk
  - store.go: snapshot cache contract
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// BALANCE PROJECTOR
// =============================================================================

type BalanceProjector struct {
	Policy     *AccrualPolicy
	Directory  Directory
	Events     EventStore
	Overrides  OverrideStore // optional
	Expiration *ExpirationEngine
	Snapshots  SnapshotStore // optional; nil disables the carry-in cache
	Trace      Tracer
}

// Project computes the ledger row for one employee and report year, as of
// asOf. A missing employee yields a zero row and a nil error.
func (p *BalanceProjector) Project(ctx context.Context, id EmployeeID, reportYear int, asOf calendar.Date) (Balance, error) {
	emp, err := p.Directory.Employee(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			p.Trace.emit(TraceMissingEmployee, id, asOf, nil)
			return zeroBalance(id, reportYear), nil
		}
		return Balance{}, fmt.Errorf("resolving employee %s: %w", id, err)
	}
	return p.project(ctx, emp, reportYear, asOf)
}

// ProjectAll computes rows for the whole roster. Per-employee failures are
// collected; the returned error is reserved for roster resolution itself.
func (p *BalanceProjector) ProjectAll(ctx context.Context, reportYear int, asOf calendar.Date) ([]Balance, []*ProjectionError, error) {
	emps, err := p.Directory.Employees(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing employees: %w", err)
	}

	var (
		rows []Balance
		errs []*ProjectionError
	)
	for _, emp := range emps {
		row, err := p.project(ctx, emp, reportYear, asOf)
		if err != nil {
			errs = append(errs, &ProjectionError{EmployeeID: emp.ID, Year: reportYear, Err: err})
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs, nil
}

// Invalidate drops every derived record for an employee. Call after a
// hire-date correction; the next projection rebuilds from scratch.
func (p *BalanceProjector) Invalidate(ctx context.Context, id EmployeeID) error {
	if p.Expiration != nil && p.Expiration.Store != nil {
		if err := p.Expiration.Store.DeleteExpirations(ctx, id); err != nil {
			return fmt.Errorf("dropping expirations for %s: %w", id, err)
		}
	}
	if p.Snapshots != nil {
		if err := p.Snapshots.DeleteSnapshots(ctx, id); err != nil {
			return fmt.Errorf("dropping snapshots for %s: %w", id, err)
		}
	}
	return nil
}

func (p *BalanceProjector) project(ctx context.Context, emp Employee, reportYear int, asOf calendar.Date) (Balance, error) {
	bal := zeroBalance(emp.ID, reportYear)

	hire := emp.HireDate
	if hire.IsZero() || reportYear < hire.Year() {
		return bal, nil
	}

	yearEnd := calendar.EndOfYear(reportYear)
	horizon := calendar.Min(emp.Horizon(asOf), yearEnd)
	if horizon.Before(hire) {
		return bal, nil
	}

	// 1. Carry-in from the prior year.
	carryIn := decimal.Zero
	if reportYear > hire.Year() {
		ci, err := p.carryIn(ctx, emp, reportYear-1, asOf)
		if err != nil {
			return Balance{}, err
		}
		carryIn = ci
	}

	// 2. Current-year accrual at the anniversary.
	n := reportYear - hire.Year()
	var anniversary calendar.Date
	if n >= 1 {
		anniversary = calendar.Anniversary(hire, n)
	} else {
		anniversary = hire
	}

	if p.Policy.Senior(emp, anniversary) {
		grantYear := n
		if grantYear < 1 {
			// Forced senior treatment before the first anniversary.
			grantYear = 1
		}
		grant := p.Policy.AnnualGrant(grantYear)
		if p.Policy.Policy.CheckMode == CheckTodayGated && anniversary.After(asOf) {
			// The anniversary-based grant has not been generated yet.
			grant = decimal.Zero
		}
		bal.YearAccrual = grant
	} else {
		bal.YearAccrual = p.Policy.MonthlyEntitlement(hire, horizon)
	}

	// 3. Usage: monthly breakdown plus the accrual-year total from the
	// true period start.
	events, err := p.Events.Events(ctx, emp.ID, calendar.StartOfYear(reportYear), horizon.AddDays(1))
	if err != nil {
		return Balance{}, fmt.Errorf("loading events for %s: %w", emp.ID, err)
	}

	periodStart := p.periodStart(emp, reportYear, n, anniversary)
	bal.YearUsage = SumUsage(events, periodStart, horizon.AddDays(1))

	for m := time.January; m <= time.December; m++ {
		bal.MonthlyUsage[int(m)-1] = SumUsageForMonth(events, reportYear, m, horizon)
	}

	if err := p.applyOverrides(ctx, emp, reportYear, anniversary, &bal); err != nil {
		return Balance{}, err
	}

	// 4. Expirations through the report year; net the carry-in.
	records, err := p.Expiration.Run(ctx, emp, horizon)
	if err != nil {
		return Balance{}, err
	}

	expiredInWindow := decimal.Zero
	prevYearEnd := calendar.EndOfYear(reportYear - 1)
	for _, rec := range records {
		if rec.ExpiredAt.AfterOrEqual(calendar.StartOfYear(reportYear)) && rec.ExpiredAt.BeforeOrEqual(yearEnd) {
			bal.Expirations = append(bal.Expirations, rec)
		}
		if rec.ExpiredAt.AfterOrEqual(prevYearEnd) && rec.ExpiredAt.BeforeOrEqual(anniversary) {
			expiredInWindow = expiredInWindow.Add(rec.Amount)
		}
	}

	carryAfter := carryIn
	if carryIn.IsPositive() {
		carryAfter = carryIn.Sub(expiredInWindow)
		if carryAfter.IsNegative() {
			// Forfeiture clamps the carried amount only, never the
			// current-year figure.
			carryAfter = decimal.Zero
		}
	}
	bal.CarryIn = carryAfter

	// 5. The single published formula.
	bal.Remaining = bal.YearAccrual.Sub(bal.YearUsage).Add(carryAfter)

	// With ForfeitOnResignation set, a positive balance is zeroed once the
	// resignation date is inside the horizon. Over-use still surfaces.
	if p.Policy.Policy.ForfeitOnResignation && emp.ResignationDate != nil &&
		emp.ResignationDate.BeforeOrEqual(horizon) && bal.Remaining.IsPositive() {
		p.Trace.emit(TraceResignationForfeit, emp.ID, *emp.ResignationDate, map[string]any{
			"forfeited": bal.Remaining.String(),
		})
		bal.Remaining = decimal.Zero
	}

	// 6. Cache the remaining balance once the year's figure is final.
	if p.Snapshots != nil && p.yearIsFinal(emp, reportYear, asOf) {
		snap := Snapshot{EmployeeID: emp.ID, Year: reportYear, Remaining: bal.Remaining, TakenAt: asOf}
		if err := p.Snapshots.SaveSnapshot(ctx, snap); err != nil {
			return Balance{}, fmt.Errorf("caching snapshot for %s/%d: %w", emp.ID, reportYear, err)
		}
	}

	return bal, nil
}

// carryIn resolves the prior year's remaining balance: cached snapshot
// first, recursive projection otherwise. Both paths must agree.
func (p *BalanceProjector) carryIn(ctx context.Context, emp Employee, prevYear int, asOf calendar.Date) (decimal.Decimal, error) {
	if p.Snapshots != nil {
		snap, err := p.Snapshots.Snapshot(ctx, emp.ID, prevYear)
		if err == nil {
			p.Trace.emit(TraceSnapshotHit, emp.ID, asOf, map[string]any{"year": prevYear})
			return snap.Remaining, nil
		}
		if !errors.Is(err, ErrSnapshotNotFound) {
			return decimal.Zero, fmt.Errorf("reading snapshot %s/%d: %w", emp.ID, prevYear, err)
		}
	}

	prev, err := p.project(ctx, emp, prevYear, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return prev.Remaining, nil
}

// periodStart returns the true start of the accrual-year usage window.
func (p *BalanceProjector) periodStart(emp Employee, reportYear, n int, anniversary calendar.Date) calendar.Date {
	if emp.HireDate.Year() == reportYear {
		return emp.HireDate
	}
	if n >= 1 && anniversary.Year() == reportYear {
		return anniversary
	}
	return calendar.StartOfYear(reportYear)
}

// applyOverrides folds manual monthly adjustments into the usage figures,
// rejecting months at or before the anniversary month with a warning.
func (p *BalanceProjector) applyOverrides(ctx context.Context, emp Employee, reportYear int, anniversary calendar.Date, bal *Balance) error {
	if p.Overrides == nil {
		return nil
	}
	ovs, err := p.Overrides.Overrides(ctx, emp.ID, reportYear)
	if err != nil {
		return fmt.Errorf("loading overrides for %s: %w", emp.ID, err)
	}

	for _, ov := range ovs {
		if ov.Value.IsZero() {
			continue
		}
		if !OverrideAllowed(anniversary, reportYear, ov.Month) {
			warn := OverrideRejectedWarning{EmployeeID: emp.ID, Year: reportYear, Month: ov.Month}
			bal.Warnings = append(bal.Warnings, warn.String())
			p.Trace.emit(TraceOverrideRejected, emp.ID, calendar.StartOfMonth(reportYear, ov.Month), map[string]any{
				"value": ov.Value.String(),
			})
			continue
		}
		bal.MonthlyUsage[int(ov.Month)-1] = bal.MonthlyUsage[int(ov.Month)-1].Add(ov.Value)
		bal.YearUsage = bal.YearUsage.Add(ov.Value)
	}
	return nil
}

// yearIsFinal reports whether the report year's remaining balance can no
// longer change: the year has fully elapsed, or the employee resigned
// within it.
func (p *BalanceProjector) yearIsFinal(emp Employee, reportYear int, asOf calendar.Date) bool {
	if !calendar.EndOfYear(reportYear).After(asOf) {
		return true
	}
	return emp.ResignationDate != nil && !emp.ResignationDate.After(calendar.EndOfYear(reportYear))
}

func zeroBalance(id EmployeeID, reportYear int) Balance {
	bal := Balance{
		EmployeeID:  id,
		ReportYear:  reportYear,
		CarryIn:     decimal.Zero,
		YearUsage:   decimal.Zero,
		YearAccrual: decimal.Zero,
		Remaining:   decimal.Zero,
	}
	for i := range bal.MonthlyUsage {
		bal.MonthlyUsage[i] = decimal.Zero
	}
	return bal
}
