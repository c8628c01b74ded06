/*
policy.go - Tenure-based accrual policy

PURPOSE:
  Computes leave entitlement from hire date and tenure. Two regimes with a
  single transition:

  MONTHLY REGIME (tenure < SeniorTenureDays):
    One unit per completed month, capped at MonthlyGrantCap (11). The
    twelfth month is absorbed into the year-1 annual grant.

  ANNUAL REGIME (tenure >= SeniorTenureDays):
    A tiered grant per anniversary year n:
      n=1 -> 15, n=2 -> 15, n=3 -> 16, n=4 -> 16, n=5 -> 17, ...
    increasing by one every StepEveryYears starting at StepStartYear,
    capped at AnnualGrantCeiling (25).

  The regime is selected by tenure at the query date, never by a roster.
  A long-tenure predicate (or the employee's ForceSeniorRegime flag) can
  force annual treatment for legacy employees whose accrual history
  predates full records.

EPOCHS:
  AnniversaryCheckMode declares whether the report-year grant counts for
  the whole year (CheckFullYear) or only once the anniversary has been
  reached by the query date (CheckTodayGated). Callers select the mode;
  it is never inferred from absolute year literals.

SEE ALSO:
  - calendar: Anniversary and MonthsElapsed primitives
  - expiration.go: consumes entitlement deltas per boundary
*/
package leave

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// POLICY - Configurable accrual rules
// =============================================================================

// AnniversaryCheckMode declares when an anniversary-based grant becomes
// visible within its report year.
type AnniversaryCheckMode string

const (
	// CheckFullYear counts the report-year grant for the entire year,
	// regardless of whether the anniversary has passed at query time.
	CheckFullYear AnniversaryCheckMode = "full_year"

	// CheckTodayGated counts the report-year grant only once the
	// anniversary date has been reached by the projection's as-of date.
	CheckTodayGated AnniversaryCheckMode = "today_gated"
)

// LongTenurePredicate forces annual-regime treatment regardless of
// computed tenure. Nil means no forcing beyond Employee.ForceSeniorRegime.
type LongTenurePredicate func(Employee) bool

// Policy holds the accrual ruleset. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	BaseAnnualGrant    int // grant for anniversary years before the step starts
	StepStartYear      int // first anniversary year with a raised grant
	StepEveryYears     int // years between +1 steps
	AnnualGrantCeiling int
	MonthlyGrantCap    int
	SeniorTenureDays   int // strict less-than boundary for the monthly regime

	CheckMode            AnniversaryCheckMode
	ForfeitOnResignation bool

	LongTenure LongTenurePredicate

	// MaxBoundaryWalk bounds the expiration walk against malformed hire
	// dates.
	MaxBoundaryWalk int
}

// DefaultPolicy returns the statutory ruleset: 11 monthly units pre-1-year,
// 15 annual units from year one, +1 every two years from year three,
// ceiling 25.
func DefaultPolicy() Policy {
	return Policy{
		BaseAnnualGrant:    15,
		StepStartYear:      3,
		StepEveryYears:     2,
		AnnualGrantCeiling: 25,
		MonthlyGrantCap:    11,
		SeniorTenureDays:   365,
		CheckMode:          CheckFullYear,
		MaxBoundaryWalk:    50,
	}
}

// Validate reports configuration that cannot produce sane entitlements.
func (p Policy) Validate() error {
	if p.BaseAnnualGrant <= 0 || p.MonthlyGrantCap <= 0 {
		return fmt.Errorf("%w: grants must be positive", ErrInvalidPolicy)
	}
	if p.AnnualGrantCeiling < p.BaseAnnualGrant {
		return fmt.Errorf("%w: ceiling %d below base grant %d", ErrInvalidPolicy, p.AnnualGrantCeiling, p.BaseAnnualGrant)
	}
	if p.StepEveryYears <= 0 || p.StepStartYear <= 0 {
		return fmt.Errorf("%w: step configuration must be positive", ErrInvalidPolicy)
	}
	if p.SeniorTenureDays <= 0 || p.MaxBoundaryWalk <= 0 {
		return fmt.Errorf("%w: tenure boundary and walk cap must be positive", ErrInvalidPolicy)
	}
	switch p.CheckMode {
	case CheckFullYear, CheckTodayGated:
	default:
		return fmt.Errorf("%w: unknown anniversary check mode %q", ErrInvalidPolicy, p.CheckMode)
	}
	return nil
}

// =============================================================================
// ACCRUAL POLICY - Entitlement queries
// =============================================================================

// AccrualPolicy answers entitlement queries for a policy. Stateless and
// safe for concurrent use.
type AccrualPolicy struct {
	Policy Policy
	Trace  Tracer
}

func NewAccrualPolicy(p Policy) *AccrualPolicy {
	return &AccrualPolicy{Policy: p}
}

// Senior reports whether the employee is under the annual regime at the
// query date: tenure in days at asOf reaching SeniorTenureDays (strict
// less-than keeps day 364 monthly), or a forcing override.
func (ap *AccrualPolicy) Senior(emp Employee, asOf calendar.Date) bool {
	forced := emp.ForceSeniorRegime || (ap.Policy.LongTenure != nil && ap.Policy.LongTenure(emp))
	senior := forced || calendar.DaysBetween(emp.HireDate, asOf) >= ap.Policy.SeniorTenureDays
	ap.Trace.emit(TraceRegimeSelected, emp.ID, asOf, map[string]any{
		"senior": senior,
		"forced": forced,
	})
	return senior
}

// MonthlyEntitlement returns the monthly-regime entitlement accrued by
// asOf: one unit per completed month, capped.
func (ap *AccrualPolicy) MonthlyEntitlement(hire, asOf calendar.Date) decimal.Decimal {
	months := calendar.MonthsElapsed(hire, asOf)
	if months > ap.Policy.MonthlyGrantCap {
		months = ap.Policy.MonthlyGrantCap
	}
	return decimal.NewFromInt(int64(months))
}

// AnnualGrant returns the tiered grant for the period ending at
// anniversary n. Zero for n < 1.
func (ap *AccrualPolicy) AnnualGrant(n int) decimal.Decimal {
	if n < 1 {
		return decimal.Zero
	}
	grant := ap.Policy.BaseAnnualGrant
	if n >= ap.Policy.StepStartYear {
		grant += (n-ap.Policy.StepStartYear)/ap.Policy.StepEveryYears + 1
	}
	if grant > ap.Policy.AnnualGrantCeiling {
		grant = ap.Policy.AnnualGrantCeiling
	}
	return decimal.NewFromInt(int64(grant))
}

// EntitlementForPeriod is the single public entitlement query: the units
// earned for the accrual period ending at periodEnd. Under the monthly
// regime this is the cumulative monthly figure; under the annual regime it
// is the grant for the most recent anniversary reached by periodEnd.
func (ap *AccrualPolicy) EntitlementForPeriod(emp Employee, periodEnd calendar.Date) decimal.Decimal {
	if periodEnd.Before(emp.HireDate) {
		return decimal.Zero
	}
	if !ap.Senior(emp, periodEnd) {
		return ap.MonthlyEntitlement(emp.HireDate, periodEnd)
	}
	n := calendar.YearsElapsed(emp.HireDate, periodEnd)
	if n < 1 {
		// Forced senior treatment before the first anniversary.
		n = 1
	}
	return ap.AnnualGrant(n)
}
