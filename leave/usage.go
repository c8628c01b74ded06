/*
usage.go - Usage aggregation with half-day deduplication

PURPOSE:
  Sums consumed leave units over a half-open date range [start, end).
  FullDay events always contribute 1.0. HalfDay events contribute 0.5 for
  the FIRST HalfDay seen on a calendar date within one aggregation call;
  further half-day records on the same date are duplicates from the
  attendance register and are ignored.

  Aggregation is a pure function: no mutation, order independent, and
  callable repeatedly with overlapping ranges without double counting
  (the seen-dates set is local to each call).

SEE ALSO:
  - expiration.go, projection.go: the two callers
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/calendar"
)

// =============================================================================
// USAGE AGGREGATION
// =============================================================================

// SumUsage totals the leave units consumed in [start, end). Duplicate
// HalfDay events on one date collapse to a single 0.5 contribution.
func SumUsage(events []Event, start, end calendar.Date) decimal.Decimal {
	total := decimal.Zero
	halfSeen := make(map[string]bool)

	for _, ev := range events {
		if ev.Date.Before(start) || !ev.Date.Before(end) {
			continue
		}
		switch ev.Kind {
		case HalfDay:
			key := ev.Date.String()
			if halfSeen[key] {
				continue
			}
			halfSeen[key] = true
			total = total.Add(halfUnit)
		default:
			total = total.Add(oneUnit)
		}
	}
	return total
}

// SumUsageForMonth totals usage within one calendar month, clipped to
// horizon (inclusive).
func SumUsageForMonth(events []Event, year int, month time.Month, horizon calendar.Date) decimal.Decimal {
	start := calendar.StartOfMonth(year, month)
	end := calendar.EndOfMonth(year, month)
	if horizon.Before(end) {
		end = horizon
	}
	if end.Before(start) {
		return decimal.Zero
	}
	return SumUsage(events, start, end.AddDays(1))
}

// OverrideAllowed reports whether a manual override for the given month
// may be applied. Months at or before the anniversary month of the
// employee's new accrual year are rejected: after the anniversary, only
// recorded events may contribute to the new year's usage.
func OverrideAllowed(anniversary calendar.Date, year int, month time.Month) bool {
	if anniversary.IsZero() || anniversary.Year() != year {
		return true
	}
	return month > anniversary.Month()
}
