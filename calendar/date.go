/*
Package calendar provides anniversary-date and period-boundary arithmetic.

PURPOSE:
  Every period boundary in the leave engine is anchored to a hire-date
  anniversary, not a calendar year. This package owns the two primitives
  everything else is built on:
    - Anniversary: the date n years after a hire date
    - MonthsElapsed: whole months completed between two dates

LEAP-DAY POLICY:
  A Feb 29 hire date has no anniversary in a non-leap year. We clamp to
  the last valid day of the month (Feb 28). This matches the behavior of
  the attendance system this engine reconciles against; it is a documented
  simplification, not calendar-correct leap handling.

SEE ALSO:
  - leave/policy.go: accrual tiers driven by these primitives
  - leave/expiration.go: boundary walk over anniversaries
*/
package calendar

import "time"

// =============================================================================
// DATE - Day-granularity point in time
// =============================================================================

// Date is a calendar date with day granularity. The engine never deals in
// hours; half days are amounts, not timestamps.
type Date struct {
	t time.Time
}

func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates a time.Time to its calendar date (UTC).
func FromTime(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return FromTime(time.Now().UTC())
}

// Parse reads a date in 2006-01-02 form.
func Parse(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return FromTime(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// Min returns the earlier of two dates.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// =============================================================================
// ANNIVERSARY AND MONTH ARITHMETIC
// =============================================================================

// Anniversary returns the date n years after anchor. When the target
// month/day does not exist (Feb 29 in a non-leap year), it falls back to
// the last valid day of that month.
func Anniversary(anchor Date, n int) Date {
	if n <= 0 {
		return anchor
	}
	year := anchor.Year() + n
	day := anchor.Day()
	if last := DaysInMonth(year, anchor.Month()); day > last {
		day = last
	}
	return New(year, anchor.Month(), day)
}

// MonthsElapsed returns the number of whole months completed between
// anchor and asOf. A month counts as completed only once asOf's day of
// month has reached anchor's. Dates before anchor yield zero.
func MonthsElapsed(anchor, asOf Date) int {
	if asOf.Before(anchor) {
		return 0
	}
	months := (asOf.Year()-anchor.Year())*12 + int(asOf.Month()) - int(anchor.Month())
	if asOf.Day() < anchor.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// YearsElapsed returns the number of whole anniversary years completed at
// asOf, respecting the leap-day clamp in Anniversary.
func YearsElapsed(anchor, asOf Date) int {
	if asOf.Before(anchor) {
		return 0
	}
	n := asOf.Year() - anchor.Year()
	if n > 0 && asOf.Before(Anniversary(anchor, n)) {
		n--
	}
	return n
}

// DaysBetween returns the day count from from to to (negative when to is
// earlier).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// YEAR / MONTH HELPERS
// =============================================================================

func StartOfYear(year int) Date { return New(year, time.January, 1) }
func EndOfYear(year int) Date   { return New(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) Date { return New(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	return New(year, month, DaysInMonth(year, month))
}
