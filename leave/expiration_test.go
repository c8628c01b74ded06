package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(policy leave.Policy) (*leave.ExpirationEngine, *memory.Store) {
	store := memory.New()
	engine := leave.NewExpirationEngine(leave.NewAccrualPolicy(policy), store, store)
	return engine, store
}

func recordDays(t *testing.T, store *memory.Store, id string, dates ...calendar.Date) {
	t.Helper()
	for _, d := range dates {
		require.NoError(t, store.RecordEvent(context.Background(), leave.Event{
			EmployeeID: leave.EmployeeID(id),
			Date:       d,
			Kind:       leave.FullDay,
		}))
	}
}

func findRecord(records []leave.ExpirationRecord, kind leave.ExpirationKind, boundary calendar.Date) *leave.ExpirationRecord {
	for i := range records {
		if records[i].Kind == kind && records[i].ExpiredAt.Equal(boundary) {
			return &records[i]
		}
	}
	return nil
}

// =============================================================================
// FIRST ANNIVERSARY - Monthly one-shot plus first annual boundary
// =============================================================================

func TestExpiration_FirstAnniversary_NoUsage(t *testing.T) {
	// GIVEN: Hired 2023-05-30, no leave taken
	// WHEN: Running past the first anniversary
	// THEN: The 11 monthly units and the 15-unit first grant both expire

	engine, _ := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2023, time.May, 30))
	boundary := date(2024, time.May, 30)

	records, err := engine.Run(context.Background(), emp, date(2024, time.June, 1))
	require.NoError(t, err)
	require.Len(t, records, 2)

	monthly := findRecord(records, leave.ExpireMonthly, boundary)
	require.NotNil(t, monthly)
	assert.Equal(t, "11", monthly.Amount.String())

	annual := findRecord(records, leave.ExpireAnnual, boundary)
	require.NotNil(t, annual)
	assert.Equal(t, "15", annual.Amount.String())
}

func TestExpiration_FirstAnniversary_UsageReducesForfeiture(t *testing.T) {
	// GIVEN: Three days taken during the first year
	// THEN: Both forfeitures shrink by the used amount

	engine, store := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2023, time.May, 30))
	recordDays(t, store, "emp-1",
		date(2023, time.August, 1),
		date(2023, time.August, 2),
		date(2024, time.February, 14),
	)

	records, err := engine.Run(context.Background(), emp, date(2024, time.June, 1))
	require.NoError(t, err)

	boundary := date(2024, time.May, 30)
	monthly := findRecord(records, leave.ExpireMonthly, boundary)
	require.NotNil(t, monthly)
	assert.Equal(t, "8", monthly.Amount.String())

	annual := findRecord(records, leave.ExpireAnnual, boundary)
	require.NotNil(t, annual)
	assert.Equal(t, "12", annual.Amount.String())
}

func TestExpiration_FullyUsedPeriod_NoRecord(t *testing.T) {
	// GIVEN: Every generated unit consumed before the boundary
	// THEN: Nothing expires and no record is written

	engine, store := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2023, time.May, 30))

	var dates []calendar.Date
	for i := 0; i < 15; i++ {
		dates = append(dates, date(2023, time.July, 1).AddDays(i))
	}
	recordDays(t, store, "emp-1", dates...)

	records, err := engine.Run(context.Background(), emp, date(2024, time.June, 1))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExpiration_BoundaryNotReached(t *testing.T) {
	// GIVEN: The day before the first anniversary
	// THEN: No boundary has fired yet

	engine, _ := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2023, time.May, 30))

	records, err := engine.Run(context.Background(), emp, date(2024, time.May, 29))
	require.NoError(t, err)
	assert.Empty(t, records)
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestExpiration_RunTwice_NoDuplicates(t *testing.T) {
	// GIVEN: A walk that already processed two anniversaries
	// WHEN: Running again over the same history
	// THEN: The records are byte-for-byte the same set

	engine, _ := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2023, time.May, 30))
	asOf := date(2025, time.June, 1)

	first, err := engine.Run(context.Background(), emp, asOf)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := engine.Run(context.Background(), emp, asOf)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
		assert.True(t, first[i].ExpiredAt.Equal(second[i].ExpiredAt))
		assert.Equal(t, first[i].Kind, second[i].Kind)
	}
}

func TestExpiration_LateEventsDoNotRewriteProcessedBoundaries(t *testing.T) {
	// GIVEN: A boundary already processed with zero usage
	// WHEN: A backdated event lands inside that period and the walk reruns
	// THEN: The original record stands (recompute requires Invalidate)

	engine, store := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2023, time.May, 30))
	asOf := date(2024, time.June, 1)

	_, err := engine.Run(context.Background(), emp, asOf)
	require.NoError(t, err)

	recordDays(t, store, "emp-1", date(2023, time.September, 1))

	records, err := engine.Run(context.Background(), emp, asOf)
	require.NoError(t, err)

	annual := findRecord(records, leave.ExpireAnnual, date(2024, time.May, 30))
	require.NotNil(t, annual)
	assert.Equal(t, "15", annual.Amount.String())
}

// =============================================================================
// MULTI-YEAR WALK
// =============================================================================

func TestExpiration_LaterBoundariesUseVestedGrant(t *testing.T) {
	// GIVEN: Five anniversaries elapsed, one day taken in year three
	// THEN: Each boundary past the first forfeits that year's grant less usage

	engine, store := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2020, time.May, 30))
	recordDays(t, store, "emp-1", date(2022, time.August, 1))

	records, err := engine.Run(context.Background(), emp, date(2025, time.June, 1))
	require.NoError(t, err)

	// Year 3 period [2022-05-30, 2023-05-30) vests 16 and used 1.
	y3 := findRecord(records, leave.ExpireAnnual, date(2023, time.May, 30))
	require.NotNil(t, y3)
	assert.Equal(t, "15", y3.Amount.String())
	assert.Equal(t, 3, y3.PeriodYear)

	// Year 4 untouched: the full 16 expires.
	y4 := findRecord(records, leave.ExpireAnnual, date(2024, time.May, 30))
	require.NotNil(t, y4)
	assert.Equal(t, "16", y4.Amount.String())
}

func TestExpiration_WalkCap(t *testing.T) {
	// GIVEN: A walk cap of 3 and a decade of elapsed anniversaries
	// THEN: Only the first three annual boundaries are processed

	policy := leave.DefaultPolicy()
	policy.MaxBoundaryWalk = 3
	engine, _ := newTestEngine(policy)
	emp := employee("emp-1", date(2020, time.January, 15))

	records, err := engine.Run(context.Background(), emp, date(2030, time.January, 1))
	require.NoError(t, err)

	var annual int
	for _, rec := range records {
		if rec.Kind == leave.ExpireAnnual {
			annual++
			assert.LessOrEqual(t, rec.PeriodYear, 3)
		}
	}
	assert.Equal(t, 3, annual)
}

func TestExpiration_LeapHire_BoundaryClamped(t *testing.T) {
	// GIVEN: Hired on Feb 29
	// THEN: Non-leap boundaries fall on Feb 28, every year fires once

	engine, _ := newTestEngine(leave.DefaultPolicy())
	emp := employee("emp-1", date(2024, time.February, 29))

	records, err := engine.Run(context.Background(), emp, date(2026, time.March, 1))
	require.NoError(t, err)

	first := findRecord(records, leave.ExpireAnnual, date(2025, time.February, 28))
	require.NotNil(t, first, "first boundary clamps to Feb 28")
	second := findRecord(records, leave.ExpireAnnual, date(2026, time.February, 28))
	require.NotNil(t, second)
}
