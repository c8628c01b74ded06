package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestProjector(policy leave.Policy) (*leave.BalanceProjector, *memory.Store) {
	store := memory.New()
	ap := leave.NewAccrualPolicy(policy)
	projector := &leave.BalanceProjector{
		Policy:     ap,
		Directory:  store,
		Events:     store,
		Overrides:  store,
		Expiration: leave.NewExpirationEngine(ap, store, store),
		Snapshots:  store,
	}
	return projector, store
}

func saveEmployee(t *testing.T, store *memory.Store, emp leave.Employee) {
	t.Helper()
	require.NoError(t, store.SaveEmployee(context.Background(), emp))
}

// =============================================================================
// FIRST-YEAR PROJECTION - Monthly regime
// =============================================================================

func TestProject_HireYear_MonthlyAccrual(t *testing.T) {
	// GIVEN: Hired 2024-03-10, one day taken in August
	// WHEN: Projecting 2024 as of year end
	// THEN: 9 monthly units accrued, 1 used, 8 remaining, no carry

	projector, store := newTestProjector(leave.DefaultPolicy())
	emp := employee("emp-1", date(2024, time.March, 10))
	saveEmployee(t, store, emp)
	recordDays(t, store, "emp-1", date(2024, time.August, 5))

	bal, err := projector.Project(context.Background(), "emp-1", 2024, date(2024, time.December, 31))
	require.NoError(t, err)

	assert.Equal(t, "9", bal.YearAccrual.String())
	assert.Equal(t, "1", bal.YearUsage.String())
	assert.True(t, bal.CarryIn.IsZero())
	assert.Equal(t, "8", bal.Remaining.String())
	assert.Equal(t, "1", bal.MonthlyUsage[int(time.August)-1].String())
}

func TestProject_HireYear_ForcedSeniorGetsAnnualGrant(t *testing.T) {
	// GIVEN: Two employees hired 2025-01-01, one forced onto the annual
	//        regime as a legacy record
	// WHEN: Projecting the hire year as of year end
	// THEN: The forced employee gets the year-1 grant, the other the
	//       monthly figure

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	asOf := date(2025, time.December, 31)

	forced := employee("emp-legacy", date(2025, time.January, 1))
	forced.ForceSeniorRegime = true
	saveEmployee(t, store, forced)
	saveEmployee(t, store, employee("emp-new", date(2025, time.January, 1)))

	legacy, err := projector.Project(ctx, "emp-legacy", 2025, asOf)
	require.NoError(t, err)
	assert.Equal(t, "15", legacy.YearAccrual.String())
	assert.Equal(t, "15", legacy.Remaining.String())

	regular, err := projector.Project(ctx, "emp-new", 2025, asOf)
	require.NoError(t, err)
	assert.Equal(t, "11", regular.YearAccrual.String())
}

func TestProject_YearBeforeHire_IsZero(t *testing.T) {
	projector, store := newTestProjector(leave.DefaultPolicy())
	saveEmployee(t, store, employee("emp-1", date(2024, time.March, 10)))

	bal, err := projector.Project(context.Background(), "emp-1", 2023, date(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, bal.YearAccrual.IsZero())
	assert.True(t, bal.Remaining.IsZero())
}

// =============================================================================
// CARRY-OVER CHAIN
// =============================================================================

func TestProject_CarryNettedAgainstExpirations(t *testing.T) {
	// GIVEN: Prior-year remaining 17 cached, 14 units forfeited at the
	//        report-year anniversary, one day taken after it
	// THEN: carry 17-14=3, remaining (15-1)+3 = 17

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	emp := employee("emp-1", date(2023, time.May, 30))
	saveEmployee(t, store, emp)

	require.NoError(t, store.SaveSnapshot(ctx, leave.Snapshot{
		EmployeeID: "emp-1", Year: 2024,
		Remaining: decimal.NewFromInt(17), TakenAt: date(2024, time.December, 31),
	}))
	require.NoError(t, store.RecordExpiration(ctx, leave.ExpirationRecord{
		EmployeeID: "emp-1", Kind: leave.ExpireAnnual,
		Amount: decimal.NewFromInt(14), ExpiredAt: date(2025, time.May, 30), PeriodYear: 2,
	}))
	recordDays(t, store, "emp-1", date(2025, time.July, 1))

	bal, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.December, 31))
	require.NoError(t, err)

	assert.Equal(t, "3", bal.CarryIn.String())
	assert.Equal(t, "15", bal.YearAccrual.String())
	assert.Equal(t, "1", bal.YearUsage.String())
	assert.Equal(t, "17", bal.Remaining.String())
}

func TestProject_ExpirationClampsCarryOnly(t *testing.T) {
	// GIVEN: Forfeitures larger than the carried balance
	// THEN: Carry clamps to zero; the current-year figure is untouched

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	emp := employee("emp-1", date(2023, time.May, 30))
	saveEmployee(t, store, emp)

	require.NoError(t, store.SaveSnapshot(ctx, leave.Snapshot{
		EmployeeID: "emp-1", Year: 2024,
		Remaining: decimal.NewFromInt(5), TakenAt: date(2024, time.December, 31),
	}))
	require.NoError(t, store.RecordExpiration(ctx, leave.ExpirationRecord{
		EmployeeID: "emp-1", Kind: leave.ExpireAnnual,
		Amount: decimal.NewFromInt(14), ExpiredAt: date(2025, time.May, 30), PeriodYear: 2,
	}))

	bal, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.December, 31))
	require.NoError(t, err)

	assert.True(t, bal.CarryIn.IsZero())
	assert.Equal(t, "15", bal.Remaining.String())
}

func TestProject_NegativeRemainingSurfaced(t *testing.T) {
	// GIVEN: More usage than accrual plus carry
	// THEN: The negative balance is published, never clamped

	projector, store := newTestProjector(leave.DefaultPolicy())
	emp := employee("emp-1", date(2024, time.March, 10))
	saveEmployee(t, store, emp)

	var dates []calendar.Date
	for i := 0; i < 12; i++ {
		dates = append(dates, date(2024, time.September, 1).AddDays(i))
	}
	recordDays(t, store, "emp-1", dates...)

	bal, err := projector.Project(context.Background(), "emp-1", 2024, date(2024, time.December, 31))
	require.NoError(t, err)

	// 9 accrued, 12 used.
	assert.Equal(t, "-3", bal.Remaining.String())
}

// =============================================================================
// SNAPSHOT CACHE - Pure-cache property
// =============================================================================

func TestProject_SnapshotMatchesRecompute(t *testing.T) {
	// GIVEN: A three-year history with usage in every year
	// WHEN: Projecting with the cache cold, then warm, then disabled
	// THEN: All three paths publish the identical remaining balance

	history := func() (*leave.BalanceProjector, *memory.Store) {
		projector, store := newTestProjector(leave.DefaultPolicy())
		saveEmployee(t, store, employee("emp-1", date(2023, time.May, 30)))
		recordDays(t, store, "emp-1",
			date(2023, time.August, 1),
			date(2024, time.March, 1),
			date(2024, time.July, 1),
			date(2025, time.June, 2),
		)
		return projector, store
	}
	ctx := context.Background()
	asOf := date(2025, time.December, 31)

	projector, _ := history()
	cold, err := projector.Project(ctx, "emp-1", 2025, asOf)
	require.NoError(t, err)

	// The cold run populated 2023 and 2024 snapshots; this one reads them.
	warm, err := projector.Project(ctx, "emp-1", 2025, asOf)
	require.NoError(t, err)

	uncachedProjector, _ := history()
	uncachedProjector.Snapshots = nil
	uncached, err := uncachedProjector.Project(ctx, "emp-1", 2025, asOf)
	require.NoError(t, err)

	assert.True(t, cold.Remaining.Equal(warm.Remaining))
	assert.True(t, cold.Remaining.Equal(uncached.Remaining))
	assert.True(t, cold.CarryIn.Equal(warm.CarryIn))
}

func TestProject_OpenYearNotSnapshotted(t *testing.T) {
	// GIVEN: A projection in the middle of the report year
	// THEN: No snapshot is cached; the figure can still change

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	saveEmployee(t, store, employee("emp-1", date(2023, time.May, 30)))

	_, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.July, 1))
	require.NoError(t, err)

	_, err = store.Snapshot(ctx, "emp-1", 2025)
	assert.ErrorIs(t, err, leave.ErrSnapshotNotFound)
}

func TestInvalidate_DropsDerivedRecords(t *testing.T) {
	// GIVEN: A projection that wrote expirations and snapshots
	// WHEN: Invalidating after a hire-date correction
	// THEN: Both derived stores are empty for the employee

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	saveEmployee(t, store, employee("emp-1", date(2023, time.May, 30)))

	_, err := projector.Project(ctx, "emp-1", 2024, date(2025, time.June, 1))
	require.NoError(t, err)

	require.NoError(t, projector.Invalidate(ctx, "emp-1"))

	recs, err := store.Expirations(ctx, "emp-1", date(2020, time.January, 1), date(2030, time.January, 1))
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = store.Snapshot(ctx, "emp-1", 2024)
	assert.ErrorIs(t, err, leave.ErrSnapshotNotFound)
}

// =============================================================================
// EPOCH GATING
// =============================================================================

func TestProject_TodayGated_GrantHiddenBeforeAnniversary(t *testing.T) {
	// GIVEN: The gated check mode and a query before the anniversary
	// THEN: The report-year grant is zero until the anniversary passes

	policy := leave.DefaultPolicy()
	policy.CheckMode = leave.CheckTodayGated
	projector, store := newTestProjector(policy)
	ctx := context.Background()
	saveEmployee(t, store, employee("emp-1", date(2023, time.May, 30)))

	before, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.April, 1))
	require.NoError(t, err)
	assert.True(t, before.YearAccrual.IsZero())

	after, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, "15", after.YearAccrual.String())
}

// =============================================================================
// OVERRIDES
// =============================================================================

func TestProject_OverrideAfterAnniversaryApplied(t *testing.T) {
	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	saveEmployee(t, store, employee("emp-1", date(2023, time.May, 30)))

	require.NoError(t, store.UpsertOverride(ctx, leave.MonthlyOverride{
		EmployeeID: "emp-1", Year: 2025, Month: time.September,
		Value: decimal.RequireFromString("1.5"),
	}))

	bal, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.December, 31))
	require.NoError(t, err)

	assert.Equal(t, "1.5", bal.MonthlyUsage[int(time.September)-1].String())
	assert.Equal(t, "1.5", bal.YearUsage.String())
	assert.Empty(t, bal.Warnings)
}

func TestProject_OverrideBeforeAnniversaryRejected(t *testing.T) {
	// GIVEN: A manual override for March, anniversary in May
	// THEN: The value is ignored and a warning is published

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	saveEmployee(t, store, employee("emp-1", date(2023, time.May, 30)))

	require.NoError(t, store.UpsertOverride(ctx, leave.MonthlyOverride{
		EmployeeID: "emp-1", Year: 2025, Month: time.March,
		Value: decimal.NewFromInt(2),
	}))

	bal, err := projector.Project(ctx, "emp-1", 2025, date(2025, time.December, 31))
	require.NoError(t, err)

	assert.True(t, bal.MonthlyUsage[int(time.March)-1].IsZero())
	require.Len(t, bal.Warnings, 1)
	assert.Contains(t, bal.Warnings[0], "2025-03")
}

// =============================================================================
// FAILURE SEMANTICS
// =============================================================================

func TestProject_MissingEmployee_ZeroRowNilError(t *testing.T) {
	projector, _ := newTestProjector(leave.DefaultPolicy())

	bal, err := projector.Project(context.Background(), "ghost", 2025, date(2025, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, leave.EmployeeID("ghost"), bal.EmployeeID)
	assert.True(t, bal.Remaining.IsZero())
	assert.True(t, bal.YearAccrual.IsZero())
}

// flakyEvents fails event loads for one employee to exercise batch
// isolation.
type flakyEvents struct {
	inner   leave.EventStore
	failFor leave.EmployeeID
}

func (f *flakyEvents) RecordEvent(ctx context.Context, ev leave.Event) error {
	return f.inner.RecordEvent(ctx, ev)
}

func (f *flakyEvents) Events(ctx context.Context, id leave.EmployeeID, from, to calendar.Date) ([]leave.Event, error) {
	if id == f.failFor {
		return nil, errors.New("register unavailable")
	}
	return f.inner.Events(ctx, id, from, to)
}

func (f *flakyEvents) DeleteEvent(ctx context.Context, ev leave.Event) error {
	return f.inner.DeleteEvent(ctx, ev)
}

func TestProjectAll_OneFailureDoesNotBlockOthers(t *testing.T) {
	// GIVEN: Two employees, one whose event history cannot be loaded
	// WHEN: Projecting the whole roster
	// THEN: The healthy row is returned alongside a per-employee error

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()
	saveEmployee(t, store, employee("emp-ok", date(2024, time.March, 10)))
	saveEmployee(t, store, employee("emp-bad", date(2024, time.March, 10)))

	flaky := &flakyEvents{inner: store, failFor: "emp-bad"}
	projector.Events = flaky
	projector.Expiration = leave.NewExpirationEngine(projector.Policy, flaky, store)

	rows, errs, err := projector.ProjectAll(ctx, 2024, date(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, leave.EmployeeID("emp-ok"), rows[0].EmployeeID)

	require.Len(t, errs, 1)
	assert.Equal(t, leave.EmployeeID("emp-bad"), errs[0].EmployeeID)
	assert.ErrorContains(t, errs[0], "register unavailable")
}

// =============================================================================
// RESIGNATION
// =============================================================================

func TestProject_ResignationCapsHorizonAndFinalizesYear(t *testing.T) {
	// GIVEN: Resignation 2024-09-15, events before and after it
	// WHEN: Projecting 2024 from well past the resignation
	// THEN: Accrual and usage stop at the resignation; the year snapshots

	projector, store := newTestProjector(leave.DefaultPolicy())
	ctx := context.Background()

	resigned := date(2024, time.September, 15)
	emp := employee("emp-1", date(2024, time.January, 10))
	emp.ResignationDate = &resigned
	emp.Active = false
	saveEmployee(t, store, emp)
	recordDays(t, store, "emp-1", date(2024, time.August, 5), date(2024, time.October, 7))

	bal, err := projector.Project(ctx, "emp-1", 2024, date(2025, time.March, 1))
	require.NoError(t, err)

	// 8 completed months by Sep 15; the October day is past the horizon.
	assert.Equal(t, "8", bal.YearAccrual.String())
	assert.Equal(t, "1", bal.YearUsage.String())
	assert.Equal(t, "7", bal.Remaining.String())

	snap, err := store.Snapshot(ctx, "emp-1", 2024)
	require.NoError(t, err)
	assert.True(t, snap.Remaining.Equal(bal.Remaining))
}

func TestProject_ForfeitOnResignation(t *testing.T) {
	// GIVEN: Hired 2023-05-30, resigned 2025-03-01, 30 units standing at
	//        the resignation (15 carried + year-2 grant)
	// WHEN: Projecting 2025 with the forfeit rule off, then on
	// THEN: Off publishes the balance; on zeroes it at the resignation.
	//       Years fully before the resignation are untouched either way.

	build := func(policy leave.Policy) *leave.BalanceProjector {
		projector, store := newTestProjector(policy)
		resigned := date(2025, time.March, 1)
		emp := employee("emp-1", date(2023, time.May, 30))
		emp.ResignationDate = &resigned
		emp.Active = false
		saveEmployee(t, store, emp)
		return projector
	}
	ctx := context.Background()
	asOf := date(2025, time.December, 31)

	kept, err := build(leave.DefaultPolicy()).Project(ctx, "emp-1", 2025, asOf)
	require.NoError(t, err)
	assert.Equal(t, "15", kept.CarryIn.String())
	assert.Equal(t, "30", kept.Remaining.String())

	policy := leave.DefaultPolicy()
	policy.ForfeitOnResignation = true
	forfeitProjector := build(policy)

	forfeited, err := forfeitProjector.Project(ctx, "emp-1", 2025, asOf)
	require.NoError(t, err)
	assert.Equal(t, "15", forfeited.CarryIn.String())
	assert.True(t, forfeited.Remaining.IsZero())

	prior, err := forfeitProjector.Project(ctx, "emp-1", 2024, asOf)
	require.NoError(t, err)
	assert.Equal(t, "15", prior.Remaining.String())
}
