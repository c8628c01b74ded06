package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/memory"
)

func date(y int, m time.Month, d int) calendar.Date {
	return calendar.New(y, m, d)
}

func TestStore_EventsSortedRegardlessOfInsertOrder(t *testing.T) {
	// GIVEN: Events recorded out of chronological order
	// WHEN: Querying the range
	// THEN: They come back date-ordered

	store := memory.New()
	ctx := context.Background()

	for _, d := range []int{20, 5, 12} {
		require.NoError(t, store.RecordEvent(ctx, leave.Event{
			EmployeeID: "emp-1", Date: date(2025, time.March, d), Kind: leave.FullDay,
		}))
	}

	events, err := store.Events(ctx, "emp-1", date(2025, time.March, 1), date(2025, time.April, 1))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 5, events[0].Date.Day())
	assert.Equal(t, 12, events[1].Date.Day())
	assert.Equal(t, 20, events[2].Date.Day())
}

func TestStore_Events_HalfOpenRange(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.RecordEvent(ctx, leave.Event{EmployeeID: "emp-1", Date: date(2025, time.March, 31), Kind: leave.FullDay}))

	events, err := store.Events(ctx, "emp-1", date(2025, time.March, 1), date(2025, time.March, 31))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_DuplicateExpirationRejected(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	rec := leave.ExpirationRecord{
		EmployeeID: "emp-1", Kind: leave.ExpireAnnual,
		Amount: decimal.NewFromInt(4), ExpiredAt: date(2025, time.May, 30), PeriodYear: 2,
	}
	require.NoError(t, store.RecordExpiration(ctx, rec))
	assert.ErrorIs(t, store.RecordExpiration(ctx, rec), leave.ErrDuplicateExpiration)

	has, err := store.HasExpiration(ctx, "emp-1", leave.ExpireAnnual, rec.ExpiredAt)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStore_SnapshotLifecycle(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Snapshot(ctx, "emp-1", 2024)
	assert.ErrorIs(t, err, leave.ErrSnapshotNotFound)

	require.NoError(t, store.SaveSnapshot(ctx, leave.Snapshot{
		EmployeeID: "emp-1", Year: 2024,
		Remaining: decimal.RequireFromString("6.5"), TakenAt: date(2024, time.December, 31),
	}))

	snap, err := store.Snapshot(ctx, "emp-1", 2024)
	require.NoError(t, err)
	assert.Equal(t, "6.5", snap.Remaining.String())

	require.NoError(t, store.DeleteSnapshots(ctx, "emp-1"))
	_, err = store.Snapshot(ctx, "emp-1", 2024)
	assert.ErrorIs(t, err, leave.ErrSnapshotNotFound)
}

func TestStore_OverrideUpsert(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	ov := leave.MonthlyOverride{EmployeeID: "emp-1", Year: 2025, Month: time.June, Value: decimal.NewFromInt(1)}
	require.NoError(t, store.UpsertOverride(ctx, ov))
	ov.Value = decimal.NewFromInt(3)
	require.NoError(t, store.UpsertOverride(ctx, ov))

	got, err := store.Overrides(ctx, "emp-1", 2025)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].Value.String())
}
