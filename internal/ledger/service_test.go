package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/schedcore/internal/ledger"
	"github.com/pharmalink/schedcore/internal/memstore"
	"github.com/pharmalink/schedcore/internal/reservation"
	"github.com/pharmalink/schedcore/internal/sched"
)

func TestWindowNotFound(t *testing.T) {
	led := ledger.New(memstore.New())
	_, err := led.Window(context.Background(), time.Now())
	var nf *sched.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "window", nf.Kind)
}

func TestZeroCapacityUtilization(t *testing.T) {
	store := memstore.New()
	date := sched.Day(time.Now())
	store.AddWindow(date, 0)
	led := ledger.New(store)

	pct, err := led.UtilizationPercent(context.Background(), date)
	require.NoError(t, err)
	assert.Zero(t, pct, "zero capacity reads as 0%, never a division error")
}

func TestUtilizationRounding(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	date := sched.Day(time.Now())
	store.AddWindow(date, 480)
	mgr := reservation.NewManager(store)

	_, err := mgr.Reserve(ctx, date, 100, time.Hour, "alice")
	require.NoError(t, err)

	led := ledger.New(store)
	pct, err := led.UtilizationPercent(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 21, pct, "100/480 = 20.83 rounds to 21")
}

func TestCapacityInvariantAcrossLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	date := sched.Day(time.Now())
	store.AddWindow(date, 200)
	mgr := reservation.NewManager(store)
	led := ledger.New(store)

	check := func() {
		t.Helper()
		avail, err := led.AvailableMinutes(ctx, date)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, avail, 0, "committed minutes never exceed capacity")
	}

	a, err := mgr.Reserve(ctx, date, 120, time.Hour, "u")
	require.NoError(t, err)
	check()
	_, err = mgr.Reserve(ctx, date, 80, time.Hour, "u")
	require.NoError(t, err)
	check()
	_, err = mgr.Reserve(ctx, date, 1, time.Hour, "u")
	require.Error(t, err)
	check()
	_, err = mgr.Confirm(ctx, a.ID, "u")
	require.NoError(t, err)
	check()
	require.NoError(t, mgr.Cancel(ctx, a.ID, "u"))
	check()
}

func TestHorizonSplitsTentativeAndConfirmed(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	day0 := sched.Day(time.Now())
	day1 := day0.AddDate(0, 0, 1)
	store.AddWindow(day0, 480)
	store.AddWindow(day1, 60)
	mgr := reservation.NewManager(store)

	a, err := mgr.Reserve(ctx, day0, 100, time.Hour, "u")
	require.NoError(t, err)
	_, err = mgr.Confirm(ctx, a.ID, "u")
	require.NoError(t, err)
	_, err = mgr.Reserve(ctx, day0, 50, time.Hour, "u")
	require.NoError(t, err)
	_, err = mgr.Reserve(ctx, day1, 60, time.Hour, "u")
	require.NoError(t, err)

	led := ledger.New(store)
	loads, err := led.Horizon(ctx, day0, 2)
	require.NoError(t, err)
	require.Len(t, loads, 2)

	assert.Equal(t, 100, loads[0].CommittedMinutes)
	assert.Equal(t, 50, loads[0].ReservedMinutes)
	assert.False(t, loads[0].IsFull)

	assert.Equal(t, 60, loads[1].ReservedMinutes)
	assert.True(t, loads[1].IsFull)
}
