package reservation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/schedcore/internal/ledger"
	"github.com/pharmalink/schedcore/internal/memstore"
	"github.com/pharmalink/schedcore/internal/reservation"
	"github.com/pharmalink/schedcore/internal/sched"
)

func setup(t *testing.T, capacityMinutes int) (*memstore.Store, *reservation.Manager, *ledger.Service, time.Time) {
	t.Helper()
	store := memstore.New()
	date := sched.Day(time.Now())
	store.AddWindow(date, capacityMinutes)
	mgr := reservation.NewManager(store)
	mgr.Log = nil
	return store, mgr, ledger.New(store), date
}

func TestReserveScenario(t *testing.T) {
	ctx := context.Background()
	_, mgr, led, date := setup(t, 480)

	// 300 of 480 fits
	first, err := mgr.Reserve(ctx, date, 300, 15*time.Minute, "alice")
	require.NoError(t, err)
	assert.Equal(t, sched.ReservationTentative, first.Status)

	avail, err := led.AvailableMinutes(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 180, avail)

	// 200 more does not: 300+200 > 480
	_, err = mgr.Reserve(ctx, date, 200, 15*time.Minute, "bob")
	var capErr *sched.CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 200, capErr.RequestedMinutes)
	assert.Equal(t, 180, capErr.AvailableMinutes)

	// confirming does not change accounting
	confirmed, err := mgr.Confirm(ctx, first.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, sched.ReservationConfirmed, confirmed.Status)
	avail, err = led.AvailableMinutes(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 180, avail)

	// cancelling frees everything
	require.NoError(t, mgr.Cancel(ctx, first.ID, "alice"))
	avail, err = led.AvailableMinutes(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 480, avail)

	// and 400 now fits
	_, err = mgr.Reserve(ctx, date, 400, 15*time.Minute, "bob")
	require.NoError(t, err)
}

func TestReserveUnknownWindow(t *testing.T) {
	_, mgr, _, date := setup(t, 480)
	_, err := mgr.Reserve(context.Background(), date.AddDate(0, 0, 1), 60, time.Minute, "alice")
	var nf *sched.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "window", nf.Kind)
}

func TestNoOverbookingUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	const workers = 16
	_, mgr, _, date := setup(t, 480)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Reserve(ctx, date, 480, time.Minute, "racer")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, capacityFailures := 0, 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var capErr *sched.CapacityExceededError
		require.ErrorAs(t, err, &capErr)
		capacityFailures++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, capacityFailures)
}

func TestExpiredHoldFreesCapacityWithoutSweep(t *testing.T) {
	ctx := context.Background()
	_, mgr, led, date := setup(t, 480)

	// hold that already lapsed: TTL so small it expires immediately
	mgr.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err := mgr.Reserve(ctx, date, 480, time.Minute, "alice")
	require.NoError(t, err)
	mgr.Now = time.Now

	avail, err := led.AvailableMinutes(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 480, avail, "expired hold must not count, no sweep ran")

	_, err = mgr.Reserve(ctx, date, 480, time.Minute, "bob")
	require.NoError(t, err)
}

func TestConfirmExpiredFails(t *testing.T) {
	ctx := context.Background()
	_, mgr, _, date := setup(t, 480)

	mgr.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	r, err := mgr.Reserve(ctx, date, 100, time.Minute, "alice")
	require.NoError(t, err)
	mgr.Now = time.Now

	_, err = mgr.Confirm(ctx, r.ID, "alice")
	var ise *sched.InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestLapsedHoldCannotConfirmAfterRebooking(t *testing.T) {
	ctx := context.Background()
	_, mgr, led, date := setup(t, 480)

	// full-window hold that has already lapsed
	mgr.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := mgr.Reserve(ctx, date, 480, time.Minute, "alice")
	require.NoError(t, err)

	// lazy expiry freed the minutes, bob books the whole window
	mgr.Now = time.Now
	_, err = mgr.Reserve(ctx, date, 480, time.Minute, "bob")
	require.NoError(t, err)

	// alice's confirm races in with a clock from before the expiry instant,
	// so the manager's own pre-check does not reject it. The store's guarded
	// CAS must, or the window holds 960 of 480 minutes.
	mgr.Now = func() time.Time { return stale.ExpiresAt.Add(-time.Second) }
	_, err = mgr.Confirm(ctx, stale.ID, "alice")
	var ise *sched.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "expired TENTATIVE", ise.State)

	mgr.Now = time.Now
	avail, err := led.AvailableMinutes(ctx, date)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, avail, 0, "committed minutes never exceed capacity")
}

func TestConfirmTwiceFails(t *testing.T) {
	ctx := context.Background()
	_, mgr, _, date := setup(t, 480)

	r, err := mgr.Reserve(ctx, date, 100, time.Minute, "alice")
	require.NoError(t, err)
	_, err = mgr.Confirm(ctx, r.ID, "alice")
	require.NoError(t, err)

	_, err = mgr.Confirm(ctx, r.ID, "alice")
	var ise *sched.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, string(sched.ReservationConfirmed), ise.State)
}

func TestCancelCancelledFails(t *testing.T) {
	ctx := context.Background()
	_, mgr, _, date := setup(t, 480)

	r, err := mgr.Reserve(ctx, date, 100, time.Minute, "alice")
	require.NoError(t, err)
	require.NoError(t, mgr.Cancel(ctx, r.ID, "alice"))

	err = mgr.Cancel(ctx, r.ID, "alice")
	var ise *sched.InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, mgr, _, date := setup(t, 480)

	mgr.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	lapsed, err := mgr.Reserve(ctx, date, 100, time.Minute, "alice")
	require.NoError(t, err)
	mgr.Now = time.Now

	live, err := mgr.Reserve(ctx, date, 100, time.Hour, "bob")
	require.NoError(t, err)

	now := time.Now()
	n, err := mgr.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, sched.ReservationExpired, got.Status)
	got, err = store.Get(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, sched.ReservationTentative, got.Status)

	// same now again: nothing further
	n, err = mgr.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReservationAuditTrail(t *testing.T) {
	ctx := context.Background()
	store, mgr, _, date := setup(t, 480)

	r, err := mgr.Reserve(ctx, date, 100, time.Minute, "alice")
	require.NoError(t, err)
	_, err = mgr.Confirm(ctx, r.ID, "bob")
	require.NoError(t, err)
	require.NoError(t, mgr.Cancel(ctx, r.ID, "carol"))

	trail := store.AuditTrail("reservation", r.ID)
	require.Len(t, trail, 3)
	assert.Equal(t, "reservation.create", trail[0].Action)
	assert.Equal(t, "reservation.confirm", trail[1].Action)
	assert.Equal(t, "reservation.cancel", trail[2].Action)
	assert.Equal(t, string(sched.ReservationConfirmed), trail[2].BeforeState)
	assert.Equal(t, string(sched.ReservationCancelled), trail[2].AfterState)
}
