package reservation

import (
	"context"
	"time"

	"github.com/pharmalink/schedcore/internal/sched"
)

// Store persists reservations and the audit trail of their state changes.
// Implementations must make each method an atomic unit: a reservation and
// its audit entry land together or not at all.
type Store interface {
	Get(ctx context.Context, id string) (sched.Reservation, error)

	// CreateInWindow runs build under the window's serialization domain: no
	// two concurrent calls for the same date may both observe the same
	// committedMinutes and both insert. build returns the reservation to
	// persist plus its audit entry, or an error to abort (nothing written).
	CreateInWindow(ctx context.Context, date time.Time,
		build func(w sched.DeliveryWindow, committedMinutes int) (sched.Reservation, sched.AuditEntry, error)) (sched.Reservation, error)

	// UpdateStatus moves id from `from` to `to` and appends the audit entry,
	// but only if the current status still equals `from`. Returns false when
	// the conditional check fails (a concurrent writer won).
	UpdateStatus(ctx context.Context, id string, from, to sched.ReservationStatus, audit sched.AuditEntry) (bool, error)

	// ConfirmTentative promotes id to CONFIRMED only if it is still TENTATIVE
	// AND not yet expired, checked against the store's own clock in the same
	// atomic unit as the write. A lapsed hold must never re-activate: its
	// minutes may already have been handed to a later reservation by the
	// lazy-expiry capacity filter. Returns false when the guard fails.
	ConfirmTentative(ctx context.Context, id string, audit sched.AuditEntry) (bool, error)

	// ExpireBefore moves every TENTATIVE reservation with expires_at < now
	// to EXPIRED, appending one audit entry per row, and returns the swept
	// reservations. Re-running with the same now sweeps nothing further.
	ExpireBefore(ctx context.Context, now time.Time,
		audit func(r sched.Reservation) sched.AuditEntry) ([]sched.Reservation, error)
}
