package ledger

import (
	"context"
	"time"

	"github.com/pharmalink/schedcore/internal/sched"
)

// Store is the narrow read surface the ledger needs. Committed minutes are
// derived at read time: CONFIRMED plus TENTATIVE not yet expired at `now`.
type Store interface {
	GetWindow(ctx context.Context, date time.Time) (sched.DeliveryWindow, error)
	// WindowsInRange returns windows with date in [start, end], ascending.
	WindowsInRange(ctx context.Context, start, end time.Time) ([]sched.DeliveryWindow, error)
	// CommittedMinutes sums active reservation minutes for one window.
	CommittedMinutes(ctx context.Context, date time.Time, now time.Time) (int, error)
	// MinutesBreakdown splits the active minutes into confirmed and live
	// tentative parts; their sum equals CommittedMinutes.
	MinutesBreakdown(ctx context.Context, date time.Time, now time.Time) (confirmed, tentative int, err error)
}
