package kpi

import (
	"context"
	"time"

	"github.com/pharmalink/schedcore/internal/sched"
)

// Store is the read-only history surface the engine aggregates over. Every
// method takes an explicit range; the engine never caches across ranges.
type Store interface {
	WindowsInRange(ctx context.Context, start, end time.Time) ([]sched.DeliveryWindow, error)
	CommittedMinutes(ctx context.Context, date time.Time, now time.Time) (int, error)

	// BatchesReleasedIn returns batches with released_at in [start, end].
	BatchesReleasedIn(ctx context.Context, start, end time.Time) ([]sched.Batch, error)
	// BatchesEndedIn returns batches whose actual production end falls in
	// [start, end]; the yield metric filters for present activity values.
	BatchesEndedIn(ctx context.Context, start, end time.Time) ([]sched.Batch, error)
	// DeliveredShipmentsIn returns DELIVERED shipments whose arrival (actual
	// arrival when recorded, last update otherwise) falls in [start, end].
	DeliveredShipmentsIn(ctx context.Context, start, end time.Time) ([]sched.Shipment, error)
}
