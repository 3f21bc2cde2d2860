package queue

import (
	"context"
	"time"

	"github.com/pharmalink/schedcore/internal/sched"
)

// Row is the store-level projection of a queue candidate: whatever entity
// it is, reduced to the fields a work queue renders.
type Row struct {
	ID       string
	Title    string
	Subtitle string
	ETA      *time.Time
	Status   string
}

// StatusCount backs the dashboard's journey funnel.
type StatusCount struct {
	Status    string
	Count     int
	LateCount int // entities past their due/expected time and not terminal
}

type Store interface {
	// RowsInStatus returns entities of the type whose status is in statuses,
	// ordered by ETA ascending with null ETAs last, capped at limit.
	RowsInStatus(ctx context.Context, et sched.EntityType, statuses []string, limit int) ([]Row, error)

	// CountByStatus returns per-status totals and late counts for the type.
	CountByStatus(ctx context.Context, et sched.EntityType, now time.Time) ([]StatusCount, error)
}
