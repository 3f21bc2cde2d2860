package kpi

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/schedcore/internal/ledger"
	"github.com/pharmalink/schedcore/internal/sched"
)

// PGStore reuses the ledger's window/committed-minutes queries and adds the
// history reads the engine needs.
type PGStore struct {
	ledger.PGStore
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{PGStore: ledger.PGStore{DB: db}, DB: db}
}

func (r *PGStore) BatchesReleasedIn(ctx context.Context, start, end time.Time) ([]sched.Batch, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_ref, planned_start, planned_end, actual_start, actual_end,
		       target_activity, actual_activity, status, released_at, created_at, updated_at
		FROM batches
		WHERE released_at IS NOT NULL AND released_at >= $1 AND released_at <= $2`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatches(rows)
}

func (r *PGStore) BatchesEndedIn(ctx context.Context, start, end time.Time) ([]sched.Batch, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_ref, planned_start, planned_end, actual_start, actual_end,
		       target_activity, actual_activity, status, released_at, created_at, updated_at
		FROM batches
		WHERE actual_end IS NOT NULL AND actual_end >= $1 AND actual_end <= $2`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatches(rows)
}

func (r *PGStore) DeliveredShipmentsIn(ctx context.Context, start, end time.Time) ([]sched.Shipment, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, customer_ref, courier, expected_arrival, actual_arrival, status, created_at, updated_at
		FROM shipments
		WHERE status = 'DELIVERED'
		  AND COALESCE(actual_arrival, updated_at) >= $1
		  AND COALESCE(actual_arrival, updated_at) <= $2`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sched.Shipment
	for rows.Next() {
		var s sched.Shipment
		if err := rows.Scan(&s.ID, &s.CustomerRef, &s.Courier, &s.ExpectedArrival,
			&s.ActualArrival, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type batchRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBatches(rows batchRows) ([]sched.Batch, error) {
	var out []sched.Batch
	for rows.Next() {
		var b sched.Batch
		if err := rows.Scan(&b.ID, &b.ProductRef, &b.PlannedStart, &b.PlannedEnd,
			&b.ActualStart, &b.ActualEnd, &b.TargetActivity, &b.ActualActivity,
			&b.Status, &b.ReleasedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
