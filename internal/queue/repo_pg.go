package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/schedcore/internal/sched"
)

type PGStore struct{ DB *pgxpool.Pool }

// entityQuery projects each entity table onto the queue Row shape. ETA is
// the due/expected timestamp relevant to that entity.
func entityQuery(et sched.EntityType) (string, error) {
	switch et {
	case sched.EntityOrder:
		return `SELECT id, customer_ref, product_ref, delivery_date, status
		        FROM orders WHERE status = ANY($1)
		        ORDER BY delivery_date ASC NULLS LAST LIMIT $2`, nil
	case sched.EntityBatch:
		return `SELECT id, product_ref, '', planned_end, status
		        FROM batches WHERE status = ANY($1)
		        ORDER BY planned_end ASC NULLS LAST LIMIT $2`, nil
	case sched.EntityShipment:
		return `SELECT id, customer_ref, courier, expected_arrival, status
		        FROM shipments WHERE status = ANY($1)
		        ORDER BY expected_arrival ASC NULLS LAST LIMIT $2`, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", et)
	}
}

func (r *PGStore) RowsInStatus(ctx context.Context, et sched.EntityType, statuses []string, limit int) ([]Row, error) {
	q, err := entityQuery(et)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, q, statuses, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Title, &row.Subtitle, &row.ETA, &row.Status); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PGStore) CountByStatus(ctx context.Context, et sched.EntityType, now time.Time) ([]StatusCount, error) {
	var q string
	switch et {
	case sched.EntityOrder:
		q = `SELECT status, COUNT(*),
		            COUNT(*) FILTER (WHERE delivery_date < $1 AND status NOT IN ('DELIVERED','CANCELLED'))
		     FROM orders GROUP BY status`
	case sched.EntityBatch:
		q = `SELECT status, COUNT(*),
		            COUNT(*) FILTER (WHERE planned_end < $1 AND status NOT IN ('PACKED','REJECTED'))
		     FROM batches GROUP BY status`
	case sched.EntityShipment:
		q = `SELECT status, COUNT(*),
		            COUNT(*) FILTER (WHERE expected_arrival < $1 AND status <> 'DELIVERED')
		     FROM shipments GROUP BY status`
	default:
		return nil, fmt.Errorf("unknown entity type %q", et)
	}
	rows, err := r.DB.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count, &c.LateCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
