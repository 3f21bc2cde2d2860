package transition

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/schedcore/internal/sched"
)

type PGStore struct{ DB *pgxpool.Pool }

func tableFor(et sched.EntityType) (string, error) {
	switch et {
	case sched.EntityOrder:
		return "orders", nil
	case sched.EntityBatch:
		return "batches", nil
	case sched.EntityShipment:
		return "shipments", nil
	default:
		return "", fmt.Errorf("unknown entity type %q", et)
	}
}

func (r *PGStore) GetStatus(ctx context.Context, et sched.EntityType, id string) (string, error) {
	table, err := tableFor(et)
	if err != nil {
		return "", err
	}
	var s string
	err = r.DB.QueryRow(ctx, `SELECT status FROM `+table+` WHERE id = $1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &sched.NotFoundError{Kind: string(et), Key: id}
	}
	if err != nil {
		return "", err
	}
	return s, nil
}

// ApplyStatus writes the status and its audit entry in one transaction.
// The WHERE status = from clause is the compare-and-swap.
func (r *PGStore) ApplyStatus(ctx context.Context, et sched.EntityType, id, from, to string, audit sched.AuditEntry) (bool, error) {
	table, err := tableFor(et)
	if err != nil {
		return false, err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE `+table+` SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}

	// batch release timestamp feeds the lead-time KPI
	if et == sched.EntityBatch && to == string(sched.BatchReleased) {
		if _, err := tx.Exec(ctx,
			`UPDATE batches SET released_at = now() WHERE id = $1 AND released_at IS NULL`, id); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO audit_log(id, entity_type, entity_id, action, actor_id, at, before_state, after_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		audit.ID, audit.EntityType, audit.EntityID, audit.Action, audit.ActorID,
		audit.At, audit.BeforeState, audit.AfterState); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
