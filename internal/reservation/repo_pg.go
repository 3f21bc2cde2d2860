package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/schedcore/internal/sched"
)

// PGStore serializes per-window mutations with a row lock on the window:
// every writer takes SELECT ... FOR UPDATE on delivery_windows before
// reading committed minutes, so check-then-act is race-free per window and
// distinct windows book fully in parallel.
type PGStore struct{ DB *pgxpool.Pool }

func (r *PGStore) Get(ctx context.Context, id string) (sched.Reservation, error) {
	var res sched.Reservation
	err := r.DB.QueryRow(ctx, `
		SELECT id, window_date, estimated_minutes, status, created_at, expires_at
		FROM reservations WHERE id = $1`, id).
		Scan(&res.ID, &res.WindowDate, &res.EstimatedMinutes, &res.Status, &res.CreatedAt, &res.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sched.Reservation{}, &sched.NotFoundError{Kind: "reservation", Key: id}
	}
	if err != nil {
		return sched.Reservation{}, err
	}
	res.WindowDate = sched.Day(res.WindowDate)
	return res, nil
}

func (r *PGStore) CreateInWindow(ctx context.Context, date time.Time,
	build func(w sched.DeliveryWindow, committedMinutes int) (sched.Reservation, sched.AuditEntry, error)) (sched.Reservation, error) {

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return sched.Reservation{}, err
	}
	defer tx.Rollback(ctx)

	var w sched.DeliveryWindow
	err = tx.QueryRow(ctx, `
		SELECT id, date, capacity_minutes, created_at
		FROM delivery_windows WHERE date = $1 FOR UPDATE`, date).
		Scan(&w.ID, &w.Date, &w.CapacityMinutes, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sched.Reservation{}, &sched.NotFoundError{Kind: "window", Key: date.Format("2006-01-02")}
	}
	if err != nil {
		return sched.Reservation{}, err
	}
	w.Date = sched.Day(w.Date)

	var committed int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(estimated_minutes), 0)
		FROM reservations
		WHERE window_date = $1
		  AND (status = 'CONFIRMED' OR (status = 'TENTATIVE' AND expires_at >= now()))`,
		date).Scan(&committed); err != nil {
		return sched.Reservation{}, err
	}

	res, entry, err := build(w, committed)
	if err != nil {
		return sched.Reservation{}, err // rollback via defer
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations(id, window_date, estimated_minutes, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.WindowDate, res.EstimatedMinutes, res.Status, res.CreatedAt, res.ExpiresAt); err != nil {
		return sched.Reservation{}, err
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return sched.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return sched.Reservation{}, err
	}
	return res, nil
}

func (r *PGStore) UpdateStatus(ctx context.Context, id string, from, to sched.ReservationStatus, audit sched.AuditEntry) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertAudit(ctx, tx, audit); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// ConfirmTentative folds the expiry check into the CAS itself, on the
// database clock. The same `expires_at >= now()` boundary gates the
// committed-minutes sum in CreateInWindow, so a hold is either still
// counted and confirmable, or lapsed and permanently unconfirmable.
func (r *PGStore) ConfirmTentative(ctx context.Context, id string, audit sched.AuditEntry) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE reservations SET status = 'CONFIRMED'
		WHERE id = $1 AND status = 'TENTATIVE' AND expires_at >= now()`, id)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertAudit(ctx, tx, audit); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *PGStore) ExpireBefore(ctx context.Context, now time.Time,
	audit func(r sched.Reservation) sched.AuditEntry) ([]sched.Reservation, error) {

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE reservations SET status = 'EXPIRED'
		WHERE status = 'TENTATIVE' AND expires_at < $1
		RETURNING id, window_date, estimated_minutes, status, created_at, expires_at`, now)
	if err != nil {
		return nil, err
	}
	var swept []sched.Reservation
	for rows.Next() {
		var res sched.Reservation
		if err := rows.Scan(&res.ID, &res.WindowDate, &res.EstimatedMinutes, &res.Status, &res.CreatedAt, &res.ExpiresAt); err != nil {
			rows.Close()
			return nil, err
		}
		res.WindowDate = sched.Day(res.WindowDate)
		swept = append(swept, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, res := range swept {
		if err := insertAudit(ctx, tx, audit(res)); err != nil {
			return nil, err
		}
	}
	return swept, tx.Commit(ctx)
}

func insertAudit(ctx context.Context, tx pgx.Tx, e sched.AuditEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_log(id, entity_type, entity_id, action, actor_id, at, before_state, after_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.EntityType, e.EntityID, e.Action, e.ActorID, e.At, e.BeforeState, e.AfterState)
	return err
}
