package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/schedcore/internal/sched"
)

type PGStore struct{ DB *pgxpool.Pool }

func (r *PGStore) GetWindow(ctx context.Context, date time.Time) (sched.DeliveryWindow, error) {
	var w sched.DeliveryWindow
	err := r.DB.QueryRow(ctx, `
		SELECT id, date, capacity_minutes, created_at
		FROM delivery_windows WHERE date = $1`, date).
		Scan(&w.ID, &w.Date, &w.CapacityMinutes, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sched.DeliveryWindow{}, &sched.NotFoundError{Kind: "window", Key: date.Format("2006-01-02")}
	}
	if err != nil {
		return sched.DeliveryWindow{}, err
	}
	w.Date = sched.Day(w.Date)
	return w, nil
}

func (r *PGStore) WindowsInRange(ctx context.Context, start, end time.Time) ([]sched.DeliveryWindow, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, date, capacity_minutes, created_at
		FROM delivery_windows
		WHERE date >= $1 AND date <= $2
		ORDER BY date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sched.DeliveryWindow
	for rows.Next() {
		var w sched.DeliveryWindow
		if err := rows.Scan(&w.ID, &w.Date, &w.CapacityMinutes, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Date = sched.Day(w.Date)
		out = append(out, w)
	}
	return out, rows.Err()
}

// CommittedMinutes applies the activity filter in SQL so every reader sees
// the same definition of "committed".
func (r *PGStore) CommittedMinutes(ctx context.Context, date time.Time, now time.Time) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(estimated_minutes), 0)
		FROM reservations
		WHERE window_date = $1
		  AND (status = 'CONFIRMED' OR (status = 'TENTATIVE' AND expires_at >= $2))`,
		date, now).Scan(&n)
	return n, err
}

func (r *PGStore) MinutesBreakdown(ctx context.Context, date time.Time, now time.Time) (int, int, error) {
	var confirmed, tentative int
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(estimated_minutes) FILTER (WHERE status = 'CONFIRMED'), 0),
		       COALESCE(SUM(estimated_minutes) FILTER (WHERE status = 'TENTATIVE' AND expires_at >= $2), 0)
		FROM reservations WHERE window_date = $1`,
		date, now).Scan(&confirmed, &tentative)
	return confirmed, tentative, err
}
