// Package ledger owns the delivery-window capacity accounting: how many
// minutes a window holds, how many are committed, and how utilized it is.
// All mutation goes through the reservation manager; this package only reads.
package ledger

import (
	"context"
	"math"
	"time"

	"github.com/pharmalink/schedcore/internal/sched"
)

type Service struct {
	Store Store
	Now   func() time.Time
}

func New(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

func (s *Service) Window(ctx context.Context, date time.Time) (sched.DeliveryWindow, error) {
	return s.Store.GetWindow(ctx, sched.Day(date))
}

// AvailableMinutes is capacity minus committed for the window's day.
// Expired tentative holds are excluded by the store's committed-minutes
// filter, so no sweep has to run for this to be correct.
func (s *Service) AvailableMinutes(ctx context.Context, date time.Time) (int, error) {
	day := sched.Day(date)
	w, err := s.Store.GetWindow(ctx, day)
	if err != nil {
		return 0, err
	}
	used, err := s.Store.CommittedMinutes(ctx, day, s.Now())
	if err != nil {
		return 0, err
	}
	return w.CapacityMinutes - used, nil
}

// UtilizationPercent rounds to the nearest integer. Zero capacity reports
// 0%, never a division error.
func (s *Service) UtilizationPercent(ctx context.Context, date time.Time) (int, error) {
	day := sched.Day(date)
	w, err := s.Store.GetWindow(ctx, day)
	if err != nil {
		return 0, err
	}
	if w.CapacityMinutes == 0 {
		return 0, nil
	}
	used, err := s.Store.CommittedMinutes(ctx, day, s.Now())
	if err != nil {
		return 0, err
	}
	return int(math.Round(float64(used) / float64(w.CapacityMinutes) * 100)), nil
}

// WindowLoad is the dashboard's per-window capacity row. ReservedMinutes
// are live tentative holds, CommittedMinutes confirmed ones.
type WindowLoad struct {
	Date             time.Time
	CapacityMinutes  int
	ReservedMinutes  int
	CommittedMinutes int
	IsFull           bool
}

// Horizon returns the load of every window in [from, from+days), ascending.
func (s *Service) Horizon(ctx context.Context, from time.Time, days int) ([]WindowLoad, error) {
	start := sched.Day(from)
	end := start.AddDate(0, 0, days-1)
	ws, err := s.Store.WindowsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	out := make([]WindowLoad, 0, len(ws))
	for _, w := range ws {
		confirmed, tentative, err := s.Store.MinutesBreakdown(ctx, w.Date, now)
		if err != nil {
			return nil, err
		}
		out = append(out, WindowLoad{
			Date:             w.Date,
			CapacityMinutes:  w.CapacityMinutes,
			ReservedMinutes:  tentative,
			CommittedMinutes: confirmed,
			IsFull:           confirmed+tentative >= w.CapacityMinutes,
		})
	}
	return out, nil
}
