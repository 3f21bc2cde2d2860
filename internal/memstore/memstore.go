// Package memstore is an in-memory implementation of every component store
// interface. It backs the unit tests and any environment without Postgres;
// the mutex gives it the same per-window serialization the SQL stores get
// from row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalink/schedcore/internal/queue"
	"github.com/pharmalink/schedcore/internal/sched"
)

type Store struct {
	mu           sync.Mutex
	windows      map[string]sched.DeliveryWindow // key YYYY-MM-DD
	reservations map[string]sched.Reservation
	orders       map[string]sched.Order
	batches      map[string]sched.Batch
	shipments    map[string]sched.Shipment
	audit        []sched.AuditEntry
}

func New() *Store {
	return &Store{
		windows:      map[string]sched.DeliveryWindow{},
		reservations: map[string]sched.Reservation{},
		orders:       map[string]sched.Order{},
		batches:      map[string]sched.Batch{},
		shipments:    map[string]sched.Shipment{},
	}
}

func dayKey(t time.Time) string { return sched.Day(t).Format("2006-01-02") }

// --- seeding helpers -------------------------------------------------------

func (s *Store) AddWindow(date time.Time, capacityMinutes int) sched.DeliveryWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := sched.DeliveryWindow{
		ID:              uuid.NewString(),
		Date:            sched.Day(date),
		CapacityMinutes: capacityMinutes,
		CreatedAt:       time.Now(),
	}
	s.windows[dayKey(date)] = w
	return w
}

func (s *Store) PutOrder(o sched.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *Store) PutBatch(b sched.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
}

func (s *Store) PutShipment(sh sched.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[sh.ID] = sh
}

func (s *Store) Batch(id string) (sched.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	return b, ok
}

// AuditTrail returns the audit entries for one entity, in append order.
func (s *Store) AuditTrail(et sched.EntityType, id string) []sched.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sched.AuditEntry
	for _, e := range s.audit {
		if e.EntityType == et && e.EntityID == id {
			out = append(out, e)
		}
	}
	return out
}

// --- ledger.Store / kpi.Store window reads ---------------------------------

func (s *Store) GetWindow(ctx context.Context, date time.Time) (sched.DeliveryWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[dayKey(date)]
	if !ok {
		return sched.DeliveryWindow{}, &sched.NotFoundError{Kind: "window", Key: dayKey(date)}
	}
	return w, nil
}

func (s *Store) WindowsInRange(ctx context.Context, start, end time.Time) ([]sched.DeliveryWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sched.DeliveryWindow
	for _, w := range s.windows {
		if !w.Date.Before(sched.Day(start)) && !w.Date.After(sched.Day(end)) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) CommittedMinutes(ctx context.Context, date time.Time, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedLocked(date, now), nil
}

func (s *Store) MinutesBreakdown(ctx context.Context, date time.Time, now time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(date)
	confirmed, tentative := 0, 0
	for _, r := range s.reservations {
		if dayKey(r.WindowDate) != key || !r.Active(now) {
			continue
		}
		if r.Status == sched.ReservationConfirmed {
			confirmed += r.EstimatedMinutes
		} else {
			tentative += r.EstimatedMinutes
		}
	}
	return confirmed, tentative, nil
}

func (s *Store) committedLocked(date time.Time, now time.Time) int {
	key := dayKey(date)
	total := 0
	for _, r := range s.reservations {
		if dayKey(r.WindowDate) == key && r.Active(now) {
			total += r.EstimatedMinutes
		}
	}
	return total
}

// --- reservation.Store -----------------------------------------------------

func (s *Store) Get(ctx context.Context, id string) (sched.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return sched.Reservation{}, &sched.NotFoundError{Kind: "reservation", Key: id}
	}
	return r, nil
}

func (s *Store) CreateInWindow(ctx context.Context, date time.Time,
	build func(w sched.DeliveryWindow, committedMinutes int) (sched.Reservation, sched.AuditEntry, error)) (sched.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[dayKey(date)]
	if !ok {
		return sched.Reservation{}, &sched.NotFoundError{Kind: "window", Key: dayKey(date)}
	}
	res, entry, err := build(w, s.committedLocked(date, time.Now()))
	if err != nil {
		return sched.Reservation{}, err
	}
	s.reservations[res.ID] = res
	s.audit = append(s.audit, entry)
	return res, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, from, to sched.ReservationStatus, audit sched.AuditEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	s.reservations[id] = r
	s.audit = append(s.audit, audit)
	return true, nil
}

// ConfirmTentative checks status and expiry under the same lock as the
// write, against the same clock committedLocked uses, so a lapsed hold
// whose minutes were already re-booked can never come back to life.
func (s *Store) ConfirmTentative(ctx context.Context, id string, audit sched.AuditEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != sched.ReservationTentative || r.ExpiresAt.Before(time.Now()) {
		return false, nil
	}
	r.Status = sched.ReservationConfirmed
	s.reservations[id] = r
	s.audit = append(s.audit, audit)
	return true, nil
}

func (s *Store) ExpireBefore(ctx context.Context, now time.Time,
	audit func(r sched.Reservation) sched.AuditEntry) ([]sched.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []sched.Reservation
	for id, r := range s.reservations {
		if r.Status == sched.ReservationTentative && r.ExpiresAt.Before(now) {
			r.Status = sched.ReservationExpired
			s.reservations[id] = r
			s.audit = append(s.audit, audit(r))
			swept = append(swept, r)
		}
	}
	return swept, nil
}

// --- transition.Store ------------------------------------------------------

func (s *Store) GetStatus(ctx context.Context, et sched.EntityType, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(et, id)
}

func (s *Store) statusLocked(et sched.EntityType, id string) (string, error) {
	switch et {
	case sched.EntityOrder:
		if o, ok := s.orders[id]; ok {
			return string(o.Status), nil
		}
	case sched.EntityBatch:
		if b, ok := s.batches[id]; ok {
			return string(b.Status), nil
		}
	case sched.EntityShipment:
		if sh, ok := s.shipments[id]; ok {
			return string(sh.Status), nil
		}
	}
	return "", &sched.NotFoundError{Kind: string(et), Key: id}
}

func (s *Store) ApplyStatus(ctx context.Context, et sched.EntityType, id, from, to string, audit sched.AuditEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.statusLocked(et, id)
	if err != nil {
		return false, err
	}
	if cur != from {
		return false, nil
	}
	now := time.Now()
	switch et {
	case sched.EntityOrder:
		o := s.orders[id]
		o.Status = sched.OrderStatus(to)
		o.UpdatedAt = now
		s.orders[id] = o
	case sched.EntityBatch:
		b := s.batches[id]
		b.Status = sched.BatchStatus(to)
		b.UpdatedAt = now
		if b.Status == sched.BatchReleased && b.ReleasedAt == nil {
			b.ReleasedAt = &now
		}
		s.batches[id] = b
	case sched.EntityShipment:
		sh := s.shipments[id]
		sh.Status = sched.ShipmentStatus(to)
		sh.UpdatedAt = now
		s.shipments[id] = sh
	}
	s.audit = append(s.audit, audit)
	return true, nil
}

// --- kpi.Store history reads -----------------------------------------------

func (s *Store) BatchesReleasedIn(ctx context.Context, start, end time.Time) ([]sched.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sched.Batch
	for _, b := range s.batches {
		if b.ReleasedAt != nil && inRange(*b.ReleasedAt, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) BatchesEndedIn(ctx context.Context, start, end time.Time) ([]sched.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sched.Batch
	for _, b := range s.batches {
		if b.ActualEnd != nil && inRange(*b.ActualEnd, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) DeliveredShipmentsIn(ctx context.Context, start, end time.Time) ([]sched.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sched.Shipment
	for _, sh := range s.shipments {
		if sh.Status != sched.ShipmentDelivered {
			continue
		}
		at := sh.UpdatedAt
		if sh.ActualArrival != nil {
			at = *sh.ActualArrival
		}
		if inRange(at, start, end) {
			out = append(out, sh)
		}
	}
	return out, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// --- queue.Store -----------------------------------------------------------

func (s *Store) RowsInStatus(ctx context.Context, et sched.EntityType, statuses []string, limit int) ([]queue.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		in[st] = true
	}

	var rows []queue.Row
	switch et {
	case sched.EntityOrder:
		for _, o := range s.orders {
			if in[string(o.Status)] {
				rows = append(rows, queue.Row{ID: o.ID, Title: o.CustomerRef, Subtitle: o.ProductRef, ETA: o.DeliveryDate, Status: string(o.Status)})
			}
		}
	case sched.EntityBatch:
		for _, b := range s.batches {
			if in[string(b.Status)] {
				rows = append(rows, queue.Row{ID: b.ID, Title: b.ProductRef, ETA: b.PlannedEnd, Status: string(b.Status)})
			}
		}
	case sched.EntityShipment:
		for _, sh := range s.shipments {
			if in[string(sh.Status)] {
				rows = append(rows, queue.Row{ID: sh.ID, Title: sh.CustomerRef, Subtitle: sh.Courier, ETA: sh.ExpectedArrival, Status: string(sh.Status)})
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].ETA, rows[j].ETA
		switch {
		case a == nil && b == nil:
			return rows[i].ID < rows[j].ID
		case a == nil:
			return false // nil ETAs sort last
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) CountByStatus(ctx context.Context, et sched.EntityType, now time.Time) ([]queue.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]*queue.StatusCount{}
	bump := func(status string, eta *time.Time) {
		c, ok := counts[status]
		if !ok {
			c = &queue.StatusCount{Status: status}
			counts[status] = c
		}
		c.Count++
		if eta != nil && eta.Before(now) && !sched.Terminal(et, status) {
			c.LateCount++
		}
	}
	switch et {
	case sched.EntityOrder:
		for _, o := range s.orders {
			bump(string(o.Status), o.DeliveryDate)
		}
	case sched.EntityBatch:
		for _, b := range s.batches {
			bump(string(b.Status), b.PlannedEnd)
		}
	case sched.EntityShipment:
		for _, sh := range s.shipments {
			bump(string(sh.Status), sh.ExpectedArrival)
		}
	}
	out := make([]queue.StatusCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}
