// Package reservation holds capacity against delivery windows: tentative
// holds with a TTL, confirmation, cancellation, and the expiry sweep.
// Capacity correctness never depends on the sweep — expired holds drop out
// of committed minutes at read time.
package reservation

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/pharmalink/schedcore/internal/kafka"
	"github.com/pharmalink/schedcore/internal/sched"
)

// Publisher is the slice of the Kafka producer the manager uses. Events are
// advisory; a nil publisher disables them without affecting correctness.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Manager struct {
	Store      Store
	Created    Publisher // reservation.created
	Expired    Publisher // reservation.expired
	Service    string
	DefaultTTL time.Duration
	Now        func() time.Time
	Log        *log.Logger
}

func NewManager(store Store) *Manager {
	return &Manager{
		Store:      store,
		DefaultTTL: 15 * time.Minute,
		Now:        time.Now,
		Log:        log.Default(),
	}
}

// Reserve places a TENTATIVE hold of estimatedMinutes against the window of
// windowDate's day. The capacity check and the insert happen under the
// window's serialization domain, so concurrent callers can never jointly
// overshoot capacity.
func (m *Manager) Reserve(ctx context.Context, windowDate time.Time, estimatedMinutes int, ttl time.Duration, actorID string) (sched.Reservation, error) {
	if ttl <= 0 {
		ttl = m.DefaultTTL
	}
	day := sched.Day(windowDate)
	now := m.Now()

	res, err := m.Store.CreateInWindow(ctx, day, func(w sched.DeliveryWindow, committed int) (sched.Reservation, sched.AuditEntry, error) {
		available := w.CapacityMinutes - committed
		if estimatedMinutes > available {
			return sched.Reservation{}, sched.AuditEntry{}, &sched.CapacityExceededError{
				WindowDate:       day.Format("2006-01-02"),
				RequestedMinutes: estimatedMinutes,
				AvailableMinutes: available,
			}
		}
		r := sched.Reservation{
			ID:               uuid.NewString(),
			WindowDate:       day,
			EstimatedMinutes: estimatedMinutes,
			Status:           sched.ReservationTentative,
			CreatedAt:        now,
			ExpiresAt:        now.Add(ttl),
		}
		return r, m.audit(r.ID, "reservation.create", actorID, "", string(r.Status)), nil
	})
	if err != nil {
		return sched.Reservation{}, err
	}

	m.publish(m.Created, sched.EventReservationCreated, res.ID, sched.ReservationCreatedPayload{
		ReservationID:    res.ID,
		WindowDate:       day.Format("2006-01-02"),
		EstimatedMinutes: res.EstimatedMinutes,
		ExpiresAt:        res.ExpiresAt,
	})
	return res, nil
}

// Confirm promotes a live TENTATIVE hold to CONFIRMED. Capacity accounting
// is unaffected: confirmed and unexpired tentative holds count identically.
// The expiry guard lives inside the store's CAS, not here: a hold that
// lapses between this read and the write loses atomically, because its
// freed minutes may already back a newer reservation.
func (m *Manager) Confirm(ctx context.Context, id, actorID string) (sched.Reservation, error) {
	r, err := m.Store.Get(ctx, id)
	if err != nil {
		return sched.Reservation{}, err
	}
	if r.Status != sched.ReservationTentative {
		return sched.Reservation{}, &sched.InvalidStateError{Kind: "reservation", Key: id, State: string(r.Status), Attempt: "confirm"}
	}
	if r.ExpiresAt.Before(m.Now()) {
		return sched.Reservation{}, &sched.InvalidStateError{Kind: "reservation", Key: id, State: "expired TENTATIVE", Attempt: "confirm"}
	}

	ok, err := m.Store.ConfirmTentative(ctx, id,
		m.audit(id, "reservation.confirm", actorID, string(sched.ReservationTentative), string(sched.ReservationConfirmed)))
	if err != nil {
		return sched.Reservation{}, err
	}
	if !ok {
		// expiry, sweep or cancel won the race; report the state we lost to
		state := "unknown"
		if cur, gerr := m.Store.Get(ctx, id); gerr == nil {
			state = string(cur.Status)
			if cur.Status == sched.ReservationTentative {
				state = "expired TENTATIVE"
			}
		}
		return sched.Reservation{}, &sched.InvalidStateError{Kind: "reservation", Key: id, State: state, Attempt: "confirm"}
	}
	r.Status = sched.ReservationConfirmed
	return r, nil
}

// Cancel withdraws a TENTATIVE or CONFIRMED hold, freeing its minutes
// immediately. A reservation never un-confirms to anything but CANCELLED.
func (m *Manager) Cancel(ctx context.Context, id, actorID string) error {
	r, err := m.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != sched.ReservationTentative && r.Status != sched.ReservationConfirmed {
		return &sched.InvalidStateError{Kind: "reservation", Key: id, State: string(r.Status), Attempt: "cancel"}
	}
	ok, err := m.Store.UpdateStatus(ctx, id, r.Status, sched.ReservationCancelled,
		m.audit(id, "reservation.cancel", actorID, string(r.Status), string(sched.ReservationCancelled)))
	if err != nil {
		return err
	}
	if !ok {
		cur, gerr := m.Store.Get(ctx, id)
		state := "unknown"
		if gerr == nil {
			state = string(cur.Status)
		}
		return &sched.InvalidStateError{Kind: "reservation", Key: id, State: state, Attempt: "cancel"}
	}
	return nil
}

// SweepExpired moves every TENTATIVE hold past its expiry to EXPIRED and
// emits advisory events. Idempotent for a fixed now. Committed-minutes
// reads filter expiry themselves, so the sweep only tidies terminal state.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	swept, err := m.Store.ExpireBefore(ctx, now, func(r sched.Reservation) sched.AuditEntry {
		return m.audit(r.ID, "reservation.expire", "system", string(sched.ReservationTentative), string(sched.ReservationExpired))
	})
	if err != nil {
		return 0, err
	}
	for _, r := range swept {
		m.publish(m.Expired, sched.EventReservationExpired, r.ID, sched.ReservationExpiredPayload{
			ReservationID:    r.ID,
			WindowDate:       r.WindowDate.Format("2006-01-02"),
			EstimatedMinutes: r.EstimatedMinutes,
		})
	}
	if len(swept) > 0 && m.Log != nil {
		m.Log.Info("swept expired reservations", "count", len(swept))
	}
	return len(swept), nil
}

func (m *Manager) audit(id, action, actorID, before, after string) sched.AuditEntry {
	return sched.AuditEntry{
		ID:          uuid.NewString(),
		EntityType:  "reservation",
		EntityID:    id,
		Action:      action,
		ActorID:     actorID,
		At:          m.Now(),
		BeforeState: before,
		AfterState:  after,
	}
}

func (m *Manager) publish(p Publisher, eventType, correlationID string, payload any) {
	if p == nil {
		return
	}
	ev := sched.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    m.Now().UTC(),
		Producer:      m.Service,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(sched.PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
