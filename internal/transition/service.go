// Package transition is the single mutation path for Order, Batch and
// Shipment statuses. Every change is validated against the entity's
// transition graph, written atomically with its audit entry, and announced
// on Kafka for pull-side consumers (queues, dashboards, activity feed).
package transition

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/pharmalink/schedcore/internal/kafka"
	"github.com/pharmalink/schedcore/internal/redisx"
	"github.com/pharmalink/schedcore/internal/sched"
)

// maxAttempts bounds the optimistic retry on a contended entity row.
const maxAttempts = 3

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Request struct {
	EntityType sched.EntityType
	EntityID   string
	ToStatus   string
	ActorID    string
	Note       string
}

type Service struct {
	Store    Store
	Producer Publisher     // status.changed; nil disables
	Redis    *redis.Client // status cache; nil disables
	Service  string
	Now      func() time.Time
	Log      *log.Logger
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now, Log: log.Default()}
}

// Transition applies a validated status change. The read-validate-write is
// a compare-and-swap on the current status with bounded retries; exhaustion
// surfaces as ConcurrencyConflictError, which callers may retry whole.
func (s *Service) Transition(ctx context.Context, req Request) (string, error) {
	if !sched.KnownStatus(req.EntityType, req.ToStatus) {
		return "", fmt.Errorf("unknown %s status %q", req.EntityType, req.ToStatus)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		from, err := s.Store.GetStatus(ctx, req.EntityType, req.EntityID)
		if err != nil {
			return "", err
		}
		if err := sched.ValidateTransition(req.EntityType, from, req.ToStatus); err != nil {
			return "", err
		}

		entry := sched.AuditEntry{
			ID:          uuid.NewString(),
			EntityType:  req.EntityType,
			EntityID:    req.EntityID,
			Action:      "status.transition",
			ActorID:     req.ActorID,
			At:          s.Now(),
			BeforeState: from,
			AfterState:  req.ToStatus,
		}
		ok, err := s.Store.ApplyStatus(ctx, req.EntityType, req.EntityID, from, req.ToStatus, entry)
		if err != nil {
			return "", err
		}
		if !ok {
			continue // someone moved the entity first; re-read and re-validate
		}

		s.afterApply(ctx, req, from, entry.At)
		return req.ToStatus, nil
	}
	return "", &sched.ConcurrencyConflictError{Kind: string(req.EntityType), Key: req.EntityID, Attempts: maxAttempts}
}

// afterApply refreshes the status cache and emits the advisory event. Both
// are best-effort: the transition is already durable.
func (s *Service) afterApply(ctx context.Context, req Request, from string, at time.Time) {
	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyEntityStatus, req.EntityType, req.EntityID)
		body := fmt.Sprintf(`{"status":%q}`, req.ToStatus)
		if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil && s.Log != nil {
			s.Log.Warn("status cache refresh failed", "entity", req.EntityID, "err", err)
		}
	}
	if s.Producer == nil {
		return
	}
	ev := sched.Envelope{
		EventID:       uuid.NewString(),
		EventType:     sched.EventStatusChanged,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      s.Service,
		CorrelationID: req.EntityID,
		Payload: kafkax.MustMarshal(sched.StatusChangedPayload{
			EntityType: req.EntityType,
			EntityID:   req.EntityID,
			FromStatus: from,
			ToStatus:   req.ToStatus,
			ActorID:    req.ActorID,
			Note:       req.Note,
			At:         at.UTC(),
		}),
	}
	s.Producer.Publish(sched.PartitionKey(req.EntityID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(sched.EventStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// CurrentStatus reads through the cache, falling back to the store.
func (s *Service) CurrentStatus(ctx context.Context, et sched.EntityType, id string) (string, error) {
	return s.Store.GetStatus(ctx, et, id)
}
