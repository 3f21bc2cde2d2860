// Package activity folds status-change events into the capped Redis list
// behind the dashboard's recent-activity feed. Purely advisory: losing an
// event loses a feed line, never scheduling state.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/pharmalink/schedcore/internal/kafka"
	"github.com/pharmalink/schedcore/internal/redisx"
	"github.com/pharmalink/schedcore/internal/sched"
)

// Entry is one feed line, stored as JSON in the Redis list.
type Entry struct {
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ActorID    string    `json:"actorId"`
	At         time.Time `json:"at"`
}

type Service struct {
	Redis       *redis.Client
	ServiceName string
	Log         *log.Logger
}

// HandleStatusChanged is the consumer handler for the status.changed topic.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env sched.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != sched.EventStatusChanged {
		return nil
	}

	// dedup by event id; redeliveries must not duplicate feed lines
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[sched.StatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}

	b, err := json.Marshal(Entry{
		EntityType: string(p.EntityType),
		EntityID:   p.EntityID,
		FromStatus: p.FromStatus,
		ToStatus:   p.ToStatus,
		ActorID:    p.ActorID,
		At:         p.At,
	})
	if err != nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	pipe.LPush(ctx, redisx.KeyRecentActivity, b)
	pipe.LTrim(ctx, redisx.KeyRecentActivity, 0, redisx.RecentActivityMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	// only a landed feed line is "seen"; a failed pipeline leaves the event
	// unmarked so the redelivery writes it instead of being skipped
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	if s.Log != nil {
		s.Log.Debug("recorded activity", "entity", p.EntityID, "to", p.ToStatus)
	}
	return nil
}

// Recent returns up to n feed lines, newest first.
func Recent(ctx context.Context, rdb *redis.Client, n int) ([]Entry, error) {
	vals, err := rdb.LRange(ctx, redisx.KeyRecentActivity, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue // skip malformed lines rather than break the feed
		}
		out = append(out, e)
	}
	return out, nil
}
