package sched

import (
	"encoding/json"
	"time"
)

const (
	EventStatusChanged      = "StatusChanged"
	EventReservationCreated = "ReservationCreated"
	EventReservationExpired = "ReservationExpired"
)

// Envelope wraps every event on the wire; consumers dedup on EventID and
// key ordering on CorrelationID (the entity or reservation id).
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type StatusChangedPayload struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	ActorID    string     `json:"actor_id"`
	Note       string     `json:"note,omitempty"`
	At         time.Time  `json:"at"`
}

type ReservationCreatedPayload struct {
	ReservationID    string    `json:"reservation_id"`
	WindowDate       string    `json:"window_date"` // YYYY-MM-DD
	EstimatedMinutes int       `json:"estimated_minutes"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type ReservationExpiredPayload struct {
	ReservationID    string `json:"reservation_id"`
	WindowDate       string `json:"window_date"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}
