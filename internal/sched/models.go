package sched

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntityType string

const (
	EntityOrder    EntityType = "order"
	EntityBatch    EntityType = "batch"
	EntityShipment EntityType = "shipment"
)

type Order struct {
	ID           string
	CustomerRef  string
	ProductRef   string
	Activity     decimal.Decimal // requested quantity/activity
	DeliveryDate *time.Time
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Batch struct {
	ID             string
	ProductRef     string
	PlannedStart   *time.Time
	PlannedEnd     *time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
	TargetActivity decimal.NullDecimal
	ActualActivity decimal.NullDecimal
	Status         BatchStatus
	ReleasedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Shipment struct {
	ID              string
	CustomerRef     string
	Courier         string
	ExpectedArrival *time.Time
	ActualArrival   *time.Time
	Status          ShipmentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeliveryWindow is a finite-capacity day; used minutes are never stored,
// always recomputed from the window's active reservations.
type DeliveryWindow struct {
	ID              string
	Date            time.Time // UTC midnight
	CapacityMinutes int
	CreatedAt       time.Time
}

type ReservationStatus string

const (
	ReservationTentative ReservationStatus = "TENTATIVE"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type Reservation struct {
	ID               string
	WindowDate       time.Time
	EstimatedMinutes int
	Status           ReservationStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time // meaningful only while TENTATIVE
}

// Active reports whether the reservation counts toward window capacity at
// the given instant: CONFIRMED always, TENTATIVE until its expiry passes.
func (r Reservation) Active(now time.Time) bool {
	switch r.Status {
	case ReservationConfirmed:
		return true
	case ReservationTentative:
		return !r.ExpiresAt.Before(now)
	default:
		return false
	}
}

// AuditEntry is an append-only record of a state-changing operation.
type AuditEntry struct {
	ID          string
	EntityType  EntityType
	EntityID    string
	Action      string
	ActorID     string
	At          time.Time
	BeforeState string
	AfterState  string
}

// Day normalizes a timestamp to its UTC calendar day, the key space of the
// delivery-window ledger.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
