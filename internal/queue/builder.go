// Package queue turns raw entity state into department work queues for the
// dashboard: who should act next, on what, and whether it is already late.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmalink/schedcore/internal/sched"
)

type Department string

const (
	DeptValidation Department = "validation"
	DeptQC         Department = "qc"
	DeptQP         Department = "qp" // qualified-person release
	DeptLogistics  Department = "logistics"
)

// queueSpec fixes which entity type and statuses feed each department.
type queueSpec struct {
	Entity   sched.EntityType
	Statuses []string
}

var queueSpecs = map[Department]queueSpec{
	DeptValidation: {sched.EntityOrder, []string{string(sched.OrderSubmitted)}},
	DeptQC: {sched.EntityBatch, []string{
		string(sched.BatchQCPending), string(sched.BatchQCInProgress)}},
	DeptQP: {sched.EntityBatch, []string{string(sched.BatchQCPassed)}},
	DeptLogistics: {sched.EntityShipment, []string{
		string(sched.ShipmentReadyToPack), string(sched.ShipmentPacked),
		string(sched.ShipmentAssignedToDriver)}},
}

// nextAction maps a status to the single recommended human action.
var nextAction = map[string]string{
	string(sched.OrderSubmitted):          "Validate order",
	string(sched.BatchQCPending):          "Start QC",
	string(sched.BatchQCInProgress):       "Record QC results",
	string(sched.BatchQCPassed):           "Release batch",
	string(sched.ShipmentReadyToPack):     "Pack shipment",
	string(sched.ShipmentPacked):          "Assign driver",
	string(sched.ShipmentAssignedToDriver): "Start delivery",
	string(sched.BatchFailedQC):           "Review QC failure",
	string(sched.BatchOnHold):             "Resolve hold",
	string(sched.BatchRejected):           "Document rejection",
	string(sched.ShipmentDelayed):         "Chase courier",
}

type Item struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle"`
	ETA        *time.Time `json:"eta"`
	Status     string     `json:"status"`
	NextAction string     `json:"nextAction"`
	IsLate     bool       `json:"isLate"`
}

type Builder struct {
	Store    Store
	PageSize int
	Now      func() time.Time
}

func NewBuilder(store Store) *Builder {
	return &Builder{Store: store, PageSize: 10, Now: time.Now}
}

// Build returns the department's queue, ETA-ascending with missing ETAs
// last, capped at the page size.
func (b *Builder) Build(ctx context.Context, dept Department) ([]Item, error) {
	spec, ok := queueSpecs[dept]
	if !ok {
		return nil, fmt.Errorf("unknown department %q", dept)
	}
	limit := b.PageSize
	if limit <= 0 {
		limit = 10
	}
	rows, err := b.Store.RowsInStatus(ctx, spec.Entity, spec.Statuses, limit)
	if err != nil {
		return nil, err
	}
	now := b.Now()
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, Item{
			ID:         r.ID,
			Title:      r.Title,
			Subtitle:   r.Subtitle,
			ETA:        r.ETA,
			Status:     r.Status,
			NextAction: nextAction[r.Status],
			IsLate:     r.ETA != nil && r.ETA.Before(now),
		})
	}
	return items, nil
}

// JourneyStage is one step of the Order funnel on the dashboard.
type JourneyStage struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Count     int    `json:"count"`
	Color     string `json:"color"`
	LateCount int    `json:"lateCount"`
}

var journeyStages = []struct {
	status sched.OrderStatus
	id     string
	label  string
	color  string
}{
	{sched.OrderSubmitted, "submitted", "Submitted", "slate"},
	{sched.OrderValidated, "validated", "Validated", "blue"},
	{sched.OrderScheduled, "scheduled", "Scheduled", "indigo"},
	{sched.OrderInProduction, "in_production", "In Production", "amber"},
	{sched.OrderDispatched, "dispatched", "Dispatched", "cyan"},
	{sched.OrderDelivered, "delivered", "Delivered", "green"},
	{sched.OrderCancelled, "cancelled", "Cancelled", "red"},
}

// JourneyCounts returns the order funnel with late counts per stage.
func (b *Builder) JourneyCounts(ctx context.Context) ([]JourneyStage, error) {
	counts, err := b.Store.CountByStatus(ctx, sched.EntityOrder, b.Now())
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]StatusCount, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c
	}
	out := make([]JourneyStage, 0, len(journeyStages))
	for _, st := range journeyStages {
		c := byStatus[string(st.status)]
		out = append(out, JourneyStage{
			ID:        st.id,
			Label:     st.label,
			Count:     c.Count,
			Color:     st.color,
			LateCount: c.LateCount,
		})
	}
	return out, nil
}

// exceptionSpecs lists the attention-needed statuses per entity type.
var exceptionSpecs = []queueSpec{
	{sched.EntityBatch, []string{
		string(sched.BatchFailedQC), string(sched.BatchOnHold), string(sched.BatchRejected)}},
	{sched.EntityShipment, []string{string(sched.ShipmentDelayed)}},
}

type Exception struct {
	EntityType string     `json:"entityType"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	ETA        *time.Time `json:"eta"`
	NextAction string     `json:"nextAction"`
}

// Exceptions collects entities stuck in failure-adjacent states.
func (b *Builder) Exceptions(ctx context.Context) ([]Exception, error) {
	limit := b.PageSize
	if limit <= 0 {
		limit = 10
	}
	var out []Exception
	for _, spec := range exceptionSpecs {
		rows, err := b.Store.RowsInStatus(ctx, spec.Entity, spec.Statuses, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, Exception{
				EntityType: string(spec.Entity),
				ID:         r.ID,
				Title:      r.Title,
				Status:     r.Status,
				ETA:        r.ETA,
				NextAction: nextAction[r.Status],
			})
		}
	}
	return out, nil
}
