package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/schedcore/internal/memstore"
	"github.com/pharmalink/schedcore/internal/queue"
	"github.com/pharmalink/schedcore/internal/sched"
)

func tp(t time.Time) *time.Time { return &t }

func TestBuildOrdersByETANullsLast(t *testing.T) {
	store := memstore.New()
	now := time.Now()

	late := sched.Order{ID: "late", CustomerRef: "A", Status: sched.OrderSubmitted, DeliveryDate: tp(now.Add(-time.Hour))}
	soon := sched.Order{ID: "soon", CustomerRef: "B", Status: sched.OrderSubmitted, DeliveryDate: tp(now.Add(time.Hour))}
	noEta := sched.Order{ID: "no-eta", CustomerRef: "C", Status: sched.OrderSubmitted}
	other := sched.Order{ID: "other", CustomerRef: "D", Status: sched.OrderValidated, DeliveryDate: tp(now)}
	for _, o := range []sched.Order{noEta, soon, late, other} {
		store.PutOrder(o)
	}

	items, err := queue.NewBuilder(store).Build(context.Background(), queue.DeptValidation)
	require.NoError(t, err)
	require.Len(t, items, 3, "only SUBMITTED orders qualify for validation")

	assert.Equal(t, "late", items[0].ID)
	assert.Equal(t, "soon", items[1].ID)
	assert.Equal(t, "no-eta", items[2].ID, "missing ETA sorts last")

	assert.True(t, items[0].IsLate)
	assert.False(t, items[1].IsLate)
	assert.False(t, items[2].IsLate, "no ETA is never late")
	assert.Equal(t, "Validate order", items[0].NextAction)
}

func TestBuildCapsAtPageSize(t *testing.T) {
	store := memstore.New()
	now := time.Now()
	for i := 0; i < 25; i++ {
		store.PutOrder(sched.Order{
			ID:           uuid.NewString(),
			CustomerRef:  fmt.Sprintf("C%02d", i),
			Status:       sched.OrderSubmitted,
			DeliveryDate: tp(now.Add(time.Duration(i) * time.Minute)),
		})
	}
	b := queue.NewBuilder(store)
	items, err := b.Build(context.Background(), queue.DeptValidation)
	require.NoError(t, err)
	assert.Len(t, items, 10, "default page size")

	b.PageSize = 5
	items, err = b.Build(context.Background(), queue.DeptValidation)
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

func TestQCQueueSpansBothStatuses(t *testing.T) {
	store := memstore.New()
	store.PutBatch(sched.Batch{ID: "b1", ProductRef: "P", Status: sched.BatchQCPending})
	store.PutBatch(sched.Batch{ID: "b2", ProductRef: "P", Status: sched.BatchQCInProgress})
	store.PutBatch(sched.Batch{ID: "b3", ProductRef: "P", Status: sched.BatchReleased})

	items, err := queue.NewBuilder(store).Build(context.Background(), queue.DeptQC)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestUnknownDepartment(t *testing.T) {
	_, err := queue.NewBuilder(memstore.New()).Build(context.Background(), "janitorial")
	assert.Error(t, err)
}

func TestJourneyCounts(t *testing.T) {
	store := memstore.New()
	now := time.Now()
	store.PutOrder(sched.Order{ID: "1", Status: sched.OrderSubmitted, DeliveryDate: tp(now.Add(-time.Hour))})
	store.PutOrder(sched.Order{ID: "2", Status: sched.OrderSubmitted})
	store.PutOrder(sched.Order{ID: "3", Status: sched.OrderDelivered, DeliveryDate: tp(now.Add(-time.Hour))})

	stages, err := queue.NewBuilder(store).JourneyCounts(context.Background())
	require.NoError(t, err)

	byID := map[string]queue.JourneyStage{}
	for _, s := range stages {
		byID[s.ID] = s
	}
	assert.Equal(t, 2, byID["submitted"].Count)
	assert.Equal(t, 1, byID["submitted"].LateCount)
	assert.Equal(t, 1, byID["delivered"].Count)
	assert.Zero(t, byID["delivered"].LateCount, "terminal orders are never late")
	assert.Zero(t, byID["scheduled"].Count, "empty stages still appear")
}

func TestExceptions(t *testing.T) {
	store := memstore.New()
	store.PutBatch(sched.Batch{ID: "bad", ProductRef: "P", Status: sched.BatchFailedQC})
	store.PutBatch(sched.Batch{ID: "held", ProductRef: "P", Status: sched.BatchOnHold})
	store.PutShipment(sched.Shipment{ID: "stuck", CustomerRef: "C", Status: sched.ShipmentDelayed})
	store.PutBatch(sched.Batch{ID: "fine", ProductRef: "P", Status: sched.BatchReleased})

	ex, err := queue.NewBuilder(store).Exceptions(context.Background())
	require.NoError(t, err)
	require.Len(t, ex, 3)

	kinds := map[string]string{}
	for _, e := range ex {
		kinds[e.ID] = e.Status
	}
	assert.Equal(t, string(sched.BatchFailedQC), kinds["bad"])
	assert.Equal(t, string(sched.BatchOnHold), kinds["held"])
	assert.Equal(t, string(sched.ShipmentDelayed), kinds["stuck"])
}
