package sched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHappyPath(t *testing.T) {
	chain := []OrderStatus{
		OrderSubmitted, OrderValidated, OrderScheduled,
		OrderInProduction, OrderDispatched, OrderDelivered,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.NoError(t, ValidateTransition(EntityOrder, string(chain[i]), string(chain[i+1])),
			"%s -> %s", chain[i], chain[i+1])
	}
}

func TestOrderCancelReachableFromNonTerminal(t *testing.T) {
	for _, from := range []OrderStatus{OrderSubmitted, OrderValidated, OrderScheduled, OrderInProduction, OrderDispatched} {
		assert.True(t, CanTransition(EntityOrder, string(from), string(OrderCancelled)), "from %s", from)
	}
	assert.False(t, CanTransition(EntityOrder, string(OrderDelivered), string(OrderCancelled)))
	assert.False(t, CanTransition(EntityOrder, string(OrderCancelled), string(OrderSubmitted)))
}

func TestOrderNoSkipping(t *testing.T) {
	err := ValidateTransition(EntityOrder, string(OrderSubmitted), string(OrderScheduled))
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, string(OrderSubmitted), ite.From)
	assert.Equal(t, string(OrderScheduled), ite.To)
}

func TestBatchQCMustRunBeforeRelease(t *testing.T) {
	// QC_PENDING -> RELEASED must pass through QC_IN_PROGRESS and QC_PASSED
	err := ValidateTransition(EntityBatch, string(BatchQCPending), string(BatchReleased))
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)

	for _, step := range [][2]BatchStatus{
		{BatchQCPending, BatchQCInProgress},
		{BatchQCInProgress, BatchQCPassed},
		{BatchQCPassed, BatchReleased},
	} {
		assert.NoError(t, ValidateTransition(EntityBatch, string(step[0]), string(step[1])))
	}
}

func TestBatchHoldAndFailurePaths(t *testing.T) {
	assert.True(t, CanTransition(EntityBatch, string(BatchQCInProgress), string(BatchFailedQC)))
	assert.True(t, CanTransition(EntityBatch, string(BatchFailedQC), string(BatchQCInProgress)), "retest after failure")
	assert.True(t, CanTransition(EntityBatch, string(BatchQCPending), string(BatchOnHold)))
	assert.True(t, CanTransition(EntityBatch, string(BatchOnHold), string(BatchQCPending)))
	assert.False(t, CanTransition(EntityBatch, string(BatchPlanned), string(BatchOnHold)), "hold is QC-adjacent only")
	assert.False(t, CanTransition(EntityBatch, string(BatchRejected), string(BatchQCPending)), "rejected is terminal")
}

func TestShipmentDelayLoop(t *testing.T) {
	assert.True(t, CanTransition(EntityShipment, string(ShipmentInTransit), string(ShipmentDelayed)))
	assert.True(t, CanTransition(EntityShipment, string(ShipmentDelayed), string(ShipmentInTransit)))
	assert.True(t, CanTransition(EntityShipment, string(ShipmentDelayed), string(ShipmentDelivered)))
	assert.False(t, CanTransition(EntityShipment, string(ShipmentDraft), string(ShipmentDelayed)))
}

func TestUnknownStatusRejected(t *testing.T) {
	assert.False(t, KnownStatus(EntityOrder, "SHIPPED"))
	err := ValidateTransition(EntityOrder, string(OrderSubmitted), "SHIPPED")
	var ite *InvalidTransitionError
	assert.True(t, errors.As(err, &ite))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(EntityOrder, string(OrderDelivered)))
	assert.True(t, Terminal(EntityOrder, string(OrderCancelled)))
	assert.True(t, Terminal(EntityBatch, string(BatchPacked)))
	assert.True(t, Terminal(EntityShipment, string(ShipmentDelivered)))
	assert.False(t, Terminal(EntityBatch, string(BatchOnHold)))
	assert.False(t, Terminal(EntityOrder, "NOT_A_STATUS"), "unknown strings are not terminal")
}
