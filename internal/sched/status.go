package sched

type OrderStatus string

const (
	OrderSubmitted    OrderStatus = "SUBMITTED"
	OrderValidated    OrderStatus = "VALIDATED"
	OrderScheduled    OrderStatus = "SCHEDULED"
	OrderInProduction OrderStatus = "IN_PRODUCTION"
	OrderDispatched   OrderStatus = "DISPATCHED"
	OrderDelivered    OrderStatus = "DELIVERED"
	OrderCancelled    OrderStatus = "CANCELLED"
)

type BatchStatus string

const (
	BatchPlanned              BatchStatus = "PLANNED"
	BatchInProduction         BatchStatus = "IN_PRODUCTION"
	BatchProductionComplete   BatchStatus = "PRODUCTION_COMPLETE"
	BatchQCPending            BatchStatus = "QC_PENDING"
	BatchQCInProgress         BatchStatus = "QC_IN_PROGRESS"
	BatchQCPassed             BatchStatus = "QC_PASSED"
	BatchFailedQC             BatchStatus = "FAILED_QC"
	BatchReleased             BatchStatus = "RELEASED"
	BatchDispensingInProgress BatchStatus = "DISPENSING_IN_PROGRESS"
	BatchDispensed            BatchStatus = "DISPENSED"
	BatchPacked               BatchStatus = "PACKED"
	BatchOnHold               BatchStatus = "ON_HOLD"
	BatchRejected             BatchStatus = "REJECTED"
)

type ShipmentStatus string

const (
	ShipmentDraft            ShipmentStatus = "DRAFT"
	ShipmentReadyToPack      ShipmentStatus = "READY_TO_PACK"
	ShipmentPacked           ShipmentStatus = "PACKED"
	ShipmentAssignedToDriver ShipmentStatus = "ASSIGNED_TO_DRIVER"
	ShipmentInTransit        ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered        ShipmentStatus = "DELIVERED"
	ShipmentDelayed          ShipmentStatus = "DELAYED"
)

// orderNext: happy path is strictly forward; CANCELLED reachable from every
// non-terminal state. DELIVERED and CANCELLED are terminal.
var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderSubmitted:    {OrderValidated: true, OrderCancelled: true},
	OrderValidated:    {OrderScheduled: true, OrderCancelled: true},
	OrderScheduled:    {OrderInProduction: true, OrderCancelled: true},
	OrderInProduction: {OrderDispatched: true, OrderCancelled: true},
	OrderDispatched:   {OrderDelivered: true, OrderCancelled: true},
	OrderDelivered:    {},
	OrderCancelled:    {},
}

var batchNext = map[BatchStatus]map[BatchStatus]bool{
	BatchPlanned:            {BatchInProduction: true},
	BatchInProduction:       {BatchProductionComplete: true},
	BatchProductionComplete: {BatchQCPending: true},
	BatchQCPending:          {BatchQCInProgress: true, BatchOnHold: true},
	BatchQCInProgress:       {BatchQCPassed: true, BatchFailedQC: true, BatchOnHold: true},
	BatchQCPassed:           {BatchReleased: true, BatchOnHold: true, BatchRejected: true},
	BatchFailedQC:           {BatchQCInProgress: true, BatchRejected: true, BatchOnHold: true},
	BatchReleased:           {BatchDispensingInProgress: true},
	BatchDispensingInProgress: {BatchDispensed: true},
	BatchDispensed:          {BatchPacked: true},
	BatchPacked:             {},
	BatchOnHold:             {BatchQCPending: true, BatchQCInProgress: true, BatchRejected: true},
	BatchRejected:           {},
}

var shipmentNext = map[ShipmentStatus]map[ShipmentStatus]bool{
	ShipmentDraft:            {ShipmentReadyToPack: true},
	ShipmentReadyToPack:      {ShipmentPacked: true},
	ShipmentPacked:           {ShipmentAssignedToDriver: true},
	ShipmentAssignedToDriver: {ShipmentInTransit: true},
	ShipmentInTransit:        {ShipmentDelivered: true, ShipmentDelayed: true},
	ShipmentDelayed:          {ShipmentInTransit: true, ShipmentDelivered: true},
	ShipmentDelivered:        {},
}

// transitions flattens the three per-entity graphs into a single table keyed
// by entity type, so callers holding raw status strings can validate without
// switching on type themselves.
var transitions = map[EntityType]map[string]map[string]bool{
	EntityOrder:    flatten(orderNext),
	EntityBatch:    flatten(batchNext),
	EntityShipment: flatten(shipmentNext),
}

func flatten[S ~string](m map[S]map[S]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for from, tos := range m {
		set := make(map[string]bool, len(tos))
		for to := range tos {
			set[string(to)] = true
		}
		out[string(from)] = set
	}
	return out
}

// KnownStatus reports whether s is a defined status value for the entity
// type. Unknown strings must be rejected at the boundary, never stored.
func KnownStatus(et EntityType, s string) bool {
	_, ok := transitions[et][s]
	return ok
}

// CanTransition reports whether from→to is an edge of the entity's graph.
func CanTransition(et EntityType, from, to string) bool {
	return transitions[et][from][to]
}

// ValidateTransition checks the edge and returns a typed error describing
// the rejection. Business preconditions beyond graph membership are the
// caller's problem.
func ValidateTransition(et EntityType, from, to string) error {
	if !KnownStatus(et, from) || !KnownStatus(et, to) {
		return &InvalidTransitionError{Entity: et, From: from, To: to}
	}
	if !transitions[et][from][to] {
		return &InvalidTransitionError{Entity: et, From: from, To: to}
	}
	return nil
}

// Terminal reports whether the status has no outgoing edges.
func Terminal(et EntityType, s string) bool {
	set, ok := transitions[et][s]
	return ok && len(set) == 0
}
