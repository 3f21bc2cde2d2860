package sched

const (
	TopicStatusChanged      = "sched.status.changed"
	TopicReservationCreated = "sched.reservation.created"
	TopicReservationExpired = "sched.reservation.expired"
)

// Partition key = entity id, so all events for one entity stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }
