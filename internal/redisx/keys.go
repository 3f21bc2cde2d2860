package redisx

import "time"

const (
	// Idempotent reserve: idem:reserve:{external_ref} -> reservation_id
	KeyIdemReserve = "idem:reserve:%s"

	// Entity status cache: entity_status:{type}:{id} -> {"status": "..."}
	KeyEntityStatus = "entity_status:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Dashboard recent-activity feed, newest first, capped by the consumer.
	KeyRecentActivity = "dashboard:recent_activity"
)

// RecentActivityMax caps the feed length.
const RecentActivityMax = 50

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
