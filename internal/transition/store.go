package transition

import (
	"context"

	"github.com/pharmalink/schedcore/internal/sched"
)

// Store is the narrow write surface for entity statuses. ApplyStatus must
// persist the status change and the audit entry in one atomic unit.
type Store interface {
	// GetStatus returns the current status string of the entity, or
	// NotFoundError.
	GetStatus(ctx context.Context, et sched.EntityType, id string) (string, error)

	// ApplyStatus sets the entity's status to `to` only if it still equals
	// `from`, appending the audit entry in the same unit. Returns false when
	// the conditional check fails.
	ApplyStatus(ctx context.Context, et sched.EntityType, id, from, to string, audit sched.AuditEntry) (bool, error)
}
