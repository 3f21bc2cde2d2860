package sched

import "fmt"

// Domain error taxonomy. Every error here is returned synchronously by the
// service that detected it; the HTTP layer maps them to status codes and
// performs no recovery of its own.

type InvalidTransitionError struct {
	Entity EntityType
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s", e.Entity, e.From, e.To)
}

type CapacityExceededError struct {
	WindowDate       string
	RequestedMinutes int
	AvailableMinutes int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("window %s: requested %d min, %d available",
		e.WindowDate, e.RequestedMinutes, e.AvailableMinutes)
}

type NotFoundError struct {
	Kind string // "window", "reservation", "order", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

type InvalidStateError struct {
	Kind    string
	Key     string
	State   string
	Attempt string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s, cannot %s", e.Kind, e.Key, e.State, e.Attempt)
}

// ConcurrencyConflictError means an optimistic retry loop exhausted its
// attempts on a hot row; the whole operation is safe to retry.
type ConcurrencyConflictError struct {
	Kind     string
	Key      string
	Attempts int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s: lost update race after %d attempts", e.Kind, e.Key, e.Attempts)
}
