package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmalink/schedcore/internal/sched"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&sched.NotFoundError{Kind: "window", Key: "2026-01-01"}, http.StatusNotFound},
		{&sched.InvalidTransitionError{Entity: sched.EntityOrder, From: "SUBMITTED", To: "DISPATCHED"}, http.StatusConflict},
		{&sched.CapacityExceededError{WindowDate: "2026-01-01", RequestedMinutes: 100, AvailableMinutes: 50}, http.StatusConflict},
		{&sched.InvalidStateError{Kind: "reservation", Key: "r1", State: "CANCELLED", Attempt: "confirm"}, http.StatusConflict},
		{&sched.ConcurrencyConflictError{Kind: "order", Key: "o1", Attempts: 3}, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), "error %v", c.err)
	}

	// wrapped errors still map through errors.As
	wrapped := fmt.Errorf("apply: %w", &sched.ConcurrencyConflictError{Kind: "order", Key: "o1", Attempts: 3})
	assert.Equal(t, http.StatusConflict, statusFor(wrapped))
}
