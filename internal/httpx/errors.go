package httpx

import (
	"errors"
	"net/http"

	"github.com/pharmalink/schedcore/internal/sched"
)

// statusFor maps the domain error taxonomy onto HTTP codes. The boundary
// performs no recovery: conflicts are 409, absence is 404, the rest is 500.
func statusFor(err error) int {
	var (
		notFound    *sched.NotFoundError
		invalidTr   *sched.InvalidTransitionError
		capExceeded *sched.CapacityExceededError
		invalidSt   *sched.InvalidStateError
		conflict    *sched.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalidTr),
		errors.As(err, &capExceeded),
		errors.As(err, &invalidSt),
		errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}
