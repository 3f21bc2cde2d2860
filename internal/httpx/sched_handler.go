package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/pharmalink/schedcore/internal/ledger"
	"github.com/pharmalink/schedcore/internal/redisx"
	"github.com/pharmalink/schedcore/internal/reservation"
	"github.com/pharmalink/schedcore/internal/sched"
	"github.com/pharmalink/schedcore/internal/transition"
)

// SchedHandler exposes the write side: reservations and status transitions.
type SchedHandler struct {
	Reservations *reservation.Manager
	Transitions  *transition.Service
	Ledger       *ledger.Service
	Redis        *redis.Client
}

func (h *SchedHandler) Register(r *chi.Mux) {
	r.Post("/reservations", h.reserve)
	r.Post("/reservations/{id}/confirm", h.confirm)
	r.Post("/reservations/{id}/cancel", h.cancel)
	r.Get("/windows/{date}", h.getWindow)
	r.Post("/entities/{type}/{id}/transition", h.transition)
	r.Get("/entities/{type}/{id}/status", h.getStatus)
}

type ReserveReq struct {
	WindowDate       string `json:"window_date" validate:"required,datetime=2006-01-02"`
	EstimatedMinutes int    `json:"estimated_minutes" validate:"required,gt=0"`
	TTLSeconds       int    `json:"ttl_seconds" validate:"omitempty,gt=0"`
	ExternalRef      string `json:"external_ref"`
	ActorID          string `json:"actor_id" validate:"required"`
}

type ReserveResp struct {
	ReservationID    string    `json:"reservation_id"`
	WindowDate       string    `json:"window_date"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expires_at"`
	Idempotent       bool      `json:"idempotent"`
}

func (h *SchedHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if !bindJSON(w, r, &req) {
		return
	}
	date, _ := time.Parse("2006-01-02", req.WindowDate)

	// fast-path idempotency: a repeated external_ref returns the original hold
	var idemKey string
	if req.ExternalRef != "" && h.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemReserve, req.ExternalRef)
		if id, err := h.Redis.Get(r.Context(), idemKey).Result(); err == nil && id != "" {
			if res, err := h.Reservations.Store.Get(r.Context(), id); err == nil {
				writeJSON(w, http.StatusOK, reserveResp(res, true))
				return
			}
		}
	}

	res, err := h.Reservations.Reserve(r.Context(), date, req.EstimatedMinutes,
		time.Duration(req.TTLSeconds)*time.Second, req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if idemKey != "" {
		_ = h.Redis.Set(r.Context(), idemKey, res.ID, redisx.TTLIdempotency).Err()
	}
	writeJSON(w, http.StatusCreated, reserveResp(res, false))
}

func reserveResp(res sched.Reservation, idempotent bool) ReserveResp {
	return ReserveResp{
		ReservationID:    res.ID,
		WindowDate:       res.WindowDate.Format("2006-01-02"),
		EstimatedMinutes: res.EstimatedMinutes,
		Status:           string(res.Status),
		ExpiresAt:        res.ExpiresAt,
		Idempotent:       idempotent,
	}
}

type actorReq struct {
	ActorID string `json:"actor_id" validate:"required"`
}

func (h *SchedHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req actorReq
	if !bindJSON(w, r, &req) {
		return
	}
	res, err := h.Reservations.Confirm(r.Context(), chi.URLParam(r, "id"), req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reserveResp(res, false))
}

func (h *SchedHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req actorReq
	if !bindJSON(w, r, &req) {
		return
	}
	if err := h.Reservations.Cancel(r.Context(), chi.URLParam(r, "id"), req.ActorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(sched.ReservationCancelled)})
}

func (h *SchedHandler) getWindow(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad date, want YYYY-MM-DD"})
		return
	}
	win, err := h.Ledger.Window(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	available, err := h.Ledger.AvailableMinutes(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	utilization, err := h.Ledger.UtilizationPercent(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":               win.Date.Format("2006-01-02"),
		"capacityMinutes":    win.CapacityMinutes,
		"availableMinutes":   available,
		"utilizationPercent": utilization,
	})
}

type TransitionReq struct {
	To      string `json:"to" validate:"required"`
	ActorID string `json:"actor_id" validate:"required"`
	Note    string `json:"note"`
}

func entityType(param string) (sched.EntityType, bool) {
	switch sched.EntityType(param) {
	case sched.EntityOrder, sched.EntityBatch, sched.EntityShipment:
		return sched.EntityType(param), true
	default:
		return "", false
	}
}

func (h *SchedHandler) transition(w http.ResponseWriter, r *http.Request) {
	et, ok := entityType(chi.URLParam(r, "type"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown entity type"})
		return
	}
	var req TransitionReq
	if !bindJSON(w, r, &req) {
		return
	}
	// unknown status strings are a client error, not a transition conflict
	if !sched.KnownStatus(et, req.To) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown %s status %q", et, req.To)})
		return
	}
	status, err := h.Transitions.Transition(r.Context(), transition.Request{
		EntityType: et,
		EntityID:   chi.URLParam(r, "id"),
		ToStatus:   req.To,
		ActorID:    req.ActorID,
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *SchedHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	et, ok := entityType(chi.URLParam(r, "type"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown entity type"})
		return
	}
	id := chi.URLParam(r, "id")

	// cache first, DB fallback
	key := fmt.Sprintf(redisx.KeyEntityStatus, et, id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}
	status, err := h.Transitions.CurrentStatus(r.Context(), et, id)
	if err != nil {
		writeError(w, err)
		return
	}
	body, _ := json.Marshal(map[string]string{"status": status})
	if h.Redis != nil {
		_ = h.Redis.Set(r.Context(), key, body, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
