package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/pharmalink/schedcore/internal/activity"
	"github.com/pharmalink/schedcore/internal/kpi"
	"github.com/pharmalink/schedcore/internal/ledger"
	"github.com/pharmalink/schedcore/internal/queue"
)

// DashboardHandler serves the pull-based read side: everything here is
// recomputed from current state on each request.
type DashboardHandler struct {
	Ledger  *ledger.Service
	KPI     *kpi.Engine
	Queues  *queue.Builder
	Redis   *redis.Client
	Horizon int // days of capacity windows in the overview
	Now     func() time.Time
}

func (h *DashboardHandler) Register(r *chi.Mux) {
	r.Get("/dashboard/overview", h.overview)
	r.Get("/dashboard/kpi-trends", h.kpiTrends)
}

type capacityRow struct {
	Date             string `json:"date"`
	ReservedMinutes  int    `json:"reservedMinutes"`
	CommittedMinutes int    `json:"committedMinutes"`
	TotalCapacity    int    `json:"totalCapacity"`
	IsFull           bool   `json:"isFull"`
}

func (h *DashboardHandler) overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()

	journey, err := h.Queues.JourneyCounts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	queues := map[string][]queue.Item{}
	for _, dept := range []queue.Department{queue.DeptValidation, queue.DeptQC, queue.DeptQP, queue.DeptLogistics} {
		items, err := h.Queues.Build(ctx, dept)
		if err != nil {
			writeError(w, err)
			return
		}
		queues[string(dept)] = items
	}

	exceptions, err := h.Queues.Exceptions(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := h.KPI.Compute(ctx, now.AddDate(0, 0, -7), now)
	if err != nil {
		writeError(w, err)
		return
	}

	horizon := h.Horizon
	if horizon <= 0 {
		horizon = 7
	}
	loads, err := h.Ledger.Horizon(ctx, now, horizon)
	if err != nil {
		writeError(w, err)
		return
	}
	capacity := make([]capacityRow, 0, len(loads))
	for _, l := range loads {
		capacity = append(capacity, capacityRow{
			Date:             l.Date.Format("2006-01-02"),
			ReservedMinutes:  l.ReservedMinutes,
			CommittedMinutes: l.CommittedMinutes,
			TotalCapacity:    l.CapacityMinutes,
			IsFull:           l.IsFull,
		})
	}

	recent := []activity.Entry{}
	if h.Redis != nil {
		if entries, err := activity.Recent(ctx, h.Redis, 20); err == nil {
			recent = entries
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"journeyCounts":  journey,
		"kpis":           snapshot,
		"queues":         queues,
		"exceptions":     exceptions,
		"capacity":       capacity,
		"recentActivity": recent,
		"lastRefreshed":  now.UTC(),
	})
}

func (h *DashboardHandler) kpiTrends(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be 1..365"})
			return
		}
		days = n
	}
	now := h.now()
	start := now.AddDate(0, 0, -days)

	snapshot, err := h.KPI.Compute(r.Context(), start, now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": map[string]any{"days": days, "start": start.UTC(), "end": now.UTC()},
		"kpis": map[string]any{
			"capacityUtilization": snapshot.CapacityUtilization,
			"releaseLeadTime":     snapshot.ReleaseLeadTime,
			"yield":               snapshot.Yield,
			"otif":                snapshot.OTIF,
		},
		"summary": snapshot.Summary(),
	})
}

func (h *DashboardHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
