// Package kpi computes the dashboard's rolling metrics as plain aggregate
// functions over immutable history: capacity utilization, release lead
// time, production yield, and OTIF. No caching, no hidden state — the same
// range and the same records always produce the same numbers.
package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmalink/schedcore/internal/sched"
)

const (
	BandHealthy = "healthy"
	BandWarning = "warning"
	BandDanger  = "danger"
)

// Bands holds the utilization banding thresholds (percent): at or above
// HealthyAt is healthy, at or above WarningAt is warning, below is danger.
type Bands struct {
	HealthyAt int
	WarningAt int
}

// Targets are dashboard goal values per metric, configuration not policy.
type Targets struct {
	UtilizationPct  float64
	LeadTimeMinutes float64
	YieldPct        float64
	OTIFPct         float64
}

type Metric struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Target float64 `json:"target"`
	Status string  `json:"status"`
}

// Snapshot groups the four metrics over one range.
type Snapshot struct {
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	CapacityUtilization Metric   `json:"capacityUtilization"`
	ReleaseLeadTime    Metric    `json:"releaseLeadTime"`
	Yield              Metric    `json:"yield"`
	OTIF               Metric    `json:"otif"`
	// UnscheduledDeliveries counts delivered shipments missing a scheduled
	// or actual timestamp; OTIF treats them as on-time, this exposes how
	// many the headline number absorbed.
	UnscheduledDeliveries int `json:"unscheduledDeliveries"`
}

type Engine struct {
	Store   Store
	Bands   Bands
	Targets Targets
	Now     func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{
		Store:   store,
		Bands:   Bands{HealthyAt: 80, WarningAt: 60},
		Targets: Targets{UtilizationPct: 85, LeadTimeMinutes: 2880, YieldPct: 95, OTIFPct: 95},
		Now:     time.Now,
	}
}

// Utilization is total committed minutes over total capacity minutes across
// every window in [start, end], as a rounded percent. Zero total capacity
// reports 0%.
func (e *Engine) Utilization(ctx context.Context, start, end time.Time) (Metric, error) {
	ws, err := e.Store.WindowsInRange(ctx, sched.Day(start), sched.Day(end))
	if err != nil {
		return Metric{}, err
	}
	now := e.Now()
	var capacity, committed int
	for _, w := range ws {
		used, err := e.Store.CommittedMinutes(ctx, w.Date, now)
		if err != nil {
			return Metric{}, err
		}
		capacity += w.CapacityMinutes
		committed += used
	}
	pct := decimal.Zero
	if capacity > 0 {
		pct = decimal.NewFromInt(int64(committed)).
			Div(decimal.NewFromInt(int64(capacity))).
			Mul(decimal.NewFromInt(100))
	}
	v, _ := pct.Round(1).Float64()
	return Metric{
		Label:  "Capacity Utilization",
		Value:  v,
		Unit:   "%",
		Target: e.Targets.UtilizationPct,
		Status: e.utilizationBand(v),
	}, nil
}

func (e *Engine) utilizationBand(pct float64) string {
	switch {
	case pct >= float64(e.Bands.HealthyAt):
		return BandHealthy
	case pct >= float64(e.Bands.WarningAt):
		return BandWarning
	default:
		return BandDanger
	}
}

// ReleaseLeadTime is the mean of (released_at - created_at) in minutes over
// batches released in range. Batches never released are excluded outright.
func (e *Engine) ReleaseLeadTime(ctx context.Context, start, end time.Time) (Metric, error) {
	bs, err := e.Store.BatchesReleasedIn(ctx, start, end)
	if err != nil {
		return Metric{}, err
	}
	sum := decimal.Zero
	n := 0
	for _, b := range bs {
		if b.ReleasedAt == nil {
			continue
		}
		mins := b.ReleasedAt.Sub(b.CreatedAt).Minutes()
		sum = sum.Add(decimal.NewFromFloat(mins))
		n++
	}
	mean := decimal.Zero
	if n > 0 {
		mean = sum.Div(decimal.NewFromInt(int64(n)))
	}
	v, _ := mean.Round(1).Float64()
	// lower is better
	status := BandDanger
	switch {
	case n == 0 || v <= e.Targets.LeadTimeMinutes:
		status = BandHealthy
	case v <= e.Targets.LeadTimeMinutes*1.2:
		status = BandWarning
	}
	return Metric{Label: "Release Lead Time", Value: v, Unit: "min", Target: e.Targets.LeadTimeMinutes, Status: status}, nil
}

// Yield is the mean of actual/target activity percent over batches ended in
// range where both values are present; incomplete batches are excluded, not
// counted as zero.
func (e *Engine) Yield(ctx context.Context, start, end time.Time) (Metric, error) {
	bs, err := e.Store.BatchesEndedIn(ctx, start, end)
	if err != nil {
		return Metric{}, err
	}
	sum := decimal.Zero
	n := 0
	for _, b := range bs {
		if !b.TargetActivity.Valid || !b.ActualActivity.Valid || b.TargetActivity.Decimal.IsZero() {
			continue
		}
		pct := b.ActualActivity.Decimal.Div(b.TargetActivity.Decimal).Mul(decimal.NewFromInt(100))
		sum = sum.Add(pct)
		n++
	}
	mean := decimal.Zero
	if n > 0 {
		mean = sum.Div(decimal.NewFromInt(int64(n)))
	}
	v, _ := mean.Round(1).Float64()
	status := BandDanger
	switch {
	case n == 0 || v >= e.Targets.YieldPct:
		status = BandHealthy
	case v >= e.Targets.YieldPct*0.9:
		status = BandWarning
	}
	return Metric{Label: "Yield", Value: v, Unit: "%", Target: e.Targets.YieldPct, Status: status}, nil
}

// OTIF is on-time deliveries over total deliveries in range. A delivered
// shipment missing either timestamp counts as on-time. Zero deliveries in
// range reads as 100%.
func (e *Engine) OTIF(ctx context.Context, start, end time.Time) (Metric, int, error) {
	ss, err := e.Store.DeliveredShipmentsIn(ctx, start, end)
	if err != nil {
		return Metric{}, 0, err
	}
	onTime, unscheduled := 0, 0
	for _, sh := range ss {
		if sh.ExpectedArrival == nil || sh.ActualArrival == nil {
			onTime++
			unscheduled++
			continue
		}
		if !sh.ActualArrival.After(*sh.ExpectedArrival) {
			onTime++
		}
	}
	pct := decimal.NewFromInt(100)
	if len(ss) > 0 {
		pct = decimal.NewFromInt(int64(onTime)).
			Div(decimal.NewFromInt(int64(len(ss)))).
			Mul(decimal.NewFromInt(100))
	}
	v, _ := pct.Round(1).Float64()
	status := BandDanger
	switch {
	case v >= e.Targets.OTIFPct:
		status = BandHealthy
	case v >= e.Targets.OTIFPct*0.9:
		status = BandWarning
	}
	return Metric{Label: "OTIF", Value: v, Unit: "%", Target: e.Targets.OTIFPct, Status: status}, unscheduled, nil
}

// Compute runs all four metrics for one range.
func (e *Engine) Compute(ctx context.Context, start, end time.Time) (Snapshot, error) {
	util, err := e.Utilization(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	lead, err := e.ReleaseLeadTime(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	yield, err := e.Yield(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	otif, unscheduled, err := e.OTIF(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Start:               start,
		End:                 end,
		CapacityUtilization: util,
		ReleaseLeadTime:     lead,
		Yield:               yield,
		OTIF:                otif,
		UnscheduledDeliveries: unscheduled,
	}, nil
}

// Summary is a one-line reading of a snapshot for the trends endpoint.
func (s Snapshot) Summary() string {
	worst := BandHealthy
	for _, m := range []Metric{s.CapacityUtilization, s.ReleaseLeadTime, s.Yield, s.OTIF} {
		if m.Status == BandDanger {
			worst = BandDanger
			break
		}
		if m.Status == BandWarning {
			worst = BandWarning
		}
	}
	return fmt.Sprintf("utilization %.1f%%, lead time %.0f min, yield %.1f%%, OTIF %.1f%% (%s)",
		s.CapacityUtilization.Value, s.ReleaseLeadTime.Value, s.Yield.Value, s.OTIF.Value, worst)
}
