package heartbeat

import (
	"sync"
	"time"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// WorkerDegraded is the middle band between the healthy and down
// thresholds: the worker is late but not yet presumed dead.
const WorkerDegraded = "degraded"

// Thresholds configure liveness classification.
type Thresholds struct {
	Healthy       time.Duration
	Degraded      time.Duration
	MaxProcessing time.Duration
}

// Classify labels a worker from its heartbeat record. A worker counts as
// stuck only when the processing flag has been set longer than
// MaxProcessing; a worker idling between cycles is never stuck.
func Classify(hb model.Heartbeat, now time.Time, t Thresholds) string {
	if hb.Processing && !hb.ProcessingSince.IsZero() && now.Sub(hb.ProcessingSince) > t.MaxProcessing {
		return model.WorkerStuck
	}
	age := now.Sub(hb.LastHeartbeatAt)
	switch {
	case age <= t.Healthy:
		return model.WorkerHealthy
	case age <= t.Degraded:
		return WorkerDegraded
	default:
		return model.WorkerDown
	}
}

// AlertGate throttles duplicate alerts for an already-known-bad state so
// the monitor does not re-alert on every poll tick.
type AlertGate struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewAlertGate creates an empty gate.
func NewAlertGate() *AlertGate {
	return &AlertGate{last: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether an alert for this status may fire now, and records
// the firing when it may. Healthy never alerts and clears the bookkeeping.
func (g *AlertGate) Allow(status string, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if status == model.WorkerHealthy {
		delete(g.last, model.WorkerStuck)
		delete(g.last, model.WorkerDown)
		return false
	}
	now := g.now()
	if at, ok := g.last[status]; ok && now.Sub(at) < cooldown {
		return false
	}
	g.last[status] = now
	return true
}
