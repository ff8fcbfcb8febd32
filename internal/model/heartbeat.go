package model

import "time"

// WorkerStatus labels assigned by the liveness monitor.
const (
	WorkerHealthy = "healthy"
	WorkerStuck   = "stuck"
	WorkerDown    = "down"
)

// Heartbeat is the singleton liveness record for the worker process.
// StartedAt is write-once; everything else is overwritten on each update.
type Heartbeat struct {
	WorkerID        string    `json:"worker_id"`
	StartedAt       time.Time `json:"started_at"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	Processing      bool      `json:"processing"`
	ProcessingSince time.Time `json:"processing_since,omitempty"`
	CronExpression  string    `json:"cron_expression"`
	ListingsChecked int64     `json:"listings_checked"`
	LastCycleErrors int       `json:"last_cycle_errors"`
	LastCycleMs     int64     `json:"last_cycle_ms"`
}

// HeartbeatHistory is an immutable point-in-time snapshot kept for trend
// display by the monitoring collaborator.
type HeartbeatHistory struct {
	WorkerID      string    `json:"worker_id"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Processing    bool      `json:"processing"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}
