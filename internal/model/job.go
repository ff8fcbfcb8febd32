package model

import "time"

// CycleJob triggers one fan-out over the active accommodation set. It carries
// no listing data: the cycle worker resolves the active set at execution time
// so a delayed job can never act on a stale snapshot.
type CycleJob struct {
	CycleID    string    `json:"cycle_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CheckJob is one unit of check work. Only the accommodation ID travels on
// the queue; the check worker re-resolves the full record before executing.
type CheckJob struct {
	AccommodationID string `json:"accommodation_id"`
	CycleID         string `json:"cycle_id"`
}

// CycleStats are the operator-facing aggregates recorded per cycle.
type CycleStats struct {
	CycleID  string        `json:"cycle_id"`
	Total    int           `json:"total"`
	Success  int           `json:"success"`
	Error    int           `json:"error"`
	Duration time.Duration `json:"duration"`
}
