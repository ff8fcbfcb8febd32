package scheduler

import (
	"context"
	"time"

	"github.com/qorlgns1/binbang-sub001/internal/engine"
	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// JobQueue is the durable queue surface the scheduler drives.
type JobQueue interface {
	EnqueueCycle(ctx context.Context, job model.CycleJob) error
	EnqueueCheck(ctx context.Context, job model.CheckJob) error
	DequeueCycle(ctx context.Context, wait time.Duration) (*model.CycleJob, string, error)
	DequeueCheck(ctx context.Context, wait time.Duration) (*model.CheckJob, string, error)
	Ack(ctx context.Context, name, token string) error
}

// Ledger tracks per-cycle fan-out aggregates.
type Ledger interface {
	Init(ctx context.Context, cycleID string, total int) error
	Record(ctx context.Context, cycleID string, ok bool) error
	Stats(ctx context.Context, cycleID string) (model.CycleStats, error)
}

// Store is the persistence collaborator surface the workers consume.
type Store interface {
	ActiveAccommodations(ctx context.Context) ([]model.Accommodation, error)
	Accommodation(ctx context.Context, id string) (*model.Accommodation, error)
	RecordCheckResult(ctx context.Context, accommodationID, cycleID string, res model.CheckResult) error
	RecordCycleStats(ctx context.Context, stats model.CycleStats) error
	FindOrCreateDedupeKey(ctx context.Context, key string) (bool, error)
}

// Checker abstracts the check execution engine.
type Checker interface {
	Check(ctx context.Context, acc model.Accommodation, cfg engine.RuntimeConfig) model.CheckResult
}

// Notifier is the outbound-messaging collaborator boundary. Delivery
// mechanics live outside this process; only the payload contract is ours.
type Notifier interface {
	Notify(ctx context.Context, payload model.NotificationPayload) error
}
