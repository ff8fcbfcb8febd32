package heartbeat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// Store persists the heartbeat singleton and its append-only history.
type Store interface {
	UpsertHeartbeat(ctx context.Context, hb model.Heartbeat) error
	AppendHeartbeatHistory(ctx context.Context, row model.HeartbeatHistory) error
}

// Reporter maintains the worker's liveness record: written at a fixed
// interval and at cycle boundaries, read by the external monitor. It never
// consults its own output for control decisions.
type Reporter struct {
	store    Store
	log      *zap.Logger
	workerID string
	now      func() time.Time

	mu              sync.Mutex
	thresholds      func() Thresholds
	startedAt       time.Time
	processing      bool
	processingSince time.Time
	cronExpr        string
	listingsChecked int64
	lastCycleErrors int
	lastCycleMs     int64
}

// NewReporter creates a reporter for this worker process.
func NewReporter(store Store, workerID string, log *zap.Logger) *Reporter {
	return &Reporter{
		store:    store,
		log:      log,
		workerID: workerID,
		now:      time.Now,
	}
}

// SetThresholds supplies the classification thresholds used to label
// history rows. Re-read on every flush so settings changes apply live.
func (r *Reporter) SetThresholds(fn func() Thresholds) {
	r.mu.Lock()
	r.thresholds = fn
	r.mu.Unlock()
}

// Run flushes a heartbeat immediately and then at each interval until the
// context ends. The interval is re-read each tick so a settings change
// takes effect without restart.
func (r *Reporter) Run(ctx context.Context, interval func() time.Duration) {
	r.mu.Lock()
	if r.startedAt.IsZero() {
		r.startedAt = r.now()
	}
	r.mu.Unlock()

	for {
		if err := r.Flush(ctx); err != nil {
			r.log.Warn("heartbeat flush failed", zap.Error(err))
		}
		t := time.NewTimer(interval())
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

// SetProcessing flips the processing flag at cycle boundaries and flushes
// so the monitor sees the transition promptly.
func (r *Reporter) SetProcessing(ctx context.Context, on bool) {
	r.mu.Lock()
	r.processing = on
	if on {
		r.processingSince = r.now()
	} else {
		r.processingSince = time.Time{}
	}
	r.mu.Unlock()
	if err := r.Flush(ctx); err != nil {
		r.log.Warn("heartbeat flush failed", zap.Error(err))
	}
}

// SetCron records the active cycle schedule.
func (r *Reporter) SetCron(expr string) {
	r.mu.Lock()
	r.cronExpr = expr
	r.mu.Unlock()
}

// RecordCycle folds one finished cycle's aggregates into the record.
func (r *Reporter) RecordCycle(stats model.CycleStats) {
	r.mu.Lock()
	r.listingsChecked += int64(stats.Total)
	r.lastCycleErrors = stats.Error
	r.lastCycleMs = stats.Duration.Milliseconds()
	r.mu.Unlock()
}

// Snapshot returns the current heartbeat state with LastHeartbeatAt set to
// now.
func (r *Reporter) Snapshot() model.Heartbeat {
	r.mu.Lock()
	defer r.mu.Unlock()
	started := r.startedAt
	if started.IsZero() {
		started = r.now()
	}
	return model.Heartbeat{
		WorkerID:        r.workerID,
		StartedAt:       started,
		LastHeartbeatAt: r.now(),
		Processing:      r.processing,
		ProcessingSince: r.processingSince,
		CronExpression:  r.cronExpr,
		ListingsChecked: r.listingsChecked,
		LastCycleErrors: r.lastCycleErrors,
		LastCycleMs:     r.lastCycleMs,
	}
}

// Flush upserts the singleton record and appends one history row. The row's
// status is the worker's own classification of its snapshot: the heartbeat
// is fresh by construction, so only the stuck label can differ here.
func (r *Reporter) Flush(ctx context.Context) error {
	hb := r.Snapshot()
	if err := r.store.UpsertHeartbeat(ctx, hb); err != nil {
		return err
	}
	r.mu.Lock()
	thresholds := r.thresholds
	r.mu.Unlock()
	status := model.WorkerHealthy
	if thresholds != nil {
		status = Classify(hb, hb.LastHeartbeatAt, thresholds())
	}
	return r.store.AppendHeartbeatHistory(ctx, model.HeartbeatHistory{
		WorkerID:      hb.WorkerID,
		Timestamp:     hb.LastHeartbeatAt,
		Status:        status,
		Processing:    hb.Processing,
		UptimeSeconds: int64(hb.LastHeartbeatAt.Sub(hb.StartedAt).Seconds()),
	})
}
