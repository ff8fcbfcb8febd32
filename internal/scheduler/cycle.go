package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/heartbeat"
	"github.com/qorlgns1/binbang-sub001/internal/model"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
)

// statsPollInterval is how often the cycle worker re-reads the ledger while
// waiting for fanned-out checks to finish.
const statsPollInterval = 2 * time.Second

// CycleWorker executes cycle jobs: it resolves the active accommodation set
// at execution time, fans one check job out per listing, then waits a
// bounded window for the aggregates before recording them.
type CycleWorker struct {
	queue    JobQueue
	ledger   Ledger
	store    Store
	resolver *settings.Resolver
	reporter *heartbeat.Reporter
	log      *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

// NewCycleWorker creates a cycle worker.
func NewCycleWorker(queue JobQueue, ledger Ledger, store Store, resolver *settings.Resolver, reporter *heartbeat.Reporter, log *zap.Logger) *CycleWorker {
	return &CycleWorker{
		queue:    queue,
		ledger:   ledger,
		store:    store,
		resolver: resolver,
		reporter: reporter,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// RunCycle processes one cycle job end to end. A single listing's enqueue
// failure never halts the remaining fan-out.
func (w *CycleWorker) RunCycle(ctx context.Context, job model.CycleJob) (model.CycleStats, error) {
	started := w.now()
	w.reporter.SetProcessing(ctx, true)
	defer w.reporter.SetProcessing(ctx, false)

	accs, err := w.store.ActiveAccommodations(ctx)
	if err != nil {
		return model.CycleStats{}, err
	}
	w.log.Info("cycle started",
		zap.String("cycle_id", job.CycleID),
		zap.Int("accommodations", len(accs)))

	if err := w.ledger.Init(ctx, job.CycleID, len(accs)); err != nil {
		return model.CycleStats{}, err
	}

	enqueued := 0
	for _, acc := range accs {
		check := model.CheckJob{AccommodationID: acc.ID, CycleID: job.CycleID}
		if err := w.queue.EnqueueCheck(ctx, check); err != nil {
			w.log.Error("enqueue check job failed",
				zap.String("accommodation_id", acc.ID),
				zap.Error(err))
			// The fan-out continues; the missing job shows up as an error
			// in the aggregates.
			if rerr := w.ledger.Record(ctx, job.CycleID, false); rerr != nil {
				w.log.Warn("record enqueue failure", zap.Error(rerr))
			}
			continue
		}
		enqueued++
	}

	stats := w.awaitStats(ctx, job.CycleID, len(accs))
	stats.Duration = w.now().Sub(started)

	if err := w.store.RecordCycleStats(ctx, stats); err != nil {
		w.log.Warn("record cycle stats failed", zap.Error(err))
	}
	w.reporter.RecordCycle(stats)
	w.log.Info("cycle finished",
		zap.String("cycle_id", job.CycleID),
		zap.Int("total", stats.Total),
		zap.Int("success", stats.Success),
		zap.Int("error", stats.Error),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// awaitStats polls the ledger until every fanned-out check reported or the
// bookkeeping window elapses.
func (w *CycleWorker) awaitStats(ctx context.Context, cycleID string, total int) model.CycleStats {
	window := w.resolver.Current().CycleWindow
	deadline := w.now().Add(window)
	for {
		stats, err := w.ledger.Stats(ctx, cycleID)
		if err != nil {
			w.log.Warn("read cycle stats failed", zap.Error(err))
		} else if stats.Success+stats.Error >= total {
			stats.Total = total
			return stats
		}
		if w.now().After(deadline) || ctx.Err() != nil {
			if err == nil {
				stats.Total = total
				return stats
			}
			return model.CycleStats{CycleID: cycleID, Total: total}
		}
		w.sleep(ctx, statsPollInterval)
	}
}
