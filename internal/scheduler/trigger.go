package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/heartbeat"
	"github.com/qorlgns1/binbang-sub001/internal/model"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
)

// cronPollInterval is how often the trigger re-reads the cron expression
// from settings to pick up live changes.
const cronPollInterval = time.Minute

// CycleTrigger enqueues a cycle job on the schedule held in the settings
// resolver. When the expression changes, the running cron is swapped
// without a restart.
type CycleTrigger struct {
	queue    JobQueue
	resolver *settings.Resolver
	reporter *heartbeat.Reporter
	log      *zap.Logger
}

// NewCycleTrigger creates the recurring cycle scheduler.
func NewCycleTrigger(queue JobQueue, resolver *settings.Resolver, reporter *heartbeat.Reporter, log *zap.Logger) *CycleTrigger {
	return &CycleTrigger{
		queue:    queue,
		resolver: resolver,
		reporter: reporter,
		log:      log,
	}
}

// Run blocks until the context ends, keeping one cron entry registered for
// the current expression.
func (t *CycleTrigger) Run(ctx context.Context) {
	var (
		active  *cron.Cron
		current string
	)
	defer func() {
		if active != nil {
			active.Stop()
		}
	}()

	ticker := time.NewTicker(cronPollInterval)
	defer ticker.Stop()

	for {
		expr := t.resolver.Load(ctx, false).CheckCycleCron
		if expr != current {
			if active != nil {
				active.Stop()
			}
			c := cron.New()
			if _, err := c.AddFunc(expr, func() { t.enqueueCycle(ctx) }); err != nil {
				t.log.Error("invalid cycle cron expression, keeping previous schedule",
					zap.String("expr", expr), zap.Error(err))
				if active != nil {
					active.Start()
				}
			} else {
				c.Start()
				active = c
				current = expr
				t.reporter.SetCron(expr)
				t.log.Info("cycle schedule registered", zap.String("expr", expr))
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (t *CycleTrigger) enqueueCycle(ctx context.Context) {
	job := model.CycleJob{
		CycleID:    uuid.NewString(),
		EnqueuedAt: time.Now(),
	}
	if err := t.queue.EnqueueCycle(ctx, job); err != nil {
		t.log.Error("enqueue cycle job failed", zap.Error(err))
		return
	}
	t.log.Info("cycle job enqueued", zap.String("cycle_id", job.CycleID))
}
