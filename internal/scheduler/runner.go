package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/engine"
	"github.com/qorlgns1/binbang-sub001/internal/metrics"
	"github.com/qorlgns1/binbang-sub001/internal/model"
	"github.com/qorlgns1/binbang-sub001/internal/queue"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
)

// dequeueWait is the blocking window for one dequeue call. Short enough for
// prompt shutdown, long enough to avoid hot-looping on an empty queue.
const dequeueWait = 5 * time.Second

// Runner consumes both queues: one goroutine for cycle jobs and a bounded
// set of goroutines for check jobs. Check concurrency is clamped to the
// browser pool size so jobs wait at the queue layer, not inside Acquire.
type Runner struct {
	queue    JobQueue
	ledger   Ledger
	store    Store
	checker  Checker
	notifier Notifier
	cycles   *CycleWorker
	resolver *settings.Resolver
	log      *zap.Logger
}

// NewRunner assembles the queue consumers.
func NewRunner(q JobQueue, ledger Ledger, store Store, checker Checker, notifier Notifier, cycles *CycleWorker, resolver *settings.Resolver, log *zap.Logger) *Runner {
	return &Runner{
		queue:    q,
		ledger:   ledger,
		store:    store,
		checker:  checker,
		notifier: notifier,
		cycles:   cycles,
		resolver: resolver,
		log:      log,
	}
}

// Run blocks until the context ends and all in-flight jobs have drained.
func (r *Runner) Run(ctx context.Context) {
	s := r.resolver.Load(ctx, false)
	concurrency := s.CheckConcurrency
	if concurrency > s.BrowserPoolSize {
		r.log.Warn("check concurrency exceeds browser pool size, clamping",
			zap.Int("concurrency", s.CheckConcurrency),
			zap.Int("pool_size", s.BrowserPoolSize))
		concurrency = s.BrowserPoolSize
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.cycleLoop(ctx)
	}()
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.checkLoop(ctx)
		}()
	}
	wg.Wait()
}

func (r *Runner) cycleLoop(ctx context.Context) {
	for ctx.Err() == nil {
		job, token, err := r.queue.DequeueCycle(ctx, dequeueWait)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				r.log.Error("dequeue cycle job failed", zap.Error(err))
			}
			continue
		}
		if _, err := r.cycles.RunCycle(ctx, *job); err != nil {
			r.log.Error("cycle job failed", zap.String("cycle_id", job.CycleID), zap.Error(err))
		}
		if err := r.queue.Ack(ctx, queue.CycleQueue, token); err != nil {
			r.log.Warn("ack cycle job failed", zap.Error(err))
		}
	}
}

func (r *Runner) checkLoop(ctx context.Context) {
	for ctx.Err() == nil {
		job, token, err := r.queue.DequeueCheck(ctx, dequeueWait)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				r.log.Error("dequeue check job failed", zap.Error(err))
			}
			continue
		}
		r.processCheck(ctx, *job)
		if err := r.queue.Ack(ctx, queue.CheckQueue, token); err != nil {
			r.log.Warn("ack check job failed", zap.Error(err))
		}
	}
}

// processCheck executes one check job: re-resolve the listing, run the
// engine with a fresh settings snapshot, persist, and notify on a new
// availability transition.
func (r *Runner) processCheck(ctx context.Context, job model.CheckJob) {
	acc, err := r.store.Accommodation(ctx, job.AccommodationID)
	if err != nil {
		r.log.Error("resolve accommodation failed",
			zap.String("accommodation_id", job.AccommodationID),
			zap.Error(err))
		r.recordOutcome(ctx, job.CycleID, false)
		return
	}
	if acc == nil || !acc.Active {
		// Deactivated between enqueue and execution; count it as done so
		// the cycle bookkeeping still converges.
		r.recordOutcome(ctx, job.CycleID, true)
		return
	}

	cfg := RuntimeConfigFrom(r.resolver.Load(ctx, false))
	started := time.Now()
	res := r.checker.Check(ctx, *acc, cfg)
	metrics.ObserveCheck(string(acc.Platform), res, time.Since(started))

	if err := r.store.RecordCheckResult(ctx, acc.ID, job.CycleID, res); err != nil {
		r.log.Error("record check result failed",
			zap.String("accommodation_id", acc.ID),
			zap.Error(err))
	}
	r.recordOutcome(ctx, job.CycleID, res.Error == "")

	if res.Available && res.Error == "" {
		r.maybeNotify(ctx, *acc, res)
	}
}

func (r *Runner) recordOutcome(ctx context.Context, cycleID string, ok bool) {
	if cycleID == "" {
		return
	}
	if err := r.ledger.Record(ctx, cycleID, ok); err != nil {
		r.log.Warn("record cycle outcome failed", zap.Error(err))
	}
}

// maybeNotify dispatches the availability notification at most once per
// observed transition. The dedupe key covers the listing, the availability
// state, and the stay dates; processing the same check job twice finds the
// key already present and stays quiet.
func (r *Runner) maybeNotify(ctx context.Context, acc model.Accommodation, res model.CheckResult) {
	key := DedupeKey(acc, res.Available)
	created, err := r.store.FindOrCreateDedupeKey(ctx, key)
	if err != nil {
		r.log.Error("dedupe key lookup failed", zap.String("accommodation_id", acc.ID), zap.Error(err))
		return
	}
	if !created {
		return
	}

	name := acc.ID
	if res.Metadata != nil && res.Metadata.Name != "" {
		name = res.Metadata.Name
	}
	payload := model.NotificationPayload{
		AccommodationName: name,
		CheckIn:           acc.CheckIn.Format("2006-01-02"),
		CheckOut:          acc.CheckOut.Format("2006-01-02"),
		Price:             res.Price,
		URL:               res.CheckedURL,
	}
	if err := r.notifier.Notify(ctx, payload); err != nil {
		r.log.Error("notification dispatch failed", zap.String("accommodation_id", acc.ID), zap.Error(err))
		return
	}
	r.log.Info("availability notification dispatched",
		zap.String("accommodation_id", acc.ID),
		zap.String("price", res.Price))
}

// DedupeKey derives the at-most-once notification key for a listing's
// availability transition.
func DedupeKey(acc model.Accommodation, available bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%t|%s|%s",
		acc.ID, available,
		acc.CheckIn.Format("2006-01-02"),
		acc.CheckOut.Format("2006-01-02"))))
	return hex.EncodeToString(sum[:])
}

// RuntimeConfigFrom maps a settings snapshot to the engine's runtime
// configuration.
func RuntimeConfigFrom(s *settings.Settings) engine.RuntimeConfig {
	return engine.RuntimeConfig{
		NavigationTimeout:    s.NavigationTimeout,
		ContentWaitTimeout:   s.ContentWaitTimeout,
		PatternRetryWait:     s.PatternRetryWait,
		RetryDelay:           s.RetryDelay,
		MaxRetries:           s.MaxRetries,
		BlockedResourceTypes: s.BlockedResourceTypes,
		ScrollDistanceAirbnb: s.ScrollDistanceAirbnb,
		ScrollDistanceAgoda:  s.ScrollDistanceAgoda,
	}
}
