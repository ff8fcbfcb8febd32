package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/browser"
	"github.com/qorlgns1/binbang-sub001/internal/config"
	"github.com/qorlgns1/binbang-sub001/internal/engine"
	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/heartbeat"
	"github.com/qorlgns1/binbang-sub001/internal/metrics"
	"github.com/qorlgns1/binbang-sub001/internal/notify"
	"github.com/qorlgns1/binbang-sub001/internal/queue"
	"github.com/qorlgns1/binbang-sub001/internal/scheduler"
	"github.com/qorlgns1/binbang-sub001/internal/server"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
	"github.com/qorlgns1/binbang-sub001/internal/store"
	"github.com/qorlgns1/binbang-sub001/pkg/db"
	"github.com/qorlgns1/binbang-sub001/pkg/redis"
)

const settingsTTL = time.Minute

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdbClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdbClient.Close()

	pgPool, err := db.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pgPool.Close()

	st := store.New(pgPool.Pool)
	resolver := settings.NewResolver(st, settingsTTL, log)
	s := resolver.Load(ctx, true)

	rules := extract.NewProvider(st, log)
	pool := browser.NewPool(s.BrowserPoolSize, browser.ChromeFactory(cfg.UserAgent), log)
	eng := engine.New(pool, engine.NewChromeDriver(), rules, log)

	q := queue.New(rdbClient.Redis(), cfg.WorkerID)
	for _, name := range []string{queue.CycleQueue, queue.CheckQueue} {
		if n, err := q.Requeue(ctx, name); err != nil {
			log.Warn("requeue leftover jobs", zap.String("queue", name), zap.Error(err))
		} else if n > 0 {
			log.Info("requeued leftover jobs", zap.String("queue", name), zap.Int("count", n))
		}
	}
	ledger := queue.NewCycleLedger(q)

	reporter := heartbeat.NewReporter(st, cfg.WorkerID, log)
	reporter.SetThresholds(func() heartbeat.Thresholds {
		cur := resolver.Current()
		return heartbeat.Thresholds{
			Healthy:       cur.HealthyThreshold,
			Degraded:      cur.DegradedThreshold,
			MaxProcessing: cur.MaxProcessingTime,
		}
	})
	notifier := notify.NewWebhook(cfg.WebhookURL, log)
	cycles := scheduler.NewCycleWorker(q, ledger, st, resolver, reporter, log)
	runner := scheduler.NewRunner(q, ledger, st, eng, notifier, cycles, resolver, log)
	trigger := scheduler.NewCycleTrigger(q, resolver, reporter, log)

	deps := server.NewDeps(rules, resolver, st, cfg.WorkerID, log)
	srv := server.New(cfg, log, deps)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(ctx, func() time.Duration { return resolver.Current().HeartbeatInterval })
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		trigger.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		gaugeLoop(ctx, q, pool)
	}()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", zap.Error(err))
			stop()
		}
	}()

	log.Info("worker started",
		zap.String("worker_id", cfg.WorkerID),
		zap.Int("browser_pool_size", s.BrowserPoolSize),
		zap.Int("check_concurrency", s.CheckConcurrency),
		zap.String("cycle_cron", s.CheckCycleCron))

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	wg.Wait()
	pool.Shutdown()
	log.Info("worker stopped")
	_ = os.Stdout.Sync()
}

// gaugeLoop keeps the queue depth and pool usage gauges current.
func gaugeLoop(ctx context.Context, q *queue.Queue, pool *browser.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, name := range []string{queue.CycleQueue, queue.CheckQueue} {
				if depth, err := q.Depth(ctx, name); err == nil {
					metrics.QueueDepth.WithLabelValues(name).Set(float64(depth))
				}
			}
			metrics.BrowsersInUse.Set(float64(pool.InUse()))
		case <-ctx.Done():
			return
		}
	}
}
