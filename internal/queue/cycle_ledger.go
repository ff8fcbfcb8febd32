package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// cycleTTL bounds how long per-cycle counters stay around after the last
// write.
const cycleTTL = 24 * time.Hour

// CycleLedger tracks fan-out aggregates per cycle in a Redis hash, written
// by the check workers and read by the cycle worker's bookkeeping loop.
type CycleLedger struct {
	q *Queue
}

// NewCycleLedger creates a ledger over the same Redis connection.
func NewCycleLedger(q *Queue) *CycleLedger {
	return &CycleLedger{q: q}
}

func cycleKey(cycleID string) string {
	return fmt.Sprintf("cycle:%s:stats", cycleID)
}

// Init records the fan-out size for a cycle.
func (l *CycleLedger) Init(ctx context.Context, cycleID string, total int) error {
	key := cycleKey(cycleID)
	if err := l.q.rdb.HSet(ctx, key, "total", total, "success", 0, "error", 0).Err(); err != nil {
		return fmt.Errorf("init cycle stats: %w", err)
	}
	return l.q.rdb.Expire(ctx, key, cycleTTL).Err()
}

// Record counts one finished check for its cycle.
func (l *CycleLedger) Record(ctx context.Context, cycleID string, ok bool) error {
	field := "success"
	if !ok {
		field = "error"
	}
	return l.q.rdb.HIncrBy(ctx, cycleKey(cycleID), field, 1).Err()
}

// Stats reads the current aggregates for a cycle.
func (l *CycleLedger) Stats(ctx context.Context, cycleID string) (model.CycleStats, error) {
	vals, err := l.q.rdb.HGetAll(ctx, cycleKey(cycleID)).Result()
	if err != nil {
		return model.CycleStats{}, fmt.Errorf("read cycle stats: %w", err)
	}
	stats := model.CycleStats{CycleID: cycleID}
	fmt.Sscan(vals["total"], &stats.Total)
	fmt.Sscan(vals["success"], &stats.Success)
	fmt.Sscan(vals["error"], &stats.Error)
	return stats, nil
}
