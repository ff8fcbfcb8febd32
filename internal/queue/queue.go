package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// Queue names; also the durable wire contract with any future producer.
const (
	CycleQueue = "cycle"
	CheckQueue = "check"
)

// ErrEmpty is returned by dequeue calls when nothing arrived within the
// blocking window.
var ErrEmpty = errors.New("queue empty")

// Queue is the durable job queue on Redis lists. Dequeued messages move to
// a per-worker processing list until acked, so a crashed worker leaves its
// in-flight jobs recoverable (at-least-once delivery).
type Queue struct {
	rdb      *redis.Client
	workerID string
}

// New creates a queue bound to this worker's processing lists.
func New(rdb *redis.Client, workerID string) *Queue {
	return &Queue{rdb: rdb, workerID: workerID}
}

func queueKey(name string) string {
	return fmt.Sprintf("queue:%s", name)
}

func (q *Queue) processingKey(name string) string {
	return fmt.Sprintf("processing:%s:%s", name, q.workerID)
}

// EnqueueCycle pushes one cycle trigger.
func (q *Queue) EnqueueCycle(ctx context.Context, job model.CycleJob) error {
	return q.push(ctx, CycleQueue, job)
}

// EnqueueCheck pushes one check job.
func (q *Queue) EnqueueCheck(ctx context.Context, job model.CheckJob) error {
	return q.push(ctx, CheckQueue, job)
}

func (q *Queue) push(ctx context.Context, name string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", name, err)
	}
	if err := q.rdb.LPush(ctx, queueKey(name), raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s job: %w", name, err)
	}
	return nil
}

// DequeueCycle blocks up to wait for a cycle job. The returned token must
// be passed to Ack once the job is done.
func (q *Queue) DequeueCycle(ctx context.Context, wait time.Duration) (*model.CycleJob, string, error) {
	raw, err := q.pop(ctx, CycleQueue, wait)
	if err != nil {
		return nil, "", err
	}
	var job model.CycleJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, raw, fmt.Errorf("decode cycle job: %w", err)
	}
	return &job, raw, nil
}

// DequeueCheck blocks up to wait for a check job.
func (q *Queue) DequeueCheck(ctx context.Context, wait time.Duration) (*model.CheckJob, string, error) {
	raw, err := q.pop(ctx, CheckQueue, wait)
	if err != nil {
		return nil, "", err
	}
	var job model.CheckJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, raw, fmt.Errorf("decode check job: %w", err)
	}
	return &job, raw, nil
}

func (q *Queue) pop(ctx context.Context, name string, wait time.Duration) (string, error) {
	raw, err := q.rdb.BRPopLPush(ctx, queueKey(name), q.processingKey(name), wait).Result()
	if err == redis.Nil {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("dequeue %s job: %w", name, err)
	}
	return raw, nil
}

// Ack removes a processed message from this worker's processing list.
func (q *Queue) Ack(ctx context.Context, name, token string) error {
	return q.rdb.LRem(ctx, q.processingKey(name), 1, token).Err()
}

// Requeue moves unacked messages from this worker's processing list back to
// the queue. Called at startup to recover jobs from a previous crash.
func (q *Queue) Requeue(ctx context.Context, name string) (int, error) {
	n := 0
	for {
		_, err := q.rdb.RPopLPush(ctx, q.processingKey(name), queueKey(name)).Result()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeue %s job: %w", name, err)
		}
		n++
	}
}

// Depth reports the current length of a queue, for the depth gauge.
func (q *Queue) Depth(ctx context.Context, name string) (int64, error) {
	return q.rdb.LLen(ctx, queueKey(name)).Result()
}
