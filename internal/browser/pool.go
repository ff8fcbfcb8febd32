package browser

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Acquire once Shutdown has been called, and
// delivered to every waiter outstanding at shutdown time.
var ErrPoolClosed = errors.New("browser pool is closed")

type waiter struct {
	ch        chan waiterResult
	cancelled bool
}

type waiterResult struct {
	handle *Handle
	err    error
}

// Pool owns a bounded set of browser handles. Waiters are served strictly
// FIFO; at no point does live handles + handles under construction exceed
// the configured capacity.
type Pool struct {
	capacity int
	factory  Factory
	log      *zap.Logger

	mu       sync.Mutex
	idle     []*Handle
	live     map[*Handle]struct{}
	waiters  []*waiter
	creating int
	closed   bool
}

// NewPool creates a pool of at most capacity browser handles. Handles are
// created lazily on demand, never eagerly.
func NewPool(capacity int, factory Factory, log *zap.Logger) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		capacity: capacity,
		factory:  factory,
		log:      log,
		live:     make(map[*Handle]struct{}),
	}
}

// Acquire returns an idle handle, creates one if capacity allows, or
// suspends the caller in FIFO order until a handle frees up. The returned
// handle must be passed to Release exactly once.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	// Scan the idle stack, destroying anything that died while parked.
	for len(p.idle) > 0 {
		h := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if h.Healthy() {
			p.mu.Unlock()
			return h, nil
		}
		p.destroyLocked(h)
	}

	if len(p.live)+p.creating < p.capacity {
		p.creating++
		p.mu.Unlock()
		h, err := p.factory(ctx)
		p.mu.Lock()
		p.creating--
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		if p.closed {
			h.close()
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		p.live[h] = struct{}{}
		p.mu.Unlock()
		return h, nil
	}

	w := &waiter{ch: make(chan waiterResult, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.handle, res.err
	case <-ctx.Done():
		p.mu.Lock()
		w.cancelled = true
		p.mu.Unlock()
		// A handle may have been delivered in the race window; put it back.
		select {
		case res := <-w.ch:
			if res.handle != nil {
				p.Release(res.handle)
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Release returns a handle to the pool. A healthy handle goes to the oldest
// waiter if one exists, otherwise to the idle stack. An unhealthy handle is
// destroyed and, when a waiter is pending, capacity is refilled for the
// longest-waiting caller.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.destroyLocked(h)
		p.mu.Unlock()
		return
	}

	if !h.Healthy() {
		p.destroyLocked(h)
		p.refillLocked()
		p.mu.Unlock()
		return
	}

	if w := p.popWaiterLocked(); w != nil {
		w.ch <- waiterResult{handle: h}
		p.mu.Unlock()
		return
	}
	p.idle = append(p.idle, h)
	p.mu.Unlock()
}

// Shutdown closes the pool: all outstanding waiters are rejected and every
// live handle is force-closed. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true

	// The cancelled flag is written under p.mu, so the pending set must be
	// decided before releasing it.
	var pending []*waiter
	for _, w := range p.waiters {
		if !w.cancelled {
			pending = append(pending, w)
		}
	}
	p.waiters = nil
	for h := range p.live {
		h.close()
	}
	p.live = make(map[*Handle]struct{})
	p.idle = nil
	p.mu.Unlock()

	for _, w := range pending {
		w.ch <- waiterResult{err: ErrPoolClosed}
	}
}

// InUse reports how many handles are currently loaned out. Handles still
// under construction are not loans yet.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live) - len(p.idle)
}

// destroyLocked terminates a handle and forgets it. Caller holds p.mu.
func (p *Pool) destroyLocked(h *Handle) {
	h.close()
	delete(p.live, h)
}

// refillLocked starts an async replacement handle when a waiter is pending
// and capacity allows. Creation failures reject the oldest waiter rather
// than retrying silently; the caller owns retry policy. Caller holds p.mu.
func (p *Pool) refillLocked() {
	if len(p.waiters) == 0 || len(p.live)+p.creating >= p.capacity {
		return
	}
	p.creating++
	go func() {
		h, err := p.factory(context.Background())
		p.mu.Lock()
		p.creating--
		if err != nil {
			w := p.popWaiterLocked()
			p.mu.Unlock()
			if w != nil {
				w.ch <- waiterResult{err: err}
			}
			p.log.Warn("browser handle creation failed during refill", zap.Error(err))
			return
		}
		if p.closed {
			h.close()
			p.mu.Unlock()
			return
		}
		p.live[h] = struct{}{}
		if w := p.popWaiterLocked(); w != nil {
			w.ch <- waiterResult{handle: h}
			p.mu.Unlock()
			return
		}
		p.idle = append(p.idle, h)
		p.mu.Unlock()
	}()
}

// popWaiterLocked removes and returns the oldest non-cancelled waiter.
// Caller holds p.mu.
func (p *Pool) popWaiterLocked() *waiter {
	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		if !w.cancelled {
			return w
		}
	}
	return nil
}
