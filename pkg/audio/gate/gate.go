// ABOUTME: Lock and condition variable guarding the sample queue
// ABOUTME: Scoped access for the callback, blocking appends and watermark waits for the producer
package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/queue"
)

// ErrClosed is returned once the gate has been closed
var ErrClosed = errors.New("gate closed")

// Gate serialises all access to a queue.
//
// The producer appends through Append and paces itself with WaitBelow. The
// output callback drains through Drain, which never waits on the condition
// variable and holds the lock only for the copy.
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
	chunk  int
}

// Option configures a Gate
type Option func(*Gate)

// ChunkSize caps how many samples one lock hold may append. Producers use the
// block size so the callback never waits behind a large copy.
func ChunkSize(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.chunk = n
		}
	}
}

// New wraps q
func New(q *queue.Queue, opts ...Option) *Gate {
	g := &Gate{
		q:     q,
		chunk: q.Cap(),
	}
	g.cond = sync.NewCond(&g.mu)
	for _, opt := range opts {
		opt(g)
	}
	g.chunk = min(g.chunk, q.Cap())
	return g
}

// With runs fn with exclusive access to the queue. The lock is released on
// every exit path. Waiters are woken afterwards since fn may have changed the
// queue's occupancy.
func (g *Gate) With(fn func(q *queue.Queue)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	defer g.cond.Broadcast()
	fn(g.q)
	return nil
}

// Append adds samples to the queue, honouring its overflow policy.
//
// Under queue.OverflowBlock the call waits for space as long as it takes; it
// returns early only when ctx ends or the gate closes, in which case part of
// samples may already have been queued. dropped counts the samples discarded
// under queue.OverflowDropOldest.
func (g *Gate) Append(ctx context.Context, samples []float32) (dropped int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stop := context.AfterFunc(ctx, g.wake)
	defer stop()

	for len(samples) > 0 {
		chunk := samples[:min(len(samples), g.chunk)]

		n, d, err := g.appendChunk(ctx, chunk)
		dropped += d
		if err != nil {
			return dropped, err
		}
		samples = samples[n:]
	}
	return dropped, nil
}

func (g *Gate) appendChunk(ctx context.Context, chunk []float32) (n, dropped int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for !g.closed && ctx.Err() == nil && g.q.Policy() == queue.OverflowBlock && g.q.Free() == 0 {
		g.cond.Wait()
	}
	if g.closed {
		return 0, 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	n, dropped = g.q.Append(chunk)
	return n, dropped, nil
}

// WaitBelow blocks until fewer than watermark samples are queued. A
// watermark below 1 waits for the queue to empty.
func (g *Gate) WaitBelow(ctx context.Context, watermark int) error {
	if watermark < 1 {
		watermark = 1
	}

	stop := context.AfterFunc(ctx, g.wake)
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	for !g.closed && ctx.Err() == nil && g.q.Len() >= watermark {
		g.cond.Wait()
	}
	if g.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Drain moves up to len(dst) samples from the head of the queue into dst and
// wakes waiting producers. It returns 0 once the gate is closed.
func (g *Gate) Drain(dst []float32) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return 0
	}
	n := g.q.DrainInto(dst)
	if n > 0 {
		g.cond.Broadcast()
	}
	return n
}

// Len returns the number of queued samples
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.q.Len()
}

// Cap returns the queue capacity in samples
func (g *Gate) Cap() int {
	return g.q.Cap()
}

// Close marks the gate closed and wakes every waiter. Safe to call repeatedly.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true
	g.cond.Broadcast()
}

// Closed reports whether Close has been called
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// wake is run when a waiter's context ends. Taking the lock orders the
// broadcast after the waiter's own ctx check.
func (g *Gate) wake() {
	g.mu.Lock()
	g.cond.Broadcast()
	g.mu.Unlock()
}
