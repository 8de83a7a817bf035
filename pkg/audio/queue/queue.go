// ABOUTME: Bounded FIFO of pending output samples
// ABOUTME: Ring buffer with an explicit overflow policy (block or drop-oldest)
package queue

import "fmt"

// Overflow selects what happens when the producer outruns the consumer
type Overflow int

const (
	// OverflowBlock appends only what fits; the caller waits for space
	OverflowBlock Overflow = iota
	// OverflowDropOldest discards the oldest queued samples to make room
	OverflowDropOldest
)

func (o Overflow) String() string {
	switch o {
	case OverflowBlock:
		return "block"
	case OverflowDropOldest:
		return "drop-oldest"
	default:
		return fmt.Sprintf("Overflow(%d)", int(o))
	}
}

// ParseOverflow maps a config string to a policy
func ParseOverflow(s string) (Overflow, error) {
	switch s {
	case "", "block":
		return OverflowBlock, nil
	case "drop-oldest", "drop":
		return OverflowDropOldest, nil
	default:
		return OverflowBlock, fmt.Errorf("unknown overflow policy: %q", s)
	}
}

// Queue is a fixed-capacity circular buffer of samples.
//
// Queue does no locking of its own. Callers serialise access (see package gate).
type Queue struct {
	buf      []float32
	readPos  int
	writePos int
	count    int
	policy   Overflow
}

// New creates a queue holding at most capacity samples
func New(capacity int, policy Overflow) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		buf:    make([]float32, capacity),
		policy: policy,
	}
}

// Append adds samples to the tail.
//
// With OverflowBlock only the samples that fit are taken and appended reports
// how many; the rest are the caller's to retry. With OverflowDropOldest every
// sample is taken, and dropped reports how many queued (or incoming) samples
// were discarded to make room.
func (q *Queue) Append(samples []float32) (appended, dropped int) {
	n := len(samples)
	if n == 0 {
		return 0, 0
	}

	size := len(q.buf)

	if q.policy == OverflowDropOldest {
		// Anything beyond one full buffer would be overwritten anyway
		if n > size {
			dropped += n - size
			samples = samples[n-size:]
			n = size
		}
		if overflow := q.count + n - size; overflow > 0 {
			q.readPos = (q.readPos + overflow) % size
			q.count -= overflow
			dropped += overflow
		}
	} else if free := size - q.count; n > free {
		samples = samples[:free]
		n = free
	}

	if n == 0 {
		return 0, dropped
	}

	first := min(n, size-q.writePos)
	copy(q.buf[q.writePos:], samples[:first])
	copy(q.buf, samples[first:n])
	q.writePos = (q.writePos + n) % size
	q.count += n

	return n, dropped
}

// DrainInto removes up to len(dst) samples from the head into dst and
// returns how many were copied. It never allocates.
func (q *Queue) DrainInto(dst []float32) int {
	n := min(len(dst), q.count)
	if n == 0 {
		return 0
	}

	size := len(q.buf)
	first := min(n, size-q.readPos)
	copy(dst, q.buf[q.readPos:q.readPos+first])
	copy(dst[first:n], q.buf[:n-first])
	q.readPos = (q.readPos + n) % size
	q.count -= n

	return n
}

// Drain removes and returns up to max samples from the head, in order
func (q *Queue) Drain(max int) []float32 {
	if max <= 0 || q.count == 0 {
		return nil
	}
	out := make([]float32, min(max, q.count))
	q.DrainInto(out)
	return out
}

// Len returns the number of queued samples
func (q *Queue) Len() int { return q.count }

// Cap returns the capacity in samples
func (q *Queue) Cap() int { return len(q.buf) }

// Free returns the number of samples that can be appended without overflow
func (q *Queue) Free() int { return len(q.buf) - q.count }

// Policy returns the overflow policy
func (q *Queue) Policy() Overflow { return q.policy }

// Reset discards everything queued
func (q *Queue) Reset() {
	q.readPos = 0
	q.writePos = 0
	q.count = 0
}
