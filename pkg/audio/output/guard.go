// ABOUTME: Shared plumbing for backends
// ABOUTME: Callback guard, whole-block re-blocking adapter and the block clock
package output

import (
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// callbackGuard serialises callback invocations against stop, so that once
// stop returns no invocation is running and none will start.
type callbackGuard struct {
	mu      sync.Mutex
	cb      Callback
	stopped bool
}

// set installs cb and re-arms a stopped guard
func (g *callbackGuard) set(cb Callback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cb = cb
	g.stopped = false
}

// call runs the callback, or writes silence when there is none
func (g *callbackGuard) call(out []float32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped || g.cb == nil {
		clear(out)
		return false
	}
	g.cb(out)
	return true
}

func (g *callbackGuard) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
}

// blockReader serves reads of any size from whole callback blocks. Libraries
// that ask for arbitrary frame counts go through it so the callback always
// sees exactly one block.
type blockReader struct {
	guard   *callbackGuard
	block   []float32
	pos     int
	scratch []float32
}

func newBlockReader(guard *callbackGuard, format audio.Format) *blockReader {
	block := make([]float32, format.BlockSamples())
	return &blockReader{
		guard: guard,
		block: block,
		pos:   len(block),
	}
}

// readSamples fills out completely, pulling new blocks as needed
func (r *blockReader) readSamples(out []float32) int {
	n := 0
	for n < len(out) {
		if r.pos == len(r.block) {
			r.guard.call(r.block)
			r.pos = 0
		}
		c := copy(out[n:], r.block[r.pos:])
		r.pos += c
		n += c
	}
	return n
}

// Read implements io.Reader over little-endian float32 samples
func (r *blockReader) Read(p []byte) (int, error) {
	count := len(p) / 4
	if count == 0 {
		return 0, nil
	}
	if cap(r.scratch) < count {
		r.scratch = make([]float32, count)
	}
	samples := r.scratch[:count]
	r.readSamples(samples)
	audio.PutFloat32LE(p, samples)
	return count * 4, nil
}

// pump runs step on its own goroutine, once per period. A zero period runs
// step back to back. The pump ends when step returns false or Stop is called.
type pump struct {
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startPump(name string, period time.Duration, step func() bool) *pump {
	p := &pump{
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(p.done)

		if period <= 0 {
			for {
				select {
				case <-p.stopChan:
					return
				default:
				}
				if !step() {
					return
				}
			}
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !step() {
					log.Printf("%s: output clock stopped", name)
					return
				}
			case <-p.stopChan:
				return
			}
		}
	}()

	return p
}

// Stop ends the pump and waits for the current step to finish
func (p *pump) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	<-p.done
}

// Done is closed once the pump goroutine has exited
func (p *pump) Done() <-chan struct{} {
	return p.done
}
