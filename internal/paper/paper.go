// Package paper contains in-process stand-ins for the on-chain execution
// client, the simulator and the scoring model, so the engine runs
// end-to-end without network access. Execution characteristics mirror live
// behavior: confidence-weighted success, profit jitter around the estimate
// and gas loss on failure.
package paper

import (
	"math/rand"
	"sync"
	"time"
)

// rng wraps a seeded source behind a mutex; lane workers call concurrently.
type rng struct {
	mu  sync.Mutex
	src *rand.Rand
}

func newRNG(seed int64) *rng {
	return &rng{src: rand.New(rand.NewSource(seed))}
}

func (r *rng) float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

// uniform returns a value in [lo, hi).
func (r *rng) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.float64()
}

func (r *rng) hexString(n int) string {
	const digits = "0123456789abcdef"
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[r.src.Intn(len(digits))]
	}
	return string(b)
}

// executionDelay approximates chain confirmation latency.
const executionDelay = 10 * time.Millisecond

// NewSeeded returns the three paper collaborators sharing one seeded source.
// A fixed seed makes backtests reproducible.
func NewSeeded(seed int64) (*Executor, *Simulator, *Scorer) {
	r := newRNG(seed)
	return &Executor{rng: r}, &Simulator{rng: r}, &Scorer{}
}

// New returns paper collaborators seeded from the clock.
func New() (*Executor, *Simulator, *Scorer) {
	return NewSeeded(time.Now().UnixNano())
}
