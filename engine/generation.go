package engine

import (
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/lingo/idgen"
)

// Generation is a process-wide liveness token for one engine activation.
// All scheduling and every state mutation that follows a suspension point
// must check Cancelled first; a cancelled generation performs no further
// work of any kind.
type Generation struct {
	id        string
	seq       uint64
	cancelled atomic.Bool
	done      chan struct{}
}

// ID returns the generation identifier.
func (g *Generation) ID() string { return g.id }

// Seq returns the monotonic activation sequence number.
func (g *Generation) Seq() uint64 { return g.seq }

// Cancelled reports whether a newer generation has superseded this one.
func (g *Generation) Cancelled() bool { return g.cancelled.Load() }

// Done returns a channel closed when the generation is cancelled, for use
// in select loops.
func (g *Generation) Done() <-chan struct{} { return g.done }

func (g *Generation) cancel() {
	if g.cancelled.CompareAndSwap(false, true) {
		close(g.done)
	}
}

// Arbiter hands out generations and guarantees at most one is live: when a
// new activation arrives in the same hosting context, every older
// generation is cancelled before the new one is returned. This is the
// handshake that stops two engine instances from double-processing the
// same feed after a reload.
type Arbiter struct {
	mu      sync.Mutex
	seq     uint64
	current *Generation
	newID   idgen.Generator
}

// NewArbiter creates an Arbiter.
func NewArbiter() *Arbiter {
	return &Arbiter{newID: idgen.Prefixed("gen_", idgen.Default)}
}

// Activate cancels the current generation, if any, and returns a fresh one.
func (a *Arbiter) Activate() *Generation {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		a.current.cancel()
	}
	a.seq++
	a.current = &Generation{
		id:   a.newID(),
		seq:  a.seq,
		done: make(chan struct{}),
	}
	return a.current
}

// Current returns the live generation, or nil before the first activation.
func (a *Arbiter) Current() *Generation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
