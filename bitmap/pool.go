package bitmap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// UndersizePolicy decides what a pool does with a free buffer that is too
// small for the requested resolution.
type UndersizePolicy int

const (
	// Discard drops the undersized buffer (shrinking the live count) and
	// allocates a fresh one if the pool is under its bound.
	Discard UndersizePolicy = iota
	// Grow replaces the undersized buffer with a larger one in place; the
	// live count is unchanged.
	Grow
)

func (p UndersizePolicy) String() string {
	if p == Grow {
		return "grow"
	}
	return "discard"
}

// PoolOption configures a pool at construction
type PoolOption func(*poolOptions)

type poolOptions struct {
	policy UndersizePolicy
}

// WithUndersizePolicy sets the undersized-buffer policy (default Discard)
func WithUndersizePolicy(policy UndersizePolicy) PoolOption {
	return func(o *poolOptions) {
		o.policy = policy
	}
}

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	// Max is the bound on live buffers
	Max int
	// Live is the number of buffers in existence (free + checked out)
	Live int
	// Free is the number of buffers waiting in the free list
	Free int
	// Outstanding is the number of buffers currently checked out
	Outstanding int
	// Allocations counts fresh buffer allocations
	Allocations uint64
	// Reuses counts acquisitions served from the free list
	Reuses uint64
	// Evictions counts undersized free buffers discarded or regrown
	Evictions uint64
	// Waits counts times a blocking acquire had to wait for a release
	Waits uint64
}

// PlanePool is a bounded pool of reusable backing buffers for one element
// type.
//
// A single mutex guards the free list and the live count; a condition
// variable wakes blocked acquirers when a buffer is released or capacity is
// freed. The pool never holds more than max buffers (free + checked out).
type PlanePool[T Element] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	free   [][]T
	live   int
	max    int
	policy UndersizePolicy

	allocations uint64
	reuses      uint64
	evictions   uint64
	waits       uint64
}

// NewPlanePool creates an empty pool bounded at max buffers.
// A max below 1 is treated as 1.
func NewPlanePool[T Element](max int, opts ...PoolOption) *PlanePool[T] {
	o := poolOptions{policy: Discard}
	for _, opt := range opts {
		opt(&o)
	}
	if max < 1 {
		max = 1
	}
	p := &PlanePool[T]{
		max:    max,
		policy: o.policy,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// prewarm allocates count buffers of n elements straight into the free list
func (p *PlanePool[T]) prewarm(count, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < count && p.live < p.max; i++ {
		p.free = append(p.free, make([]T, n))
		p.live++
		p.allocations++
	}
}

// TryGet acquires a buffer for width*height elements without blocking.
// It returns nil when the pool is exhausted at its bound or the size is
// not positive.
func (p *PlanePool[T]) TryGet(width, height int) *Buffer[T] {
	if width <= 0 || height <= 0 {
		return nil
	}
	n := width * height

	p.mu.Lock()
	pix := p.tryGetLocked(n)
	p.mu.Unlock()

	if pix == nil {
		return nil
	}
	return &Buffer[T]{pix: pix[:n], pool: p}
}

// Get acquires a buffer for width*height elements, blocking until one is
// released if the pool is exhausted at its bound. It returns nil when the
// size is not positive.
func (p *PlanePool[T]) Get(width, height int) *Buffer[T] {
	b, _ := p.GetContext(context.Background(), width, height)
	return b
}

// GetContext is Get with cancellation. It returns ctx.Err() if the context
// ends before a buffer becomes available.
func (p *PlanePool[T]) GetContext(ctx context.Context, width, height int) (*Buffer[T], error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bitmap: invalid buffer size %dx%d", width, height)
	}
	n := width * height

	// Wake waiters on cancellation so they can observe ctx.Err()
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			// A put may have signalled this waiter; hand the wakeup on
			if len(p.free) > 0 || p.live < p.max {
				p.cond.Signal()
			}
			return nil, err
		}
		if pix := p.tryGetLocked(n); pix != nil {
			return &Buffer[T]{pix: pix[:n], pool: p}, nil
		}
		p.waits++
		p.cond.Wait()
	}
}

// tryGetLocked implements one non-blocking acquisition attempt.
// Caller must hold p.mu.
func (p *PlanePool[T]) tryGetLocked(n int) []T {
	if last := len(p.free) - 1; last >= 0 {
		pix := p.free[last]
		p.free[last] = nil
		p.free = p.free[:last]

		if len(pix) >= n {
			p.reuses++
			return pix
		}

		p.evictions++
		if p.policy == Grow {
			p.allocations++
			return make([]T, n)
		}
		// Discard: the stale buffer leaves the pool entirely
		p.live--
	}

	if p.live < p.max {
		p.live++
		p.allocations++
		return make([]T, n)
	}
	return nil
}

// put returns a backing array to the free list and wakes one waiter
func (p *PlanePool[T]) put(pix []T) {
	p.mu.Lock()
	p.free = append(p.free, pix[:cap(pix)])
	p.mu.Unlock()
	p.cond.Signal()
}

// FreePooled drops every buffer currently in the free list. Checked-out
// buffers are unaffected and return to the pool as usual. Returns the number
// of buffers dropped.
func (p *PlanePool[T]) FreePooled() int {
	p.mu.Lock()
	n := len(p.free)
	p.live -= n
	p.free = nil
	p.mu.Unlock()

	if n > 0 {
		// Capacity opened up: waiters may now allocate
		p.cond.Broadcast()
	}
	return n
}

// Stats returns a snapshot of the pool counters
func (p *PlanePool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Max:         p.max,
		Live:        p.live,
		Free:        len(p.free),
		Outstanding: p.live - len(p.free),
		Allocations: p.allocations,
		Reuses:      p.reuses,
		Evictions:   p.evictions,
		Waits:       p.waits,
	}
}

// Buffer is the backing storage of one bitmap plane. A pooled buffer is
// owned by exactly one bitmap at a time and goes back to its pool on
// Release; an unpooled buffer is simply left to the garbage collector.
type Buffer[T Element] struct {
	pix      []T
	pool     *PlanePool[T]
	released atomic.Bool
}

// ownedBuffer wraps freshly allocated storage that belongs to no pool
func ownedBuffer[T Element](n int) *Buffer[T] {
	return &Buffer[T]{pix: make([]T, n)}
}

// Pix returns the element slice (exactly width*height long)
func (b *Buffer[T]) Pix() []T {
	return b.pix
}

// Bytes returns the elements viewed as raw bytes
func (b *Buffer[T]) Bytes() []byte {
	return asBytes(b.pix)
}

// Pooled reports whether the buffer returns to a pool on Release
func (b *Buffer[T]) Pooled() bool {
	return b.pool != nil
}

// Release hands the storage back to its pool. Safe to call more than once;
// only the first call has an effect. The slice from Pix must not be used
// afterwards.
func (b *Buffer[T]) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	if b.pool == nil {
		b.pix = nil
		return
	}
	pix := b.pix
	b.pix = nil
	b.pool.put(pix)
	slog.Debug("bitmap: buffer released to pool", "elements", len(pix))
}
