package buffer_pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/common"
)

var (
	// ErrAllocationFailed is returned when the allocator cannot satisfy a buffer request.
	ErrAllocationFailed = errors.New("buffer_pool: allocation failed")

	// ErrPoolClosed is returned when lending from a pool after Close.
	ErrPoolClosed = errors.New("buffer_pool: pool closed")

	// ErrBufferTooLarge is returned when data does not fit into one buffer.
	ErrBufferTooLarge = errors.New("buffer_pool: data exceeds buffer capacity")
)

// DefaultSweepInterval is how often the pool reconciles its dirty set.
const DefaultSweepInterval = 5 * time.Second

// Stats is a point-in-time view of the pool's sets.
type Stats struct {
	// Clean is the number of buffers available for lending.
	Clean int
	// Dirty is the number of buffers currently lent out.
	Dirty int
	// Allocated is the number of buffers the pool owns.
	Allocated int
}

// bufferPool is the implementation of the BufferPool interface.
type bufferPool struct {
	// Lock order: cleanMu before dirtyMu.
	cleanMu *sync.RWMutex
	clean   []*BigBuffer

	dirtyMu *sync.RWMutex
	dirty   map[uint64]*BigBuffer

	allocator     Allocator
	bufferSize    uint64
	sweepInterval time.Duration

	nextID    atomic.Uint64
	allocated atomic.Int64
	closed    atomic.Bool

	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
	closeOnce   sync.Once
}

// BufferPool lends, retains and recycles large fixed-size memory blocks.
//
// Every buffer the pool owns is in exactly one of two sets: clean (available) or dirty
// (lent out). A buffer moves from dirty to clean only when its retain count reaches zero.
// A background sweep periodically recycles dirty buffers whose count already dropped to
// zero without an explicit recycle. Thread-safe for concurrent access.
type BufferPool interface {
	// GetBuffer lends a buffer with a retain count of 1, reusing a clean buffer when one
	// exists and allocating a new one otherwise.
	//
	// Returns:
	//   - *BigBuffer: the lent buffer
	//   - error: ErrAllocationFailed (wrapping the allocator error) or ErrPoolClosed
	GetBuffer() (*BigBuffer, error)

	// Retain increments the buffer's retain count.
	//
	// Parameters:
	//   - b: a buffer lent by this pool
	Retain(b *BigBuffer)

	// Release decrements the buffer's retain count and recycles it when the count reaches zero.
	//
	// Parameters:
	//   - b: a buffer lent by this pool
	Release(b *BigBuffer)

	// Recycle moves a buffer whose retain count has reached zero from the dirty set to the
	// clean set, resetting its element count and retain count. No-op for buffers that are
	// still retained or not in the dirty set.
	//
	// Parameters:
	//   - b: the buffer to recycle
	//
	// Returns:
	//   - bool: true if the buffer was recycled
	Recycle(b *BigBuffer) bool

	// Lease retains b and returns a token whose Release gives the retain back exactly once.
	//
	// Parameters:
	//   - b: a buffer lent by this pool
	//
	// Returns:
	//   - *Lease: the lease
	Lease(b *BigBuffer) *Lease

	// BufferSize returns the size of every buffer in bytes.
	BufferSize() uint64

	// Capacity returns how many elements of the given stride fit into one buffer.
	//
	// Parameters:
	//   - stride: the element size in bytes
	//
	// Returns:
	//   - int: the element capacity
	Capacity(stride int) int

	// Stats returns the current set sizes.
	Stats() Stats

	// Sweep recycles every dirty buffer whose retain count is already zero or below.
	//
	// Returns:
	//   - int: the number of buffers reclaimed
	Sweep() int

	// Close stops the background sweep and frees every clean buffer. Buffers still lent out
	// are freed when they are released. Safe to call multiple times.
	Close()
}

var _ BufferPool = &bufferPool{}

// NewBufferPool creates a BufferPool and starts its background sweep.
// Defaults: heap allocator, 512 MiB buffers, 5 second sweep interval.
// Panics if the configured buffer size cannot hold a single color record.
//
// Parameters:
//   - options: functional options to further configure the pool
//
// Returns:
//   - BufferPool: the new pool
func NewBufferPool(options ...BufferPoolBuilderOption) BufferPool {
	p := &bufferPool{
		cleanMu:       &sync.RWMutex{},
		dirtyMu:       &sync.RWMutex{},
		dirty:         make(map[uint64]*BigBuffer),
		allocator:     NewHeapAllocator(0),
		bufferSize:    common.MaxBufferBytes,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.bufferSize < common.ColorStride {
		panic(fmt.Sprintf("buffer_pool: buffer size %d cannot hold one %d byte element", p.bufferSize, common.ColorStride))
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.sweepCancel = cancel
	if p.sweepInterval > 0 {
		p.sweepWG.Add(1)
		go p.sweepLoop(ctx)
	}
	return p
}

func (p *bufferPool) GetBuffer() (*BigBuffer, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	p.cleanMu.Lock()
	p.dirtyMu.Lock()
	if n := len(p.clean); n > 0 {
		buf := p.clean[n-1]
		p.clean[n-1] = nil
		p.clean = p.clean[:n-1]
		buf.retain.Store(1)
		p.dirty[buf.id] = buf
		p.dirtyMu.Unlock()
		p.cleanMu.Unlock()
		return buf, nil
	}
	p.dirtyMu.Unlock()
	p.cleanMu.Unlock()

	alloc, err := p.allocator.Allocate(p.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	buf := &BigBuffer{
		id:       p.nextID.Add(1),
		alloc:    alloc,
		capacity: p.bufferSize,
	}
	buf.retain.Store(1)

	p.dirtyMu.Lock()
	p.dirty[buf.id] = buf
	p.allocated.Add(1)
	p.dirtyMu.Unlock()
	return buf, nil
}

func (p *bufferPool) Retain(b *BigBuffer) {
	if b == nil {
		return
	}
	b.retain.Add(1)
}

func (p *bufferPool) Release(b *BigBuffer) {
	if b == nil {
		return
	}
	if b.retain.Add(-1) <= 0 {
		p.Recycle(b)
	}
}

func (p *bufferPool) Recycle(b *BigBuffer) bool {
	if b == nil || b.retain.Load() > 0 {
		return false
	}

	p.cleanMu.Lock()
	defer p.cleanMu.Unlock()
	p.dirtyMu.Lock()
	defer p.dirtyMu.Unlock()

	if _, ok := p.dirty[b.id]; !ok {
		return false
	}
	// A concurrent Retain may have revived the buffer since the check above.
	if b.retain.Load() > 0 {
		return false
	}
	delete(p.dirty, b.id)
	b.reset()

	if p.closed.Load() {
		b.alloc.Release()
		p.allocated.Add(-1)
		return true
	}
	p.clean = append(p.clean, b)
	return true
}

func (p *bufferPool) Lease(b *BigBuffer) *Lease {
	p.Retain(b)
	return &Lease{buf: b, release: p.Release}
}

func (p *bufferPool) BufferSize() uint64 {
	return p.bufferSize
}

func (p *bufferPool) Capacity(stride int) int {
	if stride <= 0 {
		return 0
	}
	return int(p.bufferSize / uint64(stride))
}

func (p *bufferPool) Stats() Stats {
	p.cleanMu.RLock()
	defer p.cleanMu.RUnlock()
	p.dirtyMu.RLock()
	defer p.dirtyMu.RUnlock()
	return Stats{
		Clean:     len(p.clean),
		Dirty:     len(p.dirty),
		Allocated: int(p.allocated.Load()),
	}
}

func (p *bufferPool) Sweep() int {
	p.dirtyMu.RLock()
	var orphans []*BigBuffer
	for _, b := range p.dirty {
		if b.retain.Load() <= 0 {
			orphans = append(orphans, b)
		}
	}
	p.dirtyMu.RUnlock()

	reclaimed := 0
	for _, b := range orphans {
		if p.Recycle(b) {
			reclaimed++
		}
	}
	return reclaimed
}

func (p *bufferPool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.sweepCancel()
		p.sweepWG.Wait()

		p.cleanMu.Lock()
		for _, b := range p.clean {
			b.alloc.Release()
			p.allocated.Add(-1)
		}
		freed := len(p.clean)
		p.clean = nil
		p.cleanMu.Unlock()

		if outstanding := p.Stats().Dirty; outstanding > 0 {
			log.Printf("[BufferPool] closed with %d buffer(s) still lent out (%d freed)", outstanding, freed)
		}
	})
}

// sweepLoop runs Sweep at the configured interval until ctx is cancelled.
func (p *bufferPool) sweepLoop(ctx context.Context) {
	defer p.sweepWG.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}
