package buffer_pool

import (
	"fmt"
	"sync"
)

// Allocation is one block of device memory with a CPU-writable staging view.
type Allocation interface {
	// Bytes returns the CPU-writable memory backing this allocation.
	//
	// Returns:
	//   - []byte: the writable view; its length is the allocation size
	Bytes() []byte

	// Sync publishes the first n bytes of the CPU view to the device.
	// Heap allocations have nothing to publish and return nil.
	//
	// Parameters:
	//   - n: the number of leading bytes that were written
	//
	// Returns:
	//   - error: an error if the upload failed
	Sync(n int) error

	// Release frees the allocation. The allocation must not be used afterwards.
	Release()
}

// Allocator provides CPU-writable memory blocks for a BufferPool.
type Allocator interface {
	// Allocate creates a new block of byteLength bytes.
	//
	// Parameters:
	//   - byteLength: the size of the block in bytes
	//
	// Returns:
	//   - Allocation: the new block
	//   - error: an error if the request cannot be satisfied
	Allocate(byteLength uint64) (Allocation, error)
}

// heapAllocator allocates plain Go memory, optionally bounded by a byte budget.
type heapAllocator struct {
	mu     *sync.Mutex
	budget uint64
	used   uint64
}

var _ Allocator = &heapAllocator{}

// NewHeapAllocator creates an Allocator backed by the Go heap.
//
// Parameters:
//   - budget: the maximum number of bytes that may be outstanding at once; 0 means unbounded
//
// Returns:
//   - Allocator: the heap allocator
func NewHeapAllocator(budget uint64) Allocator {
	return &heapAllocator{
		mu:     &sync.Mutex{},
		budget: budget,
	}
}

func (a *heapAllocator) Allocate(byteLength uint64) (Allocation, error) {
	a.mu.Lock()
	if a.budget > 0 && a.used+byteLength > a.budget {
		used := a.used
		a.mu.Unlock()
		return nil, fmt.Errorf("heap budget exhausted: %d of %d bytes in use, %d requested", used, a.budget, byteLength)
	}
	a.used += byteLength
	a.mu.Unlock()

	return &heapAllocation{
		data: make([]byte, byteLength),
		free: func() {
			a.mu.Lock()
			a.used -= byteLength
			a.mu.Unlock()
		},
	}, nil
}

type heapAllocation struct {
	data []byte
	once sync.Once
	free func()
}

func (h *heapAllocation) Bytes() []byte {
	return h.data
}

func (h *heapAllocation) Sync(int) error {
	return nil
}

func (h *heapAllocation) Release() {
	h.once.Do(func() {
		h.data = nil
		h.free()
	})
}
