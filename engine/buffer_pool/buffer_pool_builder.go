package buffer_pool

import (
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/common"
)

// BufferPoolBuilderOption is a functional option for configuring a BufferPool during construction.
type BufferPoolBuilderOption func(*bufferPool)

// WithAllocator is an option builder that sets the allocator used for new buffers.
// A nil allocator leaves the default heap allocator in place.
//
// Parameters:
//   - a: the allocator
//
// Returns:
//   - BufferPoolBuilderOption: a function that applies the allocator to a pool
func WithAllocator(a Allocator) BufferPoolBuilderOption {
	return func(p *bufferPool) {
		if a != nil {
			p.allocator = a
		}
	}
}

// WithBufferSize is an option builder that sets the size of every buffer in bytes.
// Sizes above common.MaxBufferBytes are clamped to it; 0 keeps the default.
//
// Parameters:
//   - bytes: the buffer size
//
// Returns:
//   - BufferPoolBuilderOption: a function that applies the buffer size to a pool
func WithBufferSize(bytes uint64) BufferPoolBuilderOption {
	return func(p *bufferPool) {
		if bytes == 0 {
			return
		}
		p.bufferSize = min(bytes, common.MaxBufferBytes)
	}
}

// WithSweepInterval is an option builder that sets how often the dirty set is reconciled.
// Pass 0 or a negative duration to disable the background sweep.
//
// Parameters:
//   - d: the sweep interval
//
// Returns:
//   - BufferPoolBuilderOption: a function that applies the interval to a pool
func WithSweepInterval(d time.Duration) BufferPoolBuilderOption {
	return func(p *bufferPool) {
		p.sweepInterval = d
	}
}
