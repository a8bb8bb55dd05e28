package buffer_pool

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-attractors/common"
)

// BigBuffer is one fixed-capacity memory block lent out by a BufferPool.
//
// A BigBuffer is owned by its pool. Holders keep a reference plus a retain obligation and
// give it back with BufferPool.Release; they never free it. The retain counter is only
// adjusted by the pool.
type BigBuffer struct {
	id       uint64
	alloc    Allocation
	capacity uint64

	count  atomic.Int64
	stride atomic.Int32
	retain atomic.Int32
}

// ID returns the buffer's pool-unique identifier.
func (b *BigBuffer) ID() uint64 {
	return b.id
}

// ByteCapacity returns the size of the block in bytes.
func (b *BigBuffer) ByteCapacity() uint64 {
	return b.capacity
}

// Count returns the number of elements written to the buffer.
func (b *BigBuffer) Count() int {
	return int(b.count.Load())
}

// Stride returns the size in bytes of one element, or 0 if nothing has been written.
func (b *BigBuffer) Stride() int {
	return int(b.stride.Load())
}

// RetainCount returns the current retain count.
func (b *BigBuffer) RetainCount() int32 {
	return b.retain.Load()
}

// Handle returns the underlying allocation, for renderers that need the device handle.
func (b *BigBuffer) Handle() Allocation {
	return b.alloc
}

// Bytes returns a view of the written portion of the buffer.
// The view is only valid while the caller holds a retain on the buffer.
func (b *BigBuffer) Bytes() []byte {
	n := b.Count() * b.Stride()
	return b.alloc.Bytes()[:n]
}

// Float32s returns a view of the written portion of the buffer as float32 values.
// The view is only valid while the caller holds a retain on the buffer.
func (b *BigBuffer) Float32s() []float32 {
	return common.BytesToSlice[float32](b.Bytes())
}

// WriteFloat32 copies values into the buffer, publishes them to the device and sets the
// element count to len(values)/components.
//
// Parameters:
//   - values: packed element data
//   - components: the number of float32 values per element
//
// Returns:
//   - error: ErrBufferTooLarge if the data does not fit, or the device upload error
func (b *BigBuffer) WriteFloat32(values []float32, components int) error {
	if components <= 0 || len(values)%components != 0 {
		return fmt.Errorf("buffer_pool: %d values do not divide into elements of %d components", len(values), components)
	}
	raw := common.SliceToBytes(values)
	if uint64(len(raw)) > b.capacity {
		return fmt.Errorf("%w: %d bytes into a %d byte buffer", ErrBufferTooLarge, len(raw), b.capacity)
	}
	copy(b.alloc.Bytes(), raw)
	if err := b.alloc.Sync(len(raw)); err != nil {
		return fmt.Errorf("buffer_pool: upload buffer %d: %w", b.id, err)
	}
	b.stride.Store(int32(components * 4))
	b.count.Store(int64(len(values) / components))
	return nil
}

// reset clears the logical contents and the retain count. Called by the pool on recycle.
func (b *BigBuffer) reset() {
	b.count.Store(0)
	b.stride.Store(0)
	b.retain.Store(0)
}
