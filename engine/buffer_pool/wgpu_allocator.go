package buffer_pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUAllocation is an Allocation backed by a WebGPU vertex buffer plus a CPU staging copy.
// Renderers type-assert BigBuffer.Handle() to *WGPUAllocation to bind the GPU buffer.
type WGPUAllocation struct {
	queue   *wgpu.Queue
	buffer  *wgpu.Buffer
	staging []byte
	once    sync.Once
}

// Buffer returns the GPU buffer.
func (w *WGPUAllocation) Buffer() *wgpu.Buffer {
	return w.buffer
}

func (w *WGPUAllocation) Bytes() []byte {
	return w.staging
}

func (w *WGPUAllocation) Sync(n int) error {
	if n <= 0 {
		return nil
	}
	if n > len(w.staging) {
		return fmt.Errorf("sync of %d bytes exceeds buffer size %d", n, len(w.staging))
	}
	// WebGPU requires write sizes to be a multiple of 4.
	n = min((n+3)&^3, len(w.staging))
	if err := w.queue.WriteBuffer(w.buffer, 0, w.staging[:n]); err != nil {
		return fmt.Errorf("write %d bytes to vertex buffer: %w", n, err)
	}
	return nil
}

func (w *WGPUAllocation) Release() {
	w.once.Do(func() {
		w.buffer.Release()
		w.staging = nil
	})
}

// wgpuAllocator allocates vertex buffers on a WebGPU device.
type wgpuAllocator struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	label  string
	serial atomic.Uint64
}

var _ Allocator = &wgpuAllocator{}

// NewWGPUAllocator creates an Allocator that creates Vertex|Storage|CopyDst buffers on device
// and uploads staged data through queue. Panics if device or queue is nil.
//
// Parameters:
//   - device: the WebGPU device
//   - queue: the device's queue
//   - label: a label prefix for created buffers
//
// Returns:
//   - Allocator: the WebGPU allocator
func NewWGPUAllocator(device *wgpu.Device, queue *wgpu.Queue, label string) Allocator {
	if device == nil || queue == nil {
		panic("buffer_pool: NewWGPUAllocator requires a non-nil device and queue")
	}
	return &wgpuAllocator{
		device: device,
		queue:  queue,
		label:  label,
	}
}

func (a *wgpuAllocator) Allocate(byteLength uint64) (Allocation, error) {
	buf, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            fmt.Sprintf("%s Big Buffer %d", a.label, a.serial.Add(1)),
		Size:             byteLength,
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &WGPUAllocation{
		queue:   a.queue,
		buffer:  buf,
		staging: make([]byte, byteLength),
	}, nil
}
