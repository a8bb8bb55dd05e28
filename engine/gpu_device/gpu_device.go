package gpu_device

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/cogentcore/webgpu/wgpu"
)

// gpuDevice implements the GPUDevice interface.
type gpuDevice struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	released bool

	label                string
	forceFallbackAdapter bool
}

// GPUDevice owns a WebGPU device without a surface. It exists to back the buffer pool with
// GPU memory that a separately owned renderer binds as vertex input.
type GPUDevice interface {
	// Device returns the WebGPU device.
	//
	// Returns:
	//   - *wgpu.Device: the device
	Device() *wgpu.Device

	// Queue returns the device queue.
	//
	// Returns:
	//   - *wgpu.Queue: the queue
	Queue() *wgpu.Queue

	// Allocator returns a buffer pool allocator that creates buffers on this device.
	//
	// Returns:
	//   - buffer_pool.Allocator: the allocator
	Allocator() buffer_pool.Allocator

	// Release frees the queue, device, adapter and instance. Safe to call multiple times.
	// Buffers allocated from the device must be released first.
	Release()
}

var _ GPUDevice = &gpuDevice{}

// NewGPUDevice requests an adapter and a device with the default limits.
//
// Parameters:
//   - options: functional options for device configuration
//
// Returns:
//   - GPUDevice: the device
//   - error: error if no adapter or device is available
func NewGPUDevice(options ...GPUDeviceBuilderOption) (GPUDevice, error) {
	g := &gpuDevice{
		mu:    &sync.Mutex{},
		label: "Attractor",
	}
	for _, opt := range options {
		opt(g)
	}

	g.instance = wgpu.CreateInstance(nil)
	a, err := g.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: g.forceFallbackAdapter,
	})
	if err != nil {
		g.instance.Release()
		return nil, fmt.Errorf("gpu_device: request adapter: %w", err)
	}
	g.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: g.label + " Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		g.adapter.Release()
		g.instance.Release()
		return nil, fmt.Errorf("gpu_device: request device: %w", err)
	}
	g.device = d
	g.queue = d.GetQueue()
	return g, nil
}

func (g *gpuDevice) Device() *wgpu.Device {
	return g.device
}

func (g *gpuDevice) Queue() *wgpu.Queue {
	return g.queue
}

func (g *gpuDevice) Allocator() buffer_pool.Allocator {
	return buffer_pool.NewWGPUAllocator(g.device, g.queue, g.label)
}

func (g *gpuDevice) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	g.queue.Release()
	g.device.Release()
	g.adapter.Release()
	g.instance.Release()
}
