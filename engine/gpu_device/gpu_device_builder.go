package gpu_device

// GPUDeviceBuilderOption is a functional option for configuring a GPUDevice.
type GPUDeviceBuilderOption func(*gpuDevice)

// WithLabel sets the label prefix used for the device and every buffer allocated on it.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - GPUDeviceBuilderOption: option function to apply
func WithLabel(label string) GPUDeviceBuilderOption {
	return func(g *gpuDevice) {
		if label != "" {
			g.label = label
		}
	}
}

// WithFallbackAdapter forces the software fallback adapter, for machines without a GPU.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - GPUDeviceBuilderOption: option function to apply
func WithFallbackAdapter(force bool) GPUDeviceBuilderOption {
	return func(g *gpuDevice) {
		g.forceFallbackAdapter = force
	}
}
