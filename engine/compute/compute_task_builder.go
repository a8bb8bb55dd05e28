package compute

// DefaultProgressEpsilon is the smallest progress change that is reported.
const DefaultProgressEpsilon = 0.01

// ComputeTaskBuilderOption is a functional option for configuring a ComputeTask during construction.
type ComputeTaskBuilderOption func(*computeTask)

// WithProgress is an option builder that sets the progress callback.
// The callback receives iterations done / iterations total whenever it has moved by more than
// the progress epsilon, and once more at completion.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - ComputeTaskBuilderOption: a function that applies the callback to a task
func WithProgress(fn func(fraction float64)) ComputeTaskBuilderOption {
	return func(t *computeTask) {
		t.onProgress = fn
	}
}

// WithOnStart is an option builder that sets the callback fired once before the first iteration.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - ComputeTaskBuilderOption: a function that applies the callback to a task
func WithOnStart(fn func()) ComputeTaskBuilderOption {
	return func(t *computeTask) {
		t.onStart = fn
	}
}

// WithProgressEpsilon is an option builder that sets the minimum reported progress step.
//
// Parameters:
//   - eps: the epsilon in [0, 1]
//
// Returns:
//   - ComputeTaskBuilderOption: a function that applies the epsilon to a task
func WithProgressEpsilon(eps float64) ComputeTaskBuilderOption {
	return func(t *computeTask) {
		if eps >= 0 {
			t.progressEpsilon = eps
		}
	}
}
