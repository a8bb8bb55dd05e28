package compute_cache

import (
	"context"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
)

// ComputeCacheBuilderOption is a functional option for configuring a ComputeCache during construction.
type ComputeCacheBuilderOption func(*computeCache)

// WithProfiler is an option builder that reports task outcomes to p.
//
// Parameters:
//   - p: the profiler receiving installed/discarded/cancelled/failed counts
//
// Returns:
//   - ComputeCacheBuilderOption: a function that applies the profiler to a cache
func WithProfiler(p *profiler.Profiler) ComputeCacheBuilderOption {
	return func(c *computeCache) {
		c.profiler = p
	}
}

// WithStartFrame is an option builder that sets the initial current frame.
//
// Parameters:
//   - frame: the initial frame
//
// Returns:
//   - ComputeCacheBuilderOption: a function that applies the frame to a cache
func WithStartFrame(frame common.FrameID) ComputeCacheBuilderOption {
	return func(c *computeCache) {
		c.currentFrame.Store(uint64(frame))
	}
}

// RequestOption is a functional option for one BuffersForCurrentFrame call.
type RequestOption func(*request)

// request collects the per-call options of BuffersForCurrentFrame.
type request struct {
	ctx         context.Context
	onStart     func()
	onProgress  func(float64)
	onFinish    func(cancelled bool, err error)
	synchronous bool
}

// WithOnStart is an option builder that sets the callback fired once before the task's first iteration.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - RequestOption: a function that applies the callback to a request
func WithOnStart(fn func()) RequestOption {
	return func(r *request) {
		r.onStart = fn
	}
}

// WithProgress is an option builder that sets the progress callback, receiving a fraction in [0, 1].
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - RequestOption: a function that applies the callback to a request
func WithProgress(fn func(fraction float64)) RequestOption {
	return func(r *request) {
		r.onProgress = fn
	}
}

// WithOnFinish is an option builder that sets the completion callback.
// It fires exactly once per launched task: cancelled is true when the task was dropped,
// cancelled or its result discarded as stale; err is non-nil when the task failed.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - RequestOption: a function that applies the callback to a request
func WithOnFinish(fn func(cancelled bool, err error)) RequestOption {
	return func(r *request) {
		r.onFinish = fn
	}
}

// WithSynchronous is an option builder that runs the recompute inline on the calling goroutine.
//
// Parameters:
//   - sync: true to block until the result is installed
//
// Returns:
//   - RequestOption: a function that applies the mode to a request
func WithSynchronous(sync bool) RequestOption {
	return func(r *request) {
		r.synchronous = sync
	}
}

// WithContext is an option builder that sets the context cancelling a synchronous run.
//
// Parameters:
//   - ctx: the context
//
// Returns:
//   - RequestOption: a function that applies the context to a request
func WithContext(ctx context.Context) RequestOption {
	return func(r *request) {
		if ctx != nil {
			r.ctx = ctx
		}
	}
}
