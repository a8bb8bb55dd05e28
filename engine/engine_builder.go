package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithProfiler sets the profiler the engine ticks, typically the same one the compute cache reports to.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the animation rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target frames per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithFrameCount sets the animation length; the frame wraps to 0 after the last frame.
// Pass 0 to advance forever.
//
// Parameters:
//   - frames: the number of frames in the animation
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameCount(frames uint64) EngineBuilderOption {
	return func(e *engine) {
		e.frameCount = frames
	}
}

// WithPaused starts the engine with frame advancement stopped.
//
// Parameters:
//   - paused: true to hold the starting frame
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPaused(paused bool) EngineBuilderOption {
	return func(e *engine) {
		e.paused.Store(paused)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default 60).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}
