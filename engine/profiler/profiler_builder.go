package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often Tick logs statistics.
// Values <= 0 keep the default of one second.
//
// Parameters:
//   - d: the logging interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithPool attaches a buffer pool whose set sizes are logged on every report.
//
// Parameters:
//   - pool: the pool to report on
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithPool(pool buffer_pool.BufferPool) ProfilerBuilderOption {
	return func(p *Profiler) {
		if pool != nil {
			p.poolStats = pool.Stats
		}
	}
}
