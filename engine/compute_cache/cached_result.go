package compute_cache

import (
	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/compute"
)

// CachedResult is the most recently published compute output for one frame.
// It is immutable once installed. The cache holds one retain on every buffer and gives it
// back when the result is superseded; readers that keep buffers across an asynchronous GPU
// submission must hold their own retain (see ComputeCache.AcquireCurrentResult).
type CachedResult struct {
	// Frame is the frame the result was computed for.
	Frame common.FrameID
	// Pairs are the position/color buffer pairs in iteration order.
	Pairs []compute.BufferPair
	// Vertices is the total vertex count across Pairs.
	Vertices int
	// Sequence is the submission sequence number of the task that produced the result.
	Sequence uint64

	pool buffer_pool.BufferPool
}

func newCachedResult(res compute.Result, seq uint64, pool buffer_pool.BufferPool) *CachedResult {
	return &CachedResult{
		Frame:    res.Frame,
		Pairs:    res.Pairs,
		Vertices: res.Vertices,
		Sequence: seq,
		pool:     pool,
	}
}

// Retain adds one retain to every buffer of the result.
func (r *CachedResult) Retain() {
	for _, pair := range r.Pairs {
		r.pool.Retain(pair.Positions)
		r.pool.Retain(pair.Colors)
	}
}

// Release gives one retain of every buffer back to the pool.
func (r *CachedResult) Release() {
	for _, pair := range r.Pairs {
		r.pool.Release(pair.Positions)
		r.pool.Release(pair.Colors)
	}
}

// VertexCount returns the total number of vertices across all pairs.
func (r *CachedResult) VertexCount() int {
	if r == nil {
		return 0
	}
	return r.Vertices
}
