package compute

import (
	"context"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/attractor"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/chewxy/math32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Carmen-Shannon/oxy-attractors/engine/compute")

// BufferPair is one chunk of compute output: positions (3 float32 per vertex) and colors
// (4 float32 per vertex) with equal element counts.
type BufferPair struct {
	Positions *buffer_pool.BigBuffer
	Colors    *buffer_pool.BigBuffer
}

// Count returns the number of vertices in the pair.
func (p BufferPair) Count() int {
	if p.Positions == nil {
		return 0
	}
	return p.Positions.Count()
}

// Result is the output of one ComputeTask run.
// Each buffer in Pairs carries one retain owned by whoever receives the Result.
type Result struct {
	// Frame is the frame the task computed.
	Frame common.FrameID
	// Pairs are the flushed chunks in iteration order.
	Pairs []BufferPair
	// Vertices is the total number of vertices across Pairs.
	Vertices int
	// Cancelled is true when the run stopped early; Pairs then holds what was flushed so far.
	Cancelled bool
}

// Release gives every buffer in the result back to pool.
func (r Result) Release(pool buffer_pool.BufferPool) {
	for _, pair := range r.Pairs {
		pool.Release(pair.Positions)
		pool.Release(pair.Colors)
	}
}

// computeTask is the implementation of the ComputeTask interface.
type computeTask struct {
	snapshot *attractor.Snapshot
	frame    common.FrameID
	pool     buffer_pool.BufferPool

	onStart         func()
	onProgress      func(float64)
	progressEpsilon float64

	cancelled atomic.Bool
	started   atomic.Bool
}

// ComputeTask evaluates an attractor formula for one immutable snapshot and one frame,
// writing the vertices into buffers lent by a BufferPool.
//
// Results are a pure function of (snapshot, frame): every parameter is resolved once, up front.
// Cancellation is cooperative and checked at buffer flush boundaries.
type ComputeTask interface {
	// Frame returns the frame this task computes.
	//
	// Returns:
	//   - common.FrameID: the target frame
	Frame() common.FrameID

	// Snapshot returns the attractor snapshot this task computes.
	//
	// Returns:
	//   - *attractor.Snapshot: the snapshot
	Snapshot() *attractor.Snapshot

	// Run executes the task on the calling goroutine.
	// On success every flushed buffer pair is returned with one retain held for the caller.
	// On failure nothing is returned and every buffer obtained so far has been released.
	// On cancellation the pairs flushed so far are returned with Cancelled set.
	//
	// Parameters:
	//   - ctx: cancels the task at the next flush boundary when done
	//
	// Returns:
	//   - Result: the computed buffers
	//   - error: a *ConfigError, or an error wrapping buffer_pool.ErrAllocationFailed
	Run(ctx context.Context) (Result, error)

	// Cancel requests cooperative cancellation. A task cancelled before it starts does no work.
	Cancel()

	// Cancelled reports whether Cancel has been called.
	Cancelled() bool

	// Started reports whether Run has begun iterating.
	Started() bool
}

var _ ComputeTask = &computeTask{}

// NewComputeTask creates a ComputeTask. Panics if snapshot or pool is nil.
//
// Parameters:
//   - snapshot: the attractor snapshot to evaluate
//   - frame: the frame at which parameters are resolved
//   - pool: the pool providing output buffers
//   - options: functional options (callbacks, progress epsilon)
//
// Returns:
//   - ComputeTask: the new task
func NewComputeTask(snapshot *attractor.Snapshot, frame common.FrameID, pool buffer_pool.BufferPool, options ...ComputeTaskBuilderOption) ComputeTask {
	if snapshot == nil {
		panic("compute: NewComputeTask requires a non-nil snapshot")
	}
	if pool == nil {
		panic("compute: NewComputeTask requires a non-nil buffer pool")
	}
	t := &computeTask{
		snapshot:        snapshot,
		frame:           frame,
		pool:            pool,
		progressEpsilon: DefaultProgressEpsilon,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *computeTask) Frame() common.FrameID {
	return t.frame
}

func (t *computeTask) Snapshot() *attractor.Snapshot {
	return t.snapshot
}

func (t *computeTask) Cancel() {
	t.cancelled.Store(true)
}

func (t *computeTask) Cancelled() bool {
	return t.cancelled.Load()
}

func (t *computeTask) Started() bool {
	return t.started.Load()
}

func (t *computeTask) stopRequested(ctx context.Context) bool {
	return t.cancelled.Load() || ctx.Err() != nil
}

// resolved holds every input of the iteration, fixed for the whole run.
type resolved struct {
	formula    attractor.Formula
	coeffs     attractor.Coefficients
	iterations int64
	skip       int64
	start      attractor.Point
	coloring   attractor.Coloring
}

func (t *computeTask) resolve() (resolved, error) {
	var r resolved

	f, err := attractor.LookupFormula(t.snapshot.Formula())
	if err != nil {
		return r, &ConfigError{Parameter: "formula", Reason: "not registered", Err: err}
	}
	r.formula = f

	values := make(map[string]parameter.Value, len(attractor.Requirements()))
	for _, req := range attractor.Requirements() {
		v, ok := t.snapshot.ValueAt(req.Name, t.frame)
		if !ok {
			return r, &ConfigError{Parameter: req.Name, Reason: "missing"}
		}
		if v.Kind() != req.Kind {
			return r, &ConfigError{Parameter: req.Name, Reason: "is " + v.Kind().String() + ", want " + req.Kind.String(), Err: parameter.ErrKindMismatch}
		}
		values[req.Name] = v
	}

	r.coeffs = attractor.Coefficients{
		A: float32(values[attractor.ParamA].Float()),
		B: float32(values[attractor.ParamB].Float()),
		C: float32(values[attractor.ParamC].Float()),
		D: float32(values[attractor.ParamD].Float()),
	}
	r.iterations = values[attractor.ParamIterations].Int()
	if r.iterations < 0 {
		return r, &ConfigError{Parameter: attractor.ParamIterations, Reason: "must not be negative"}
	}
	r.skip = max(values[attractor.ParamSkipIterations].Int(), 0)

	r.start = attractor.Point{0.1, 0.1, 0.1}
	for i, name := range []string{attractor.ParamX0, attractor.ParamY0, attractor.ParamZ0} {
		if v, ok := t.snapshot.ValueAt(name, t.frame); ok {
			r.start[i] = float32(v.Float())
		}
	}

	r.coloring = t.snapshot.Coloring()
	return r, nil
}

func (t *computeTask) Run(ctx context.Context) (result Result, err error) {
	result.Frame = t.frame

	ctx, span := tracer.Start(ctx, "compute.Run", trace.WithAttributes(
		attribute.String("attractor.id", t.snapshot.ID().String()),
		attribute.Int64("frame", int64(t.frame)),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("vertices", result.Vertices),
			attribute.Int("buffer_pairs", len(result.Pairs)),
			attribute.Bool("cancelled", result.Cancelled),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	in, err := t.resolve()
	if err != nil {
		return result, err
	}

	if t.stopRequested(ctx) {
		result.Cancelled = true
		return result, nil
	}

	t.started.Store(true)
	if t.onStart != nil {
		t.onStart()
	}

	retainedTotal := max(in.iterations-in.skip, 0)
	capacity := int64(t.pool.Capacity(common.ColorStride))
	chunk := min(capacity, retainedTotal)
	positions := make([]float32, 0, chunk*common.PositionComponents)
	colors := make([]float32, 0, chunk*common.ColorComponents)

	flush := func() error {
		if len(positions) == 0 {
			return nil
		}
		pair, err := t.flush(positions, colors)
		if err != nil {
			return err
		}
		result.Pairs = append(result.Pairs, pair)
		result.Vertices += pair.Count()
		positions = positions[:0]
		colors = colors[:0]
		return nil
	}

	fail := func(err error) (Result, error) {
		result.Release(t.pool)
		return Result{Frame: t.frame}, err
	}

	depthSpan := float32(max(retainedTotal-1, 1))
	lastReported := 0.0
	p := in.start
	for i := int64(0); i < in.iterations; i++ {
		next := in.formula.Step(p, in.coeffs)

		if i >= in.skip {
			progress := float32(i-in.skip) / depthSpan
			pos := next
			if in.formula.Planar() {
				pos[2] = progress*2 - 1
			}
			dx, dy, dz := next[0]-p[0], next[1]-p[1], next[2]-p[2]
			speed := math32.Sqrt(dx*dx + dy*dy + dz*dz)
			c := in.coloring.ColorFor(progress, speed)

			positions = append(positions, pos[0], pos[1], pos[2])
			colors = append(colors, c[0], c[1], c[2], c[3])

			if int64(len(positions)/common.PositionComponents) >= capacity {
				if err := flush(); err != nil {
					return fail(err)
				}
				if t.stopRequested(ctx) {
					result.Cancelled = true
					return result, nil
				}
			}
		}
		p = next

		if t.onProgress != nil {
			done := float64(i+1) / float64(in.iterations)
			if done-lastReported > t.progressEpsilon || i+1 == in.iterations {
				lastReported = done
				t.onProgress(done)
			}
		}
	}

	if err := flush(); err != nil {
		return fail(err)
	}
	return result, nil
}

// flush copies one accumulator chunk into a freshly lent buffer pair.
func (t *computeTask) flush(positions, colors []float32) (BufferPair, error) {
	posBuf, err := t.pool.GetBuffer()
	if err != nil {
		return BufferPair{}, err
	}
	colBuf, err := t.pool.GetBuffer()
	if err != nil {
		t.pool.Release(posBuf)
		return BufferPair{}, err
	}
	pair := BufferPair{Positions: posBuf, Colors: colBuf}

	if err := posBuf.WriteFloat32(positions, common.PositionComponents); err != nil {
		t.pool.Release(posBuf)
		t.pool.Release(colBuf)
		return BufferPair{}, err
	}
	if err := colBuf.WriteFloat32(colors, common.ColorComponents); err != nil {
		t.pool.Release(posBuf)
		t.pool.Release(colBuf)
		return BufferPair{}, err
	}
	return pair, nil
}
