package compute_cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/attractor"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/compute"
	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
)

var (
	// ErrCacheClosed is returned when requesting buffers from a closed cache.
	ErrCacheClosed = errors.New("compute_cache: cache closed")

	// ErrCancelled is returned by a synchronous request whose task was cancelled.
	ErrCancelled = errors.New("compute_cache: compute cancelled")
)

// EntryState describes the cache entry for the current frame.
type EntryState int

const (
	// StateStale means the installed result does not match the current frame or inputs.
	StateStale EntryState = iota
	// StateRecomputing means a task is queued or running.
	StateRecomputing
	// StateFresh means the installed result matches the current frame and inputs.
	StateFresh
	// StateDiscarded means the last completed task was thrown away because its frame was no longer current.
	StateDiscarded
)

// String returns the lowercase name of the state.
func (s EntryState) String() string {
	switch s {
	case StateStale:
		return "stale"
	case StateRecomputing:
		return "recomputing"
	case StateFresh:
		return "fresh"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

// Stats counts task outcomes since the cache was created.
type Stats struct {
	Installed int64
	Discarded int64
	Cancelled int64
	Failed    int64
}

// pendingTask is one launched ComputeTask plus its bookkeeping.
type pendingTask struct {
	task       compute.ComputeTask
	seq        uint64
	frame      common.FrameID
	pool       buffer_pool.BufferPool
	onFinish   func(cancelled bool, err error)
	finishOnce sync.Once
}

// finish fires the completion callback at most once. Never called with the cache mutex held.
func (p *pendingTask) finish(cancelled bool, err error) {
	if p == nil {
		return
	}
	p.finishOnce.Do(func() {
		if p.onFinish != nil {
			p.onFinish(cancelled, err)
		}
	})
}

// computeCache is the implementation of the ComputeCache interface.
type computeCache struct {
	// Lock order: mu before resultMu.
	mu      *sync.Mutex
	queued  *pendingTask
	running *pendingTask
	inline  map[*pendingTask]struct{}
	refresh bool
	seq     uint64
	closed  bool

	// failedFrame is not retried until the inputs change
	failedFrame common.FrameID
	hasFailure  bool

	resultMu     *sync.RWMutex
	result       *CachedResult
	installedSeq uint64
	resultClosed bool

	currentFrame  atomic.Uint64
	lastDiscarded atomic.Bool

	attractor attractor.Attractor
	worker    worker.DynamicWorkerPool
	profiler  *profiler.Profiler

	// slot admits one computing task at a time, whether it runs on the worker or inline
	slot chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	runWG  sync.WaitGroup

	installed atomic.Int64
	discarded atomic.Int64
	cancelled atomic.Int64
	failed    atomic.Int64
}

// ComputeCache keeps the most recent compute output for one attractor, keyed by frame,
// and schedules recomputes on a single serial worker.
//
// At most one task computes at a time, whether on the worker or inline, and at most one waits
// in the queue. Submitting a new request
// replaces a queued task that has not started; a running task is never preempted, and its
// result is discarded on completion if its frame is no longer current or a newer result has
// already been installed. Readers only take the read lock; results are swapped under the write lock.
type ComputeCache interface {
	// CurrentFrame returns the frame the cache is keyed on.
	//
	// Returns:
	//   - common.FrameID: the current frame
	CurrentFrame() common.FrameID

	// SetCurrentFrame moves the cache to another frame. The installed result becomes stale
	// unless it was computed for that frame.
	//
	// Parameters:
	//   - frame: the new current frame
	SetCurrentFrame(frame common.FrameID)

	// AdvanceFrame moves the cache to the next frame.
	//
	// Returns:
	//   - common.FrameID: the new current frame
	AdvanceFrame() common.FrameID

	// RequestRefresh forces the next BuffersForCurrentFrame call to recompute.
	RequestRefresh()

	// BuffersForCurrentFrame returns the cached result for the current frame, scheduling a
	// recompute first when the entry is stale.
	//
	// Asynchronous requests never block and return whatever result is installed, which may be
	// nil or belong to another frame while the recompute is in flight. Synchronous requests
	// replace the queued task, wait for the running one to return, then run the recompute
	// inline. They return a result for the current frame or an error, never another frame's result.
	//
	// Parameters:
	//   - pool: the pool the task lends output buffers from
	//   - options: per-request callbacks and mode
	//
	// Returns:
	//   - *CachedResult: the installed result, or nil when nothing has been installed yet
	//   - error: ErrCacheClosed, ErrCancelled, or the task's failure for synchronous requests
	BuffersForCurrentFrame(pool buffer_pool.BufferPool, options ...RequestOption) (*CachedResult, error)

	// CurrentResult returns the installed result without retaining it.
	// Callers that hold the buffers across an asynchronous submission must use AcquireCurrentResult.
	//
	// Returns:
	//   - *CachedResult: the installed result, or nil
	CurrentResult() *CachedResult

	// AcquireCurrentResult retains every buffer of the installed result under the read lock.
	//
	// Returns:
	//   - *CachedResult: the installed result, or nil
	//   - func(): gives the retains back; safe to call more than once and never nil
	AcquireCurrentResult() (*CachedResult, func())

	// State returns the state of the cache entry for the current frame.
	//
	// Returns:
	//   - EntryState: the entry state
	State() EntryState

	// Stats returns the task outcome counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Close cancels queued and running work, waits for the running task to return, stops
	// the worker and releases the installed result. Safe to call multiple times.
	Close()
}

var _ ComputeCache = &computeCache{}

// NewComputeCache creates a ComputeCache for the given attractor. Panics if a is nil.
//
// Parameters:
//   - a: the attractor whose output is cached
//   - options: functional options to further configure the cache
//
// Returns:
//   - ComputeCache: the new cache
func NewComputeCache(a attractor.Attractor, options ...ComputeCacheBuilderOption) ComputeCache {
	if a == nil {
		panic("compute_cache: NewComputeCache requires a non-nil attractor")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &computeCache{
		mu:        &sync.Mutex{},
		inline:    make(map[*pendingTask]struct{}),
		resultMu:  &sync.RWMutex{},
		attractor: a,
		worker:    worker.NewDynamicWorkerPool(1, 1, time.Second),
		slot:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *computeCache) CurrentFrame() common.FrameID {
	return common.FrameID(c.currentFrame.Load())
}

func (c *computeCache) SetCurrentFrame(frame common.FrameID) {
	c.currentFrame.Store(uint64(frame))
}

func (c *computeCache) AdvanceFrame() common.FrameID {
	return common.FrameID(c.currentFrame.Add(1))
}

func (c *computeCache) RequestRefresh() {
	c.mu.Lock()
	c.refresh = true
	c.mu.Unlock()
}

func (c *computeCache) CurrentResult() *CachedResult {
	c.resultMu.RLock()
	defer c.resultMu.RUnlock()
	return c.result
}

func (c *computeCache) AcquireCurrentResult() (*CachedResult, func()) {
	c.resultMu.RLock()
	r := c.result
	if r != nil {
		r.Retain()
	}
	c.resultMu.RUnlock()

	if r == nil {
		return nil, func() {}
	}
	var once sync.Once
	return r, func() { once.Do(r.Release) }
}

func (c *computeCache) Stats() Stats {
	return Stats{
		Installed: c.installed.Load(),
		Discarded: c.discarded.Load(),
		Cancelled: c.cancelled.Load(),
		Failed:    c.failed.Load(),
	}
}

func (c *computeCache) State() EntryState {
	c.mu.Lock()
	busy := c.queued != nil || c.running != nil || len(c.inline) > 0
	refresh := c.refresh
	c.mu.Unlock()

	if busy {
		return StateRecomputing
	}
	res := c.CurrentResult()
	if res != nil && res.Frame == c.CurrentFrame() && !refresh && !c.attractor.Dirty() {
		return StateFresh
	}
	if c.lastDiscarded.Load() {
		return StateDiscarded
	}
	return StateStale
}

func (c *computeCache) BuffersForCurrentFrame(pool buffer_pool.BufferPool, options ...RequestOption) (*CachedResult, error) {
	if pool == nil {
		panic("compute_cache: BuffersForCurrentFrame requires a non-nil buffer pool")
	}
	req := &request{ctx: context.Background()}
	for _, opt := range options {
		opt(req)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}

	frame := c.CurrentFrame()
	current := c.CurrentResult()
	inputsChanged := c.attractor.Dirty() || c.refresh
	fresh := current != nil && current.Frame == frame
	stale := inputsChanged || !fresh
	if !req.synchronous && stale && !inputsChanged {
		// an in-flight task or a recorded failure already answers for this frame
		stale = !c.targetsLocked(frame) && !c.failedLocked(frame)
	}
	if !stale {
		c.mu.Unlock()
		return current, nil
	}

	c.attractor.ClearDirty()
	c.refresh = false
	c.hasFailure = false
	c.seq++
	p := &pendingTask{
		seq:      c.seq,
		frame:    frame,
		pool:     pool,
		onFinish: req.onFinish,
	}
	var taskOptions []compute.ComputeTaskBuilderOption
	if req.onStart != nil {
		taskOptions = append(taskOptions, compute.WithOnStart(req.onStart))
	}
	if req.onProgress != nil {
		taskOptions = append(taskOptions, compute.WithProgress(req.onProgress))
	}
	p.task = compute.NewComputeTask(c.attractor.Snapshot(), frame, pool, taskOptions...)

	dropped := c.cancelQueuedLocked()

	if req.synchronous {
		c.inline[p] = struct{}{}
		c.runWG.Add(1)
		c.mu.Unlock()
		dropped.finish(true, nil)
		return c.runInline(req.ctx, p)
	}

	c.queued = p
	// The queue holds at most the task stored in c.queued, which was just cleared, so this never blocks.
	c.worker.SubmitTask(worker.Task{
		ID:      int(p.seq),
		Payload: p.frame,
		Do: func() (any, error) {
			c.execute(p)
			return nil, nil
		},
	})
	c.mu.Unlock()
	dropped.finish(true, nil)
	return current, nil
}

// targetsLocked reports whether a queued, running or inline task computes frame.
func (c *computeCache) targetsLocked(frame common.FrameID) bool {
	if c.queued != nil && c.queued.frame == frame {
		return true
	}
	if c.running != nil && c.running.frame == frame {
		return true
	}
	for p := range c.inline {
		if p.frame == frame {
			return true
		}
	}
	return false
}

// failedLocked reports whether the last task for frame failed with unchanged inputs.
func (c *computeCache) failedLocked(frame common.FrameID) bool {
	return c.hasFailure && c.failedFrame == frame
}

// cancelQueuedLocked drops the queued task, if any, before it starts.
// The caller reports the returned task with finish after releasing c.mu.
func (c *computeCache) cancelQueuedLocked() *pendingTask {
	q := c.queued
	if q == nil {
		return nil
	}
	c.queued = nil
	q.task.Cancel()
	c.worker.ClearTaskQueue()
	c.recordCancelled()
	return q
}

// retryLocked makes the next request recompute when p was the latest request and produced nothing.
func (c *computeCache) retryLocked(p *pendingTask) {
	if p.seq == c.seq {
		c.refresh = true
	}
}

// execute is the worker-side body of an asynchronous task.
func (c *computeCache) execute(p *pendingTask) {
	c.mu.Lock()
	if c.queued == p {
		c.queued = nil
	}
	// a replaced or closed-over task was already cancelled and reported by cancelQueuedLocked
	if c.closed || p.task.Cancelled() {
		c.mu.Unlock()
		p.finish(true, nil)
		return
	}
	c.running = p
	c.runWG.Add(1)
	c.mu.Unlock()

	c.slot <- struct{}{}
	res, err := p.task.Run(c.ctx)
	<-c.slot
	c.runWG.Done()

	c.mu.Lock()
	c.running = nil
	c.mu.Unlock()

	c.complete(p, res, err, false)
}

// runInline runs a synchronous task on the calling goroutine once the running task, if any,
// has returned.
func (c *computeCache) runInline(ctx context.Context, p *pendingTask) (*CachedResult, error) {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		c.abandonInline(p)
		return c.CurrentResult(), fmt.Errorf("%w: frame %d: %w", ErrCancelled, p.frame, ctx.Err())
	case <-c.ctx.Done():
		c.abandonInline(p)
		return nil, ErrCacheClosed
	}

	stop := context.AfterFunc(c.ctx, p.task.Cancel)
	res, err := p.task.Run(ctx)
	stop()
	<-c.slot
	c.runWG.Done()

	c.mu.Lock()
	delete(c.inline, p)
	c.mu.Unlock()

	installed, err := c.complete(p, res, err, true)
	if err != nil {
		return c.CurrentResult(), err
	}
	if installed == nil {
		return c.CurrentResult(), fmt.Errorf("%w: frame %d", ErrCancelled, p.frame)
	}
	return installed, nil
}

// abandonInline drops a synchronous task that never got to run.
func (c *computeCache) abandonInline(p *pendingTask) {
	p.task.Cancel()
	c.runWG.Done()
	c.mu.Lock()
	delete(c.inline, p)
	c.retryLocked(p)
	c.mu.Unlock()
	c.recordCancelled()
	p.finish(true, nil)
}

// complete routes a finished task to install, discard or failure handling.
// Returns the installed result, or nil when the output was not installed.
func (c *computeCache) complete(p *pendingTask, res compute.Result, err error, synchronous bool) (*CachedResult, error) {
	if err != nil {
		c.failed.Add(1)
		if c.profiler != nil {
			c.profiler.RecordFailed()
		}
		log.Printf("[ComputeCache] frame %d: compute failed: %v", p.frame, err)
		c.mu.Lock()
		if p.seq == c.seq {
			c.failedFrame = p.frame
			c.hasFailure = true
		}
		c.mu.Unlock()
		p.finish(false, err)
		return nil, err
	}
	if res.Cancelled {
		res.Release(p.pool)
		c.mu.Lock()
		c.retryLocked(p)
		c.mu.Unlock()
		c.recordCancelled()
		p.finish(true, nil)
		return nil, nil
	}

	installed := c.install(p, res, synchronous)
	if installed == nil {
		res.Release(p.pool)
		c.discarded.Add(1)
		c.lastDiscarded.Store(true)
		if c.profiler != nil {
			c.profiler.RecordDiscarded()
		}
		log.Printf("[ComputeCache] frame %d: result discarded (current frame %d)", p.frame, c.CurrentFrame())
		p.finish(true, nil)
		return nil, nil
	}

	c.installed.Add(1)
	c.lastDiscarded.Store(false)
	if c.profiler != nil {
		c.profiler.RecordInstalled(res.Vertices)
	}
	p.finish(false, nil)
	return installed, nil
}

// install swaps res in as the current result under the write lock and releases the previous one.
// Asynchronous results are only installed for the current frame. Any result older than the
// installed one is rejected.
func (c *computeCache) install(p *pendingTask, res compute.Result, synchronous bool) *CachedResult {
	c.resultMu.Lock()
	if c.resultClosed || p.seq <= c.installedSeq || (!synchronous && p.frame != c.CurrentFrame()) {
		c.resultMu.Unlock()
		return nil
	}
	next := newCachedResult(res, p.seq, p.pool)
	previous := c.result
	c.result = next
	c.installedSeq = p.seq
	c.resultMu.Unlock()

	if previous != nil {
		previous.Release()
	}
	return next
}

func (c *computeCache) recordCancelled() {
	c.cancelled.Add(1)
	if c.profiler != nil {
		c.profiler.RecordCancelled()
	}
}

func (c *computeCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	dropped := c.cancelQueuedLocked()
	c.cancel()
	c.mu.Unlock()
	dropped.finish(true, nil)

	c.runWG.Wait()
	c.worker.Stop()

	c.resultMu.Lock()
	previous := c.result
	c.result = nil
	c.resultClosed = true
	c.resultMu.Unlock()
	if previous != nil {
		previous.Release()
	}
}
