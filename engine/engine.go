package engine

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/compute_cache"
	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
)

// engine implements the Engine interface.
// Coordinates the animation tick and render threads around one compute cache.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	paused  atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	cache compute_cache.ComputeCache
	pool  buffer_pool.BufferPool

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(frame common.FrameID, deltaTime float32)
	renderCallback func(result *compute_cache.CachedResult, deltaTime float32)

	frameCount uint64 // animation length in frames; 0 = never wrap

	renderFrameLimit atomic.Int64 // minimum frame duration in nanoseconds; 0 = uncapped
}

// Engine drives an attractor animation without a window.
// The tick loop advances the cache's current frame at the tick rate; the render loop keeps
// the cache fed with asynchronous requests and hands the current result to the render callback.
type Engine interface {
	// Cache returns the compute cache the engine drives.
	//
	// Returns:
	//   - compute_cache.ComputeCache: the cache
	Cache() compute_cache.ComputeCache

	// Pool returns the buffer pool compute tasks lend from.
	//
	// Returns:
	//   - buffer_pool.BufferPool: the pool
	Pool() buffer_pool.BufferPool

	// Profiler returns the engine's profiler.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the animation rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called after each frame advance.
	//
	// Parameters:
	//   - callback: function receiving the new current frame and the delta time in seconds
	SetTickCallback(callback func(frame common.FrameID, deltaTime float32))

	// SetRenderCallback registers the function called each render frame.
	// The result is retained for the duration of the call and may be nil before the first install.
	//
	// Parameters:
	//   - callback: function receiving the current result and the delta time in seconds
	SetRenderCallback(callback func(result *compute_cache.CachedResult, deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// SetPaused stops or resumes frame advancement. Rendering continues while paused.
	//
	// Parameters:
	//   - paused: true to hold the current frame
	SetPaused(paused bool)

	// Paused reports whether frame advancement is stopped.
	Paused() bool

	// Run starts the tick and render loops and blocks until Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine around a compute cache and the pool its tasks lend from.
// Panics if cache or pool is nil.
//
// Parameters:
//   - cache: the compute cache to drive
//   - pool: the pool passed to every buffer request
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(cache compute_cache.ComputeCache, pool buffer_pool.BufferPool, options ...EngineBuilderOption) Engine {
	if cache == nil {
		panic("engine: NewEngine requires a non-nil compute cache")
	}
	if pool == nil {
		panic("engine: NewEngine requires a non-nil buffer pool")
	}
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		cache:            cache,
		pool:             pool,
		engineTickRate:   time.Second / 60,
	}

	e.renderFrameLimit.Store(int64(time.Second / 60))

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithPool(pool))
	}

	return e
}

func (e *engine) Cache() compute_cache.ComputeCache {
	return e.cache
}

func (e *engine) Pool() buffer_pool.BufferPool {
	return e.pool
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Advances the cache frame, wrapping at frameCount, and fires the tick callback.
// Listens for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.paused.Load() {
				continue
			}
			frame := e.nextFrame(e.cache.CurrentFrame())
			e.cache.SetCurrentFrame(frame)

			if e.tickCallback != nil {
				e.tickCallback(frame, dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// nextFrame returns the frame after current, wrapping to 0 at frameCount.
func (e *engine) nextFrame(current common.FrameID) common.FrameID {
	next := current + 1
	if e.frameCount > 0 {
		next %= common.FrameID(e.frameCount)
	}
	return next
}

// handleRender runs the frame-limited render loop in its own goroutine.
// Each frame asks the cache for the current frame's buffers (never blocking), retains the
// installed result for the render callback and releases it afterwards.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if _, err := e.cache.BuffersForCurrentFrame(e.pool); errors.Is(err, compute_cache.ErrCacheClosed) {
				log.Printf("[Engine] compute cache closed, stopping")
				e.signalQuit()
				return
			}

			result, release := e.cache.AcquireCurrentResult()
			if e.renderCallback != nil {
				e.renderCallback(result, dt)
			}
			release()

			if e.profilingEnabled.Load() && e.profiler != nil {
				e.profiler.Tick()
			}

			if limit := time.Duration(e.renderFrameLimit.Load()); limit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := limit - elapsed; remaining > 0 {
					select {
					case <-e.quitChannel:
						return
					case <-time.After(remaining):
					}
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the animation rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(frame common.FrameID, deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(result *compute_cache.CachedResult, deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit.Store(0)
		return
	}
	e.renderFrameLimit.Store(int64(float64(time.Second) / fps))
}

func (e *engine) SetPaused(paused bool) {
	e.paused.Store(paused)
}

func (e *engine) Paused() bool {
	return e.paused.Load()
}
