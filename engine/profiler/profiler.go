package profiler

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
)

// Counters is a point-in-time copy of the compute outcome counters.
type Counters struct {
	Installed int64
	Discarded int64
	Cancelled int64
	Failed    int64
	Vertices  int64
}

// Profiler tracks frame rate, memory statistics and compute task outcomes for performance monitoring.
// Outputs stats to the log at a configurable interval.
// The Record* methods are safe to call from any goroutine; Tick must be called from a single goroutine.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	installed atomic.Int64
	discarded atomic.Int64
	cancelled atomic.Int64
	failed    atomic.Int64
	vertices  atomic.Int64

	poolStats func() buffer_pool.Stats
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to further configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		frameCount:     0,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// RecordInstalled counts a compute result that was installed into the cache.
//
// Parameters:
//   - vertices: the number of vertices the result holds
func (p *Profiler) RecordInstalled(vertices int) {
	p.installed.Add(1)
	p.vertices.Add(int64(vertices))
}

// RecordDiscarded counts a compute result that finished for a frame that was no longer current.
func (p *Profiler) RecordDiscarded() {
	p.discarded.Add(1)
}

// RecordCancelled counts a compute task that was dropped from the queue or stopped early.
func (p *Profiler) RecordCancelled() {
	p.cancelled.Add(1)
}

// RecordFailed counts a compute task that failed with a configuration or allocation error.
func (p *Profiler) RecordFailed() {
	p.failed.Add(1)
}

// Counters returns the cumulative compute outcome counters.
//
// Returns:
//   - Counters: the current counter values
func (p *Profiler) Counters() Counters {
	return Counters{
		Installed: p.installed.Load(),
		Discarded: p.discarded.Load(),
		Cancelled: p.cancelled.Load(),
		Failed:    p.failed.Load(),
		Vertices:  p.vertices.Load(),
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory,
// compute task outcomes and, when a pool is attached, the pool's clean/dirty set sizes.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// PauseNs is a circular buffer of the last 256 GC pauses
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		c := p.Counters()
		if p.poolStats != nil {
			s := p.poolStats()
			log.Printf("[Profiler] Compute: installed %d | discarded %d | cancelled %d | failed %d | vertices %d | Pool: clean %d, dirty %d, allocated %d",
				c.Installed, c.Discarded, c.Cancelled, c.Failed, c.Vertices, s.Clean, s.Dirty, s.Allocated)
		} else {
			log.Printf("[Profiler] Compute: installed %d | discarded %d | cancelled %d | failed %d | vertices %d",
				c.Installed, c.Discarded, c.Cancelled, c.Failed, c.Vertices)
		}

		p.frameCount = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
