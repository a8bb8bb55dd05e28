package compute_cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/attractor"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/compute"
	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBufferSize = 256 * common.ColorStride

func newTestPool(t *testing.T) buffer_pool.BufferPool {
	t.Helper()
	p := buffer_pool.NewBufferPool(buffer_pool.WithBufferSize(testBufferSize), buffer_pool.WithSweepInterval(0))
	t.Cleanup(p.Close)
	return p
}

func newTestCache(t *testing.T, options ...ComputeCacheBuilderOption) (ComputeCache, attractor.Attractor) {
	t.Helper()
	a := attractor.NewAttractor("cache", attractor.WithCoefficients(1.4, -2.3, 2.4, -2.1, 1000, 100))
	require.NoError(t, a.SetParameterAnimation(attractor.ParamA, parameter.NewAnimationSequence(
		parameter.KeyFrame{Value: parameter.NewFloat(1.0), Duration: 100},
		parameter.KeyFrame{Value: parameter.NewFloat(2.0), Duration: 100},
	)))
	c := NewComputeCache(a, options...)
	t.Cleanup(c.Close)
	return c, a
}

// finished collects onFinish outcomes.
type finished struct {
	cancelled bool
	err       error
}

func finishChan() (chan finished, RequestOption) {
	ch := make(chan finished, 1)
	return ch, WithOnFinish(func(cancelled bool, err error) {
		ch <- finished{cancelled: cancelled, err: err}
	})
}

func waitFinished(t *testing.T, ch chan finished) finished {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(5 * time.Second):
		require.FailNow(t, "task did not finish")
		return finished{}
	}
}

// gate blocks the task that receives it inside its start callback until opened.
type gate struct {
	entered chan struct{}
	open    chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), open: make(chan struct{})}
}

func (g *gate) option() RequestOption {
	return WithOnStart(func() {
		close(g.entered)
		<-g.open
	})
}

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "task did not start")
	}
}

func TestSynchronousOrdering(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)

	var seen []common.FrameID
	for frame := common.FrameID(0); frame < 20; frame++ {
		c.SetCurrentFrame(frame)
		res, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
		require.NoError(t, err)
		require.NotNil(t, res)
		seen = append(seen, res.Frame)
		assert.Equal(t, 900, res.VertexCount())
		assert.Equal(t, StateFresh, c.State())
	}
	for i, frame := range seen {
		assert.Equal(t, common.FrameID(i), frame)
	}
	assert.Equal(t, int64(20), c.Stats().Installed)

	// only the installed result holds buffers
	assert.Equal(t, 8, pool.Stats().Dirty)
}

func TestFreshEntryIsReturnedWithoutRecompute(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)

	first, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)

	second, err := c.BuffersForCurrentFrame(pool)
	require.NoError(t, err)
	assert.Same(t, first, second)

	third, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	assert.Same(t, first, third)
	assert.Equal(t, int64(1), c.Stats().Installed)
}

func TestRefreshAndDirtyForceRecompute(t *testing.T) {
	pool := newTestPool(t)
	c, a := newTestCache(t)

	first, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	assert.False(t, a.Dirty(), "launching a recompute clears the dirty flag")

	c.RequestRefresh()
	assert.Equal(t, StateStale, c.State())
	second, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	require.NoError(t, a.SetParameterValue(attractor.ParamB, -2.0))
	assert.Equal(t, StateStale, c.State())
	third, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	assert.NotSame(t, second, third)

	assert.Equal(t, int64(3), c.Stats().Installed)
	assert.Equal(t, 8, pool.Stats().Dirty, "superseded results are released")
}

func TestAsyncInstallsForCurrentFrame(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)
	done, onFinish := finishChan()

	var progress atomic.Int64
	res, err := c.BuffersForCurrentFrame(pool, onFinish, WithProgress(func(float64) { progress.Add(1) }))
	require.NoError(t, err)
	assert.Nil(t, res, "nothing is installed yet")

	f := waitFinished(t, done)
	assert.False(t, f.cancelled)
	assert.NoError(t, f.err)
	assert.Positive(t, progress.Load())

	res = c.CurrentResult()
	require.NotNil(t, res)
	assert.Equal(t, common.FrameID(0), res.Frame)
	assert.Equal(t, StateFresh, c.State())
}

func TestStaleRunningResultIsDiscarded(t *testing.T) {
	pool := newTestPool(t)
	p := profiler.NewProfiler()
	c, _ := newTestCache(t, WithProfiler(p))
	g := newGate()
	done, onFinish := finishChan()

	_, err := c.BuffersForCurrentFrame(pool, g.option(), onFinish)
	require.NoError(t, err)
	g.waitEntered(t)
	assert.Equal(t, StateRecomputing, c.State())

	c.SetCurrentFrame(1)
	c.SetCurrentFrame(2)
	close(g.open)

	f := waitFinished(t, done)
	assert.True(t, f.cancelled, "a discarded result is reported as not installed")
	assert.NoError(t, f.err)
	assert.Nil(t, c.CurrentResult())
	assert.Equal(t, int64(1), c.Stats().Discarded)
	assert.Equal(t, int64(1), p.Counters().Discarded)
	assert.Equal(t, StateDiscarded, c.State())

	s := pool.Stats()
	assert.Equal(t, 0, s.Dirty)
	assert.Equal(t, s.Allocated, s.Clean)
}

func TestQueuedTaskIsReplaced(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)
	g := newGate()
	runningDone, runningFinish := finishChan()

	_, err := c.BuffersForCurrentFrame(pool, g.option(), runningFinish)
	require.NoError(t, err)
	g.waitEntered(t)

	var replacedStarted atomic.Bool
	replacedDone, replacedFinish := finishChan()
	c.SetCurrentFrame(1)
	_, err = c.BuffersForCurrentFrame(pool, replacedFinish, WithOnStart(func() { replacedStarted.Store(true) }))
	require.NoError(t, err)

	// a second request for the same frame is covered by the queued task
	_, err = c.BuffersForCurrentFrame(pool)
	require.NoError(t, err)

	c.SetCurrentFrame(2)
	latestDone, latestFinish := finishChan()
	_, err = c.BuffersForCurrentFrame(pool, latestFinish)
	require.NoError(t, err)

	f := waitFinished(t, replacedDone)
	assert.True(t, f.cancelled)

	close(g.open)
	assert.True(t, waitFinished(t, runningDone).cancelled, "frame 0 finished after the frame moved on")
	latest := waitFinished(t, latestDone)
	assert.False(t, latest.cancelled)
	assert.NoError(t, latest.err)

	assert.False(t, replacedStarted.Load(), "a replaced task never starts")
	require.NotNil(t, c.CurrentResult())
	assert.Equal(t, common.FrameID(2), c.CurrentResult().Frame)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Installed)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(1), stats.Discarded)
}

type syncOutcome struct {
	res *CachedResult
	err error
}

func requestSync(c ComputeCache, pool buffer_pool.BufferPool, options ...RequestOption) chan syncOutcome {
	out := make(chan syncOutcome, 1)
	go func() {
		res, err := c.BuffersForCurrentFrame(pool, append(options, WithSynchronous(true))...)
		out <- syncOutcome{res: res, err: err}
	}()
	return out
}

func TestSynchronousRequestWaitsForRunningTask(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)
	g := newGate()
	asyncDone, asyncFinish := finishChan()

	_, err := c.BuffersForCurrentFrame(pool, g.option(), asyncFinish)
	require.NoError(t, err)
	g.waitEntered(t)

	var syncStarted atomic.Bool
	out := requestSync(c, pool, WithOnStart(func() { syncStarted.Store(true) }))

	select {
	case o := <-out:
		require.FailNow(t, "synchronous request returned while a task was running", "result=%v err=%v", o.res, o.err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, syncStarted.Load(), "only one task computes at a time")
	assert.Equal(t, StateRecomputing, c.State())

	close(g.open)
	var o syncOutcome
	select {
	case o = <-out:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "synchronous request did not return")
	}
	require.NoError(t, o.err)
	require.NotNil(t, o.res)
	assert.Equal(t, common.FrameID(0), o.res.Frame)
	assert.Equal(t, 900, o.res.VertexCount())
	assert.True(t, syncStarted.Load())

	waitFinished(t, asyncDone)
	assert.Same(t, o.res, c.CurrentResult())
	assert.Equal(t, 8, pool.Stats().Dirty)
}

func TestSynchronousRequestReplacesQueuedTask(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)
	g := newGate()
	runningDone, runningFinish := finishChan()

	_, err := c.BuffersForCurrentFrame(pool, g.option(), runningFinish)
	require.NoError(t, err)
	g.waitEntered(t)

	c.SetCurrentFrame(1)
	queuedDone, queuedFinish := finishChan()
	_, err = c.BuffersForCurrentFrame(pool, queuedFinish)
	require.NoError(t, err)

	out := requestSync(c, pool)
	assert.True(t, waitFinished(t, queuedDone).cancelled)

	close(g.open)
	o := <-out
	require.NoError(t, o.err)
	require.NotNil(t, o.res)
	assert.Equal(t, common.FrameID(1), o.res.Frame)
	assert.True(t, waitFinished(t, runningDone).cancelled, "frame 0 is no longer current")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Installed)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(1), stats.Discarded)
}

func TestFinishCallbackMayCallBackIntoCache(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)
	g := newGate()

	_, err := c.BuffersForCurrentFrame(pool, g.option())
	require.NoError(t, err)
	g.waitEntered(t)

	states := make(chan EntryState, 2)
	c.SetCurrentFrame(1)
	_, err = c.BuffersForCurrentFrame(pool, WithOnFinish(func(bool, error) {
		c.RequestRefresh()
		states <- c.State()
	}))
	require.NoError(t, err)

	replaced := make(chan struct{})
	go func() {
		defer close(replaced)
		c.SetCurrentFrame(2)
		_, _ = c.BuffersForCurrentFrame(pool, WithOnFinish(func(bool, error) {
			states <- c.State()
		}))
	}()
	select {
	case <-replaced:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "replacing a queued task blocked on its finish callback")
	}
	assert.Equal(t, StateRecomputing, <-states)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		c.Close()
	}()
	select {
	case <-states:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "closing the cache blocked on a finish callback")
	}
	close(g.open)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "close did not return")
	}
}

func TestAtMostOneRunningTask(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for frame := common.FrameID(0); frame < 30; frame++ {
		c.SetCurrentFrame(frame)
		wg.Add(1)
		var started atomic.Bool
		_, err := c.BuffersForCurrentFrame(pool,
			WithOnStart(func() {
				started.Store(true)
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
			}),
			WithOnFinish(func(bool, error) {
				if started.Load() {
					running.Add(-1)
				}
				wg.Done()
			}),
		)
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	stats := c.Stats()
	assert.Equal(t, int64(30), stats.Installed+stats.Discarded+stats.Cancelled)
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	pool := newTestPool(t)
	c, a := newTestCache(t)

	good, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)

	require.True(t, a.RemoveParameter(attractor.ParamC))
	done, onFinish := finishChan()
	res, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true), onFinish)
	assert.ErrorIs(t, err, compute.ErrConfiguration)
	assert.Same(t, good, res)
	assert.Same(t, good, c.CurrentResult())

	f := waitFinished(t, done)
	assert.False(t, f.cancelled, "configuration errors are distinct from cancellation")
	assert.ErrorIs(t, f.err, compute.ErrConfiguration)
	assert.Equal(t, int64(1), c.Stats().Failed)

	// unchanged inputs are not retried
	res, err = c.BuffersForCurrentFrame(pool)
	require.NoError(t, err)
	assert.Same(t, good, res)
	assert.Equal(t, int64(1), c.Stats().Failed)
}

func TestSynchronousRetryOfFailedFrameNeverReturnsAnotherFrame(t *testing.T) {
	pool := newTestPool(t)
	c, a := newTestCache(t)

	good, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	require.Equal(t, common.FrameID(0), good.Frame)

	c.SetCurrentFrame(1)
	b, ok := a.Parameter(attractor.ParamB)
	require.True(t, ok)
	require.True(t, a.RemoveParameter(attractor.ParamB))

	_, err = c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.ErrorIs(t, err, compute.ErrConfiguration)

	// an asynchronous caller keeps the previous result, a synchronous one recomputes
	res, err := c.BuffersForCurrentFrame(pool)
	require.NoError(t, err)
	assert.Same(t, good, res)
	assert.Equal(t, int64(1), c.Stats().Failed)

	_, err = c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	assert.ErrorIs(t, err, compute.ErrConfiguration)
	assert.Equal(t, int64(2), c.Stats().Failed)

	require.NoError(t, a.AddParameter(b))
	res, err = c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	assert.Equal(t, common.FrameID(1), res.Frame)
}

func TestAsyncFailureIsReported(t *testing.T) {
	pool := buffer_pool.NewBufferPool(
		buffer_pool.WithBufferSize(testBufferSize),
		buffer_pool.WithSweepInterval(0),
		buffer_pool.WithAllocator(buffer_pool.NewHeapAllocator(testBufferSize)),
	)
	defer pool.Close()
	c, _ := newTestCache(t)
	done, onFinish := finishChan()

	_, err := c.BuffersForCurrentFrame(pool, onFinish)
	require.NoError(t, err)
	f := waitFinished(t, done)
	assert.ErrorIs(t, f.err, buffer_pool.ErrAllocationFailed)
	assert.Nil(t, c.CurrentResult())
	assert.Equal(t, 0, pool.Stats().Dirty)
}

func TestAcquireCurrentResultOutlivesInstall(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)

	empty, release := c.AcquireCurrentResult()
	assert.Nil(t, empty)
	release()

	_, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	held, release := c.AcquireCurrentResult()
	require.NotNil(t, held)
	assert.Equal(t, int32(2), held.Pairs[0].Positions.RetainCount())

	c.SetCurrentFrame(1)
	_, err = c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)

	assert.Equal(t, int32(1), held.Pairs[0].Positions.RetainCount(), "the reader's retain keeps the old buffers lent")
	assert.Equal(t, 16, pool.Stats().Dirty)

	release()
	release()
	assert.Equal(t, 8, pool.Stats().Dirty)
}

func TestSynchronousCancellation(t *testing.T) {
	pool := newTestPool(t)
	c, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done, onFinish := finishChan()
	res, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true), WithContext(ctx), WithOnStart(cancel), onFinish)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, res)
	assert.True(t, waitFinished(t, done).cancelled)
	assert.Equal(t, 0, pool.Stats().Dirty)
}

func TestCloseReleasesResult(t *testing.T) {
	pool := newTestPool(t)
	a := attractor.NewAttractor("close", attractor.WithCoefficients(1.4, -2.3, 2.4, -2.1, 1000, 100))
	c := NewComputeCache(a)

	_, err := c.BuffersForCurrentFrame(pool, WithSynchronous(true))
	require.NoError(t, err)
	require.Equal(t, 8, pool.Stats().Dirty)

	c.Close()
	c.Close()
	assert.Nil(t, c.CurrentResult())
	assert.Equal(t, 0, pool.Stats().Dirty)

	_, err = c.BuffersForCurrentFrame(pool)
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestFrameControl(t *testing.T) {
	c, _ := newTestCache(t, WithStartFrame(41))
	assert.Equal(t, common.FrameID(41), c.CurrentFrame())
	assert.Equal(t, common.FrameID(42), c.AdvanceFrame())
	c.SetCurrentFrame(3)
	assert.Equal(t, common.FrameID(3), c.CurrentFrame())
	assert.Equal(t, "recomputing", StateRecomputing.String())
}
