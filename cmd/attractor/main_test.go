package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/config"
	"github.com/Carmen-Shannon/oxy-attractors/engine/attractor"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallConfig keeps each frame to a few thousand iterations in 1 MiB buffers.
func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Pool.BufferSizeMiB = 1
	cfg.Pool.SweepInterval = config.Duration{}
	cfg.Engine.TickRate = 200
	cfg.Engine.RenderFrameLimit = 200
	cfg.Engine.Frames = 10
	for i, p := range cfg.Attractor.Parameters {
		if p.Name == attractor.ParamIterations {
			cfg.Attractor.Parameters[i].Value = 5000
		}
	}
	return cfg
}

func TestBakeComputesEveryFrameInOrder(t *testing.T) {
	var progress bytes.Buffer
	summary, err := bake(context.Background(), smallConfig(), 12, &progress)
	require.NoError(t, err)

	assert.Equal(t, uint64(12), summary.Frames)
	assert.Equal(t, int64(12*(5000-100)), summary.Vertices)
	assert.Equal(t, int64(12), summary.Counters.Installed)
	assert.Zero(t, summary.Counters.Discarded)
	assert.Zero(t, summary.Counters.Failed)
	assert.Equal(t, 2, summary.Pool.Dirty, "only the last frame's pair is still held")
}

func TestBakeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bake(ctx, smallConfig(), 3, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestPreviewRunsUntilContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stats previewStats
	elapsed, a, err := preview(ctx, smallConfig(), "", &stats)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.Equal(t, "pickover", a.Name())
	assert.Positive(t, stats.rendered.Load())
	assert.Positive(t, stats.lastVertices.Load())
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	t.Setenv("HOME", t.TempDir())
	cfg, path, err := loadConfig("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, config.Default().Engine, cfg.Engine)

	file := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(file, []byte("engine:\n  frames: 7\n"), 0o644))
	cfg, path, err = loadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, file, path)
	assert.Equal(t, uint64(7), cfg.Engine.Frames)
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary("Baked x", []summaryLine{{"frames", "3"}, {"vertices", formatCount(2500000)}})
	assert.Contains(t, out, "Baked x")
	assert.Contains(t, out, "2.5M")
	assert.Equal(t, "1.5K", formatCount(1500))
	assert.Equal(t, "12", formatCount(12))
}

func TestNewPoolUsesHeapByDefault(t *testing.T) {
	pool, closePool := newPool(smallConfig())
	b, err := pool.GetBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20), b.ByteCapacity())
	pool.Release(b)
	closePool()
	_, err = pool.GetBuffer()
	assert.Error(t, err)
}
