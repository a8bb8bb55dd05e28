package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/config"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/compute_cache"
	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
	"github.com/spf13/cobra"
)

// bakeSummary describes a completed bake.
type bakeSummary struct {
	Name     string
	Frames   uint64
	Vertices int64
	Elapsed  time.Duration
	Counters profiler.Counters
	Pool     buffer_pool.Stats
}

func runBake(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	frames := common.Coalesce(frameCount, cfg.Engine.Frames, 1)

	summary, err := bake(cmd.Context(), cfg, frames, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderSummary("Baked "+summary.Name, []summaryLine{
		{"frames", fmt.Sprintf("%d", summary.Frames)},
		{"vertices", formatCount(summary.Vertices)},
		{"elapsed", summary.Elapsed.Round(time.Millisecond).String()},
		{"per frame", (summary.Elapsed / time.Duration(max(summary.Frames, 1))).Round(time.Microsecond).String()},
		{"buffers", fmt.Sprintf("%d allocated", summary.Pool.Allocated)},
	}))
	return nil
}

// bake computes frames 0..frames-1 synchronously, in order, and checks that every result
// belongs to the frame it was requested for.
func bake(ctx context.Context, cfg *config.Config, frames uint64, progress io.Writer) (bakeSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := cfg.Attractor.Build()
	if err != nil {
		return bakeSummary{}, err
	}

	pool, closePool := newPool(cfg)
	defer closePool()
	prof := profiler.NewProfiler(profiler.WithPool(pool))
	cache := compute_cache.NewComputeCache(a, compute_cache.WithProfiler(prof))
	defer cache.Close()

	bar := newProgressBar(int64(frames), "  computing", progress)
	defer bar.Close()

	summary := bakeSummary{Name: a.Name(), Frames: frames}
	start := time.Now()
	for f := range frames {
		frame := common.FrameID(f)
		cache.SetCurrentFrame(frame)
		if _, err := cache.BuffersForCurrentFrame(pool, compute_cache.WithSynchronous(true), compute_cache.WithContext(ctx)); err != nil {
			return summary, fmt.Errorf("frame %d: %w", frame, err)
		}

		res, release := cache.AcquireCurrentResult()
		if res == nil || res.Frame != frame {
			release()
			return summary, fmt.Errorf("frame %d: cache returned an out of order result", frame)
		}
		summary.Vertices += int64(res.VertexCount())
		release()

		_ = bar.Add(1)
	}
	summary.Elapsed = time.Since(start)
	summary.Counters = prof.Counters()
	summary.Pool = pool.Stats()
	return summary, nil
}
