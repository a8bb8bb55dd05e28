package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/config"
	"github.com/Carmen-Shannon/oxy-attractors/engine"
	"github.com/Carmen-Shannon/oxy-attractors/engine/attractor"
	"github.com/Carmen-Shannon/oxy-attractors/engine/compute_cache"
	"github.com/Carmen-Shannon/oxy-attractors/engine/profiler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// previewStats is updated from the render callback.
type previewStats struct {
	rendered     atomic.Int64
	lastFrame    atomic.Uint64
	lastVertices atomic.Int64
}

func runPreview(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if profiling {
		cfg.Engine.Profiling = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration != "" {
		d, err := time.ParseDuration(duration)
		if err != nil {
			return fmt.Errorf("--duration: %w", err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var stats previewStats
	elapsed, a, err := preview(ctx, cfg, path, &stats)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderSummary("Previewed "+a.Name(), []summaryLine{
		{"rendered", formatCount(stats.rendered.Load())},
		{"last frame", fmt.Sprintf("%d", stats.lastFrame.Load())},
		{"vertices", formatCount(stats.lastVertices.Load())},
		{"elapsed", elapsed.Round(time.Millisecond).String()},
	}))
	return nil
}

// preview runs the headless engine until ctx is done, reloading the attractor document
// whenever the config file at path changes.
func preview(ctx context.Context, cfg *config.Config, path string, stats *previewStats) (time.Duration, attractor.Attractor, error) {
	a, err := cfg.Attractor.Build()
	if err != nil {
		return 0, nil, err
	}

	pool, closePool := newPool(cfg)
	defer closePool()
	prof := profiler.NewProfiler(profiler.WithPool(pool), profiler.WithUpdateInterval(cfg.Engine.ProfileInterval.Duration))
	cache := compute_cache.NewComputeCache(a, compute_cache.WithProfiler(prof))
	defer cache.Close()

	eng := engine.NewEngine(cache, pool, append(cfg.EngineOptions(), engine.WithProfiler(prof))...)
	eng.SetRenderCallback(func(res *compute_cache.CachedResult, _ float32) {
		stats.rendered.Add(1)
		if res != nil {
			stats.lastFrame.Store(uint64(res.Frame))
			stats.lastVertices.Store(int64(res.VertexCount()))
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if path != "" {
		w, err := config.NewWatcher(path, func(next *config.Config, err error) {
			if err != nil {
				log.Printf("[Config] reload failed, keeping the previous document: %v", err)
				return
			}
			if err := next.Attractor.Apply(a); err != nil {
				log.Printf("[Config] reload rejected: %v", err)
				return
			}
			log.Printf("[Config] reloaded %s", path)
		})
		if err != nil {
			return 0, a, err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	start := time.Now()
	g.Go(func() error {
		defer cancel()
		eng.Run()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		eng.Quit()
		return nil
	})

	err = g.Wait()
	return time.Since(start), a, err
}
