// attractor computes and previews animated strange attractors.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/Carmen-Shannon/oxy-attractors/config"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/Carmen-Shannon/oxy-attractors/engine/gpu_device"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// CLI flags
var (
	configPath string
	frameCount uint64
	duration   string
	profiling  bool
	useGPU     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "attractor",
	Short:         "Compute and preview animated strange attractors",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Compute every frame of the animation in order",
	Long: `Compute every frame of the animation synchronously, in frame order, the way a video
encoder consumes them.

Examples:
  attractor bake
  attractor bake --config wings.yaml --frames 120`,
	RunE: runBake,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the animation headless with live reload of the config file",
	Long: `Run the animation loop without a window. Edits to the config file's attractor
document are applied while running.

Examples:
  attractor preview --config wings.toml
  attractor preview --duration 30s --profile`,
	RunE: runPreview,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .toml); defaults to ~/.config/oxy-attractors/config.yaml when present")

	rootCmd.PersistentFlags().BoolVar(&useGPU, "gpu", false, "Allocate vertex buffers on a WebGPU device instead of the heap")

	bakeCmd.Flags().Uint64VarP(&frameCount, "frames", "n", 0, "Number of frames to compute (default: engine.frames from the config)")

	previewCmd.Flags().StringVarP(&duration, "duration", "d", "", "Stop after this long, e.g. 30s (default: until interrupted)")
	previewCmd.Flags().BoolVar(&profiling, "profile", false, "Log frame rate, memory and compute statistics")

	rootCmd.AddCommand(bakeCmd, previewCmd)
}

// loadConfig loads path, or the per-user config when path is empty, or the defaults when
// neither exists.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	path, err := config.DefaultPath()
	if err != nil {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), "", nil
	}
	return cfg, path, err
}

// newPool creates the buffer pool for cfg, on a WebGPU device when --gpu is set and one is
// available. The returned func closes the pool and then the device.
func newPool(cfg *config.Config) (buffer_pool.BufferPool, func()) {
	options := cfg.PoolOptions()
	if !useGPU {
		pool := buffer_pool.NewBufferPool(options...)
		return pool, pool.Close
	}

	dev, err := gpu_device.NewGPUDevice(gpu_device.WithLabel("Attractor"))
	if err != nil {
		log.Printf("[CLI] GPU unavailable, using heap buffers: %v", err)
		pool := buffer_pool.NewBufferPool(options...)
		return pool, pool.Close
	}
	pool := buffer_pool.NewBufferPool(append(options, buffer_pool.WithAllocator(dev.Allocator()))...)
	return pool, func() {
		pool.Close()
		dev.Release()
	}
}
