// Package config loads the attractor document and runtime settings from YAML or TOML files.
// Priority: defaults < file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine"
	"github.com/Carmen-Shannon/oxy-attractors/engine/buffer_pool"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Duration is a time.Duration written as a string such as "5s" in both formats.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds the runtime settings and the attractor document.
type Config struct {
	Pool      PoolConfig        `yaml:"pool" toml:"pool"`
	Engine    EngineConfig      `yaml:"engine" toml:"engine"`
	Attractor AttractorDocument `yaml:"attractor" toml:"attractor"`
}

// PoolConfig controls the buffer pool.
type PoolConfig struct {
	BufferSizeMiB uint64   `yaml:"buffer_size_mib" toml:"buffer_size_mib"` // capped at 512
	SweepInterval Duration `yaml:"sweep_interval" toml:"sweep_interval"`   // 0 disables the sweep
}

// EngineConfig controls the animation and render loops.
type EngineConfig struct {
	TickRate         float64  `yaml:"tick_rate" toml:"tick_rate"`                   // animation frames per second
	RenderFrameLimit float64  `yaml:"render_frame_limit" toml:"render_frame_limit"` // 0 = uncapped
	Frames           uint64   `yaml:"frames" toml:"frames"`                         // animation length; 0 = endless
	Profiling        bool     `yaml:"profiling" toml:"profiling"`
	ProfileInterval  Duration `yaml:"profile_interval" toml:"profile_interval"`
}

// Default returns the default configuration: a slowly animated Pickover attractor.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			BufferSizeMiB: 64,
			SweepInterval: Duration{buffer_pool.DefaultSweepInterval},
		},
		Engine: EngineConfig{
			TickRate:         30,
			RenderFrameLimit: 60,
			Frames:           300,
			Profiling:        false,
			ProfileInterval:  Duration{time.Second},
		},
		Attractor: DefaultDocument(),
	}
}

// DefaultPath returns the per-user config file location.
//
// Returns:
//   - string: the expanded path of ~/.config/oxy-attractors/config.yaml
//   - error: error if the home directory cannot be determined
func DefaultPath() (string, error) {
	return homedir.Expand(filepath.Join("~", ".config", "oxy-attractors", "config.yaml"))
}

// Load reads a config file over the defaults. The format is chosen by extension:
// .yaml/.yml for YAML, .toml for TOML. A leading ~ in path is expanded.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - *Config: the merged configuration
//   - error: ErrUnsupportedFormat, a read error or a decode error
func Load(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("config: expand %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", expanded, err)
	}
	return Parse(data, filepath.Ext(expanded))
}

// Parse decodes data over the defaults.
//
// Parameters:
//   - data: the file contents
//   - ext: the file extension selecting the format, with or without the leading dot
//
// Returns:
//   - *Config: the merged configuration
//   - error: ErrUnsupportedFormat or a decode error
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()
	// the document replaces the default attractor wholesale when present
	cfg.Attractor = AttractorDocument{}

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	case "toml":
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if len(cfg.Attractor.Parameters) == 0 {
		cfg.Attractor = DefaultDocument()
	}
	return cfg, nil
}

// PoolOptions converts the pool section into buffer pool options.
func (c *Config) PoolOptions() []buffer_pool.BufferPoolBuilderOption {
	return []buffer_pool.BufferPoolBuilderOption{
		buffer_pool.WithBufferSize(c.Pool.BufferSizeMiB * common.MiB),
		buffer_pool.WithSweepInterval(c.Pool.SweepInterval.Duration),
	}
}

// EngineOptions converts the engine section into engine options.
func (c *Config) EngineOptions() []engine.EngineBuilderOption {
	return []engine.EngineBuilderOption{
		engine.WithTickRate(c.Engine.TickRate),
		engine.WithRenderFrameLimit(c.Engine.RenderFrameLimit),
		engine.WithFrameCount(c.Engine.Frames),
		engine.WithProfiling(c.Engine.Profiling),
	}
}
