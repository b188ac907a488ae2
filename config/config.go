// Package config loads host settings from TOML and watches the file for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned for settings that fail validation
var ErrInvalid = errors.New("invalid config")

// Config is the host configuration
type Config struct {
	Render     Render     `toml:"render"`
	Assets     Assets     `toml:"assets"`
	Simulation Simulation `toml:"simulation"`
	Telemetry  Telemetry  `toml:"telemetry"`
	Logging    Logging    `toml:"logging"`
}

// Render configures the render thread
type Render struct {
	MinTickRate    int `toml:"min_tick_rate"`    // Lower bound host frame rate; sets the render-task budget
	MaxTickRate    int `toml:"max_tick_rate"`    // Render loop frame rate
	TargetPoolSize int `toml:"target_pool_size"` // Idle render targets kept per size
}

// Assets configures the integration queue
type Assets struct {
	BudgetMS float64 `toml:"budget_ms"`
}

// Simulation configures the simulation scheduler
type Simulation struct {
	TickRate int `toml:"tick_rate"`
}

// Telemetry configures the status stream; empty Addr disables it
type Telemetry struct {
	Addr       string `toml:"addr"`
	IntervalMS int    `toml:"interval_ms"`
}

// Logging configures the process logger
type Logging struct {
	Level   string `toml:"level"`
	File    string `toml:"file"` // Empty logs to stderr
	Dir     string `toml:"dir"`
	MaxSize int64  `toml:"max_size"` // Bytes; a larger file is rotated at startup
	Disable bool   `toml:"disable"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Render: Render{
			MinTickRate:    30,
			MaxTickRate:    60,
			TargetPoolSize: 4,
		},
		Assets:     Assets{BudgetMS: 4},
		Simulation: Simulation{TickRate: 60},
		Telemetry:  Telemetry{IntervalMS: 500},
		Logging: Logging{
			Level:   "info",
			Dir:     "logs",
			MaxSize: 10 << 20,
		},
	}
}

// Parse decodes TOML over the defaults and validates the result
// Unknown keys are rejected so typos do not silently fall back to defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %v", ErrInvalid, row, col, derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes the config as TOML
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate reports the first setting outside its range
func (c *Config) Validate() error {
	switch {
	case c.Render.MinTickRate <= 0:
		return fmt.Errorf("%w: render.min_tick_rate must be positive", ErrInvalid)
	case c.Render.MaxTickRate < c.Render.MinTickRate:
		return fmt.Errorf("%w: render.max_tick_rate %d below min_tick_rate %d", ErrInvalid, c.Render.MaxTickRate, c.Render.MinTickRate)
	case c.Render.TargetPoolSize < 0:
		return fmt.Errorf("%w: render.target_pool_size must not be negative", ErrInvalid)
	case c.Assets.BudgetMS < 0:
		return fmt.Errorf("%w: assets.budget_ms must not be negative", ErrInvalid)
	case c.Simulation.TickRate <= 0:
		return fmt.Errorf("%w: simulation.tick_rate must be positive", ErrInvalid)
	case c.Telemetry.IntervalMS <= 0:
		return fmt.Errorf("%w: telemetry.interval_ms must be positive", ErrInvalid)
	case c.Logging.MaxSize < 0:
		return fmt.Errorf("%w: logging.max_size must not be negative", ErrInvalid)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// RenderBudget is the per-tick render-task budget, one frame at the minimum tick rate
func (c *Config) RenderBudget() time.Duration {
	return time.Second / time.Duration(c.Render.MinTickRate)
}

// AssetBudget is the per-tick integration budget
func (c *Config) AssetBudget() time.Duration {
	return time.Duration(c.Assets.BudgetMS * float64(time.Millisecond))
}

// FrameInterval is the render loop period
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Render.MaxTickRate)
}

// SimulationInterval is the simulation tick period
func (c *Config) SimulationInterval() time.Duration {
	return time.Second / time.Duration(c.Simulation.TickRate)
}

// TelemetryInterval is the status push period
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.IntervalMS) * time.Millisecond
}
