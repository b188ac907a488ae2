// Package engine runs the render-thread frame and the simulation scheduler around the pipeline queues.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/thundagun/asset"
	"github.com/lixenwraith/thundagun/config"
	"github.com/lixenwraith/thundagun/connector"
	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/packet"
	"github.com/lixenwraith/thundagun/render"
	"github.com/lixenwraith/thundagun/status"
)

// TickStats reports one render-thread frame
type TickStats struct {
	Frame   uint64
	Packets packet.DrainStats
	Assets  int // Asset actions and steps run
	Tasks   int // Render tasks run
	Swapped bool
	Elapsed time.Duration
}

// Host owns the render-thread side of the pipeline
// Thread-Safety:
//   - Tick, Init, Stop: render thread only
//   - ApplyConfig, Config, Pipeline, Frames: any thread
type Host struct {
	cfg atomic.Pointer[config.Config]

	render  *render.Context
	packets *packet.Queue
	assets  *asset.IntegrationQueue
	tasks   *render.TaskQueue
	reg     *status.Registry
	clock   core.TimeProvider
	log     *slog.Logger

	frames atomic.Uint64

	// Cached metric pointers
	statFrames *atomic.Int64
	statTickMS *status.AtomicFloat
	statPeakMS *status.AtomicFloat
	statAssets *atomic.Int64
}

// HostOption configures a Host
type HostOption func(*Host)

// WithHostLogger sets the logger shared by every queue
func WithHostLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.log = l
		}
	}
}

// WithHostRegistry sets the metric registry shared by every queue
func WithHostRegistry(reg *status.Registry) HostOption {
	return func(h *Host) {
		if reg != nil {
			h.reg = reg
		}
	}
}

// WithHostClock sets the time source for budgets and tick timing
func WithHostClock(c core.TimeProvider) HostOption {
	return func(h *Host) {
		if c != nil {
			h.clock = c
		}
	}
}

// NewHost validates cfg and wires the render context and queues
func NewHost(cfg *config.Config, opts ...HostOption) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		reg:   status.NewRegistry(),
		clock: core.SystemTime{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.cfg.Store(cfg)

	h.render = render.NewContext(
		render.WithContextLogger(h.log),
		render.WithContextRegistry(h.reg),
		render.WithPoolSize(cfg.Render.TargetPoolSize),
	)
	h.packets = packet.NewQueue(
		packet.WithLogger(h.log),
		packet.WithRegistry(h.reg),
	)
	h.assets = asset.NewIntegrationQueue(
		asset.WithClock(h.clock),
		asset.WithLogger(h.log),
		asset.WithRegistry(h.reg),
		asset.WithNotifier(asset.NotifierFunc(func(n int) {
			h.statAssets.Add(int64(n))
		})),
	)
	h.tasks = render.NewTaskQueue(h.render,
		render.WithTaskClock(h.clock),
		render.WithTaskLogger(h.log),
		render.WithTaskRegistry(h.reg),
	)

	h.statFrames = h.reg.Ints.Get(status.HostFrames)
	h.statTickMS = h.reg.Floats.Get(status.HostTickMS)
	h.statPeakMS = h.reg.Floats.Get(status.HostTickPeakMS)
	h.statAssets = h.reg.Ints.Get(status.HostAssetsIntegrated)
	return h, nil
}

// Config returns the active configuration
func (h *Host) Config() *config.Config {
	return h.cfg.Load()
}

// ApplyConfig swaps in a new configuration; budgets change from the next tick
// Target pool size is fixed at construction
func (h *Host) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	old := h.cfg.Swap(cfg)
	h.log.Info("config applied",
		"render_budget", cfg.RenderBudget(),
		"asset_budget", cfg.AssetBudget(),
		"max_tick_rate", cfg.Render.MaxTickRate,
	)
	if old != nil && old.Render.TargetPoolSize != cfg.Render.TargetPoolSize {
		h.log.Warn("target pool size change needs restart",
			"active", old.Render.TargetPoolSize, "requested", cfg.Render.TargetPoolSize)
	}
	return nil
}

// Pipeline returns the view simulation-side connectors feed
func (h *Host) Pipeline() *connector.Pipeline {
	return &connector.Pipeline{
		Packets: h.packets,
		Assets:  h.assets,
		Tasks:   h.tasks,
		Render:  h.render,
	}
}

// Registry returns the shared metric registry
func (h *Host) Registry() *status.Registry { return h.reg }

// Context returns the render context
func (h *Host) Context() *render.Context { return h.render }

// Tasks returns the render task queue
func (h *Host) Tasks() *render.TaskQueue { return h.tasks }

// Frames returns the number of completed ticks
func (h *Host) Frames() uint64 { return h.frames.Load() }

// Tick runs one render-thread frame: packets, then assets, then render tasks
func (h *Host) Tick() TickStats {
	cfg := h.cfg.Load()
	start := h.clock.Now()
	gen := h.tasks.Generation()

	stats := TickStats{
		Packets: h.packets.Drain(),
		Assets:  h.assets.ProcessQueue(cfg.AssetBudget()),
		Tasks:   h.tasks.Process(cfg.RenderBudget()),
	}
	stats.Swapped = h.tasks.Generation() != gen
	stats.Elapsed = h.clock.Now().Sub(start)
	stats.Frame = h.frames.Add(1)

	h.statFrames.Store(int64(stats.Frame))
	ms := float64(stats.Elapsed) / float64(time.Millisecond)
	h.statTickMS.Set(ms)
	h.statPeakMS.StoreMax(ms)
	return stats
}

// Name implements service.Service
func (h *Host) Name() string { return "render" }

// Dependencies implements service.Service
func (h *Host) Dependencies() []string { return nil }

// Init initializes the render context
func (h *Host) Init() error {
	return h.render.Init()
}

// Start implements service.Service; the render loop is driven by the caller's thread
func (h *Host) Start(context.Context) error {
	return nil
}

// Stop faults queued render tasks in both buffers and closes the render context
// Runs on the render thread after the loop has returned
func (h *Host) Stop() error {
	h.tasks.Abandon()
	if err := h.render.Close(); err != nil && !errors.Is(err, render.ErrClosed) {
		return err
	}
	return nil
}
