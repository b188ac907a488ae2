package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/lixenwraith/thundagun/config"
	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/engine"
	"github.com/lixenwraith/thundagun/logging"
	"github.com/lixenwraith/thundagun/preview"
	"github.com/lixenwraith/thundagun/render"
	"github.com/lixenwraith/thundagun/service"
	"github.com/lixenwraith/thundagun/status"
	"github.com/lixenwraith/thundagun/telemetry"
)

var (
	configFlag    = flag.String("config", "", "TOML config file, watched for changes")
	debugFlag     = flag.Bool("debug", false, "Debug logging")
	framesFlag    = flag.Int("frames", 0, "Stop after this many render frames, 0 runs until interrupted")
	previewFlag   = flag.Bool("preview", false, "Show the camera render texture in the terminal")
	telemetryFlag = flag.String("telemetry", "", "Serve the websocket status stream on this address")
)

// Render context state belongs to the main thread
func init() {
	runtime.LockOSThread()
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "thundagun: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *debugFlag {
		cfg.Logging.Level = "debug"
	}
	if *telemetryFlag != "" {
		cfg.Telemetry.Addr = *telemetryFlag
	}
	// Console output would tear the preview
	if *previewFlag && cfg.Logging.File == "" && !cfg.Logging.Disable {
		cfg.Logging.File = logging.DefaultFile
	}

	log, closer, err := logging.Setup(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := status.NewRegistry()
	host, err := engine.NewHost(cfg, engine.WithHostLogger(log), engine.WithHostRegistry(reg))
	if err != nil {
		return err
	}

	cameraSize := image.Pt(64, 32)
	scene := newDemoScene(host.Pipeline(), cameraSize, cfg.Simulation.TickRate, log.With("component", "scene"))
	frameReady := make(chan struct{}, 1)
	sched, updateDone := engine.NewScheduler(scene, host.Tasks(), cfg.SimulationInterval(), frameReady,
		engine.WithSchedulerLogger(log),
		engine.WithSchedulerRegistry(reg),
	)

	hub := service.NewHub(log)
	if err := hub.Register(host); err != nil {
		return err
	}
	if cfg.Telemetry.Addr != "" {
		srv := telemetry.NewServer(reg, cfg.Telemetry.Addr, cfg.TelemetryInterval(), log.With("component", "telemetry"))
		if err := hub.Register(srv); err != nil {
			return err
		}
	}

	var term *preview.Terminal
	if *previewFlag {
		term = preview.NewTerminal(nil, stop, log)
		if err := hub.Register(term); err != nil {
			return err
		}
		core.SetCrashHandler(func(r any) {
			_ = term.Close()
			fmt.Fprintf(os.Stderr, "\r\nthundagun crashed: %v\r\n%s\r\n", r, debug.Stack())
			os.Exit(1)
		})
	}

	if *configFlag != "" {
		path := *configFlag
		apply := func(next *config.Config) {
			if err := host.ApplyConfig(next); err != nil {
				log.Warn("config rejected", "err", err)
				return
			}
			sched.SetInterval(next.SimulationInterval())
		}
		watcher := &service.Func{
			ID:   "config",
			Deps: []string{"render"},
			OnStart: func(ctx context.Context) error {
				w, err := config.NewWatcher(path, apply, log)
				if err != nil {
					return err
				}
				core.Go(func() {
					if err := w.Run(ctx); err != nil {
						log.Warn("config watcher stopped", "err", err)
					}
				})
				return nil
			},
		}
		if err := hub.Register(watcher); err != nil {
			return err
		}
	}

	if err := hub.InitAll(); err != nil {
		return err
	}
	defer func() {
		if err := hub.StopAll(); err != nil {
			log.Warn("shutdown incomplete", "err", err)
		}
	}()
	if err := hub.StartAll(ctx); err != nil {
		return err
	}

	if err := scene.Setup(); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	var shown uint64
	present := func(stats engine.TickStats) error {
		if *framesFlag > 0 && stats.Frame >= uint64(*framesFlag) {
			stop()
		}
		if term == nil {
			return nil
		}
		data, version := scene.Latest()
		if data == nil || version == shown {
			return nil
		}
		shown = version
		return term.Present(data, cameraSize, render.FormatRGBA32)
	}

	log.Info("render loop started",
		"max_tick_rate", cfg.Render.MaxTickRate,
		"sim_tick_rate", cfg.Simulation.TickRate,
		"preview", *previewFlag,
	)
	err = engine.RenderLoop(ctx, host, frameReady, updateDone, present)
	if errors.Is(err, preview.ErrClosed) {
		err = nil
	}
	log.Info("render loop stopped", "frames", host.Frames(), "sim_ticks", sched.Ticks())
	return err
}
