// Command sentinel-renderer runs the overlay entity renderer.
//
// The window or layer surface is created by the host; its native handles
// are passed with -display and -window. With -window 0 the software and
// noop backends render headless, which is useful for exercising the
// control channel.
//
// Configuration comes from SENTINEL_* environment variables and an
// optional TOML file (SENTINEL_CONFIG or -config). The [tuning] table of
// that file is reloaded on change.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/sentinel"
	"github.com/gogpu/sentinel/config"
	"github.com/gogpu/sentinel/internal/gpu"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sentinel-renderer: stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		backendName = flag.String("backend", "vulkan", "GPU backend: vulkan, software or noop")
		display     = flag.Uint64("display", 0, "native display handle (X11 Display*, 0 elsewhere)")
		window      = flag.Uint64("window", 0, "native window handle")
		width       = flag.Uint("width", sentinel.DefaultWidth, "initial surface width")
		height      = flag.Uint("height", sentinel.DefaultHeight, "initial surface height")
		configPath  = flag.String("config", "", "TOML config file (overrides "+config.EnvConfigFile+")")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	sentinel.SetLogger(logger)

	getenv := os.Getenv
	if *configPath != "" {
		getenv = func(k string) string {
			if k == config.EnvConfigFile {
				return *configPath
			}
			return os.Getenv(k)
		}
	}
	cfg, err := config.Load(getenv)
	if err != nil {
		return err
	}
	slog.Info("sentinel-renderer: starting",
		"socket", cfg.SocketPath, "state", cfg.InitialState.String(),
		"intensity", cfg.InitialIntensity, "cycle", cfg.Cycle)

	if err := gpu.ValidateShaders(); err != nil {
		return err
	}

	backend, err := selectBackend(*backendName)
	if err != nil {
		return err
	}
	dev, err := openDevice(backend, uintptr(*display), uintptr(*window))
	if err != nil {
		return err
	}
	defer dev.Close()

	setup, err := gpu.ChooseSurfaceFormat(dev.adapter.Adapter.SurfaceCapabilities(dev.surface))
	if err != nil {
		return err
	}
	dev.format = setup.Format

	pipeline, err := gpu.NewFromProvider(dev, dev.surface, gpu.PipelineConfig{
		Width:   uint32(*width),
		Height:  uint32(*height),
		Surface: setup,
		Tuning:  cfg.Tuning,
	})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer pipeline.Destroy()

	var opts []sentinel.Option
	if cfg.File != "" {
		w, err := config.NewWatcher(cfg.File)
		if err != nil {
			slog.Warn("sentinel-renderer: config reload disabled", "err", err)
		} else {
			defer w.Close()
			opts = append(opts, sentinel.WithTuningUpdates(w.Updates()))
		}
	}

	overlay := sentinel.New(cfg, pipeline, opts...)
	defer overlay.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan sentinel.Event, 1)
	events <- sentinel.SurfaceReady{W: uint32(*width), H: uint32(*height)}

	if err := overlay.Run(ctx, events); err != nil {
		return fmt.Errorf("render loop: %w", err)
	}
	slog.Info("sentinel-renderer: stopped", "frames", pipeline.FrameCount())
	return nil
}
