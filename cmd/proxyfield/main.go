package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/proxyfield/internal/config"
	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	terminal := flag.Bool("terminal", false, "draw the scene in the terminal")
	addr := flag.String("addr", "", "scene stream listen address, overrides the config")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	if *terminal {
		cfg.Render.Terminal = true
		// The terminal owns stderr's tty; keep the log out of it.
		if len(cfg.Log.Outputs) == 0 {
			cfg.Log.Level = "silent"
		}
	}
	if *addr != "" {
		cfg.Render.WebSocketAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting pipeline:", err)
		os.Exit(1)
	}

	app.Logger.Info("pipeline starting",
		log.String("source", cfg.Sensor.Source),
		log.Float64("tick_rate", cfg.Sensor.TickRate),
		log.String("stream", cfg.Render.WebSocketAddr),
	)
	if err := app.Run(ctx); err != nil {
		app.Logger.Error("pipeline stopped", log.Error(err))
		cleanup()
		os.Exit(1)
	}
	cleanup()
}
