package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ops-tracker/internal/app/api"
	"ops-tracker/internal/app/watcher"
	"ops-tracker/internal/common/config"
	"ops-tracker/internal/common/logger"
)

func main() {
	mode := flag.String("mode", "", "api | watcher")
	cfgPath := flag.String("config", "", "path to YAML config (default: auto-discover)")
	port := flag.Int("port", 0, "api: override HTTP port")
	flag.Parse()

	lg := logger.New("bootstrap")

	path := *cfgPath
	if path == "" {
		p, err := config.FindConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no config file found; pass --config")
			os.Exit(2)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api":
		if err := api.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "watcher":
		if err := watcher.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: api | watcher")
		os.Exit(2)
	}
}
