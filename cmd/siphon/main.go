package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"siphon/internal/app"
	"siphon/internal/logging"
)

func main() {
	var cfg app.Config
	flag.IntVar(&cfg.ControlPort, "control-port", 7070, "gRPC control/health port")
	flag.IntVar(&cfg.MetricsPort, "metrics-port", 9100, "prometheus /metrics port")
	flag.StringVar(&cfg.SettingsPath, "settings", "", "global settings YAML (optional)")
	flag.StringVar(&cfg.TablesPath, "tables", "tables.yml", "table definitions YAML")
	flag.IntVar(&cfg.Workers, "workers", 4, "shared background scheduler workers")
	flag.Parse()

	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("siphon: %v", err)
	}
}
