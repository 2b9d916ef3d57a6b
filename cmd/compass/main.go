package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"compass-ng/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./compass.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := build(cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer rt.Close()

	log.Printf("compass starting sim=%v storage=%s output=%v", cfg.Sim.Enable, cfg.Storage.Backend, cfg.Output.Enable)
	if err := rt.svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("compass stopped: %v", err)
		rt.Close()
		os.Exit(1)
	}
	log.Printf("compass stopping")
}
