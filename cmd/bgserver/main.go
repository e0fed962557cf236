// Command bgserver runs the bgrollout REST API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourusername/bgrollout/internal/config"
	"github.com/yourusername/bgrollout/pkg/api"
	"github.com/yourusername/bgrollout/pkg/engine"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")

	// Environment first, then command line flags
	cfg, err := config.ParseServerConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("bgserver: %v", err)
	}

	if *showVersion {
		fmt.Printf("bgrollout API Server v%s\n", version)
		os.Exit(0)
	}

	log.SetPrefix("[bgserver] ")
	log.Printf("bgrollout API Server v%s", version)

	eng := engine.NewEngine(engine.EngineOptions{
		CacheSize: cfg.CacheSize,
		Rollout: engine.RolloutOptions{
			Trials:  cfg.Rollout.Trials,
			Workers: cfg.Rollout.Workers,
			Seed:    cfg.Rollout.Seed,
		},
	})
	log.Printf("Engine ready (cache %d entries, %d trials per rollout)", cfg.CacheSize, cfg.Rollout.Trials)

	server := api.NewServer(eng, api.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxFastWorkers:  cfg.MaxFastWorkers,
		MaxSlowWorkers:  cfg.MaxSlowWorkers,
		MaxTrials:       cfg.MaxTrials,
	}, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
