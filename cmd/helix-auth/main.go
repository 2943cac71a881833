package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvcrn/helix-auth/internal/app"
	"github.com/dvcrn/helix-auth/internal/config"
	"github.com/dvcrn/helix-auth/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	store := flag.String("store", "", "Credential store: fs, keychain or env (default fs)")
	fsPath := flag.String("fs-creds-path", "", "Path to filesystem credentials auth.json")
	port := flag.String("port", "", "Admin API port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrap := logger.New(false, "info")
		bootstrap.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyFlags(cfg, *store, *fsPath, *port)

	log := logger.New(cfg.IsProduction(), cfg.LogLevel)

	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Port).Msg("Failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx, ln); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func applyFlags(cfg *config.Config, store, fsPath, port string) {
	if store != "" {
		cfg.Store = store
	}
	if fsPath != "" {
		cfg.FSCredsPath = fsPath
	}
	if port != "" {
		cfg.Port = port
	}
}
