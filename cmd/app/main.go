package main

import (
	"context"
	"flag"
	"log"
	"os"

	"WalletMirror/internal/di"
	"WalletMirror/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s wallet=%s storage=%s journal=%s",
		cfg.Environment, cfg.Wallet.Address, cfg.Storage.Driver, cfg.Journal.Backend)

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg, di.ConfigPath(*configPath))
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	err = app.Run(context.Background())
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
