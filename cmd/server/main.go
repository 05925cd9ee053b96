package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/config"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/server"
)

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "YAML or TOML config file")
	port := flag.String("port", "", "Server port (overrides PORT)")
	root := flag.String("root", "", "Storage root (overrides STORAGE_ROOT)")
	authMode := flag.String("auth", "", "Auth mode: remote, jwt or dev (overrides AUTH_MODE)")
	authURL := flag.String("auth-url", "", "Session service base URL (overrides AUTH_URL)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.Read(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Storage.Root = *root
	}
	if *authMode != "" {
		cfg.Auth.Mode = *authMode
	}
	if *authURL != "" {
		cfg.Auth.URL = *authURL
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
