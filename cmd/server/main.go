package main

import (
	"log/slog"
	"os"

	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/config"
)

func main() {
	logger := slog.Default()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	svc, err := cfg.BuildService(logger)
	if err != nil {
		slog.Error("Failed to build storage service", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	if err := Routes(server.R, cfg, svc, logger); err != nil {
		slog.Error("Failed to set up routes", "err", err)
		os.Exit(1)
	}

	slog.Info("Storage server starting", "environment", cfg.Environment,
		"default_driver", cfg.DefaultDriver, "drivers", svc.Drivers(), "storage_endpoint", cfg.LocalEndpoint())

	server.Run()
}
