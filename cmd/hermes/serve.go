package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketsrc/hermes/internal/api"
	"github.com/marketsrc/hermes/internal/app"
	"github.com/marketsrc/hermes/internal/config"
	"github.com/marketsrc/hermes/internal/core"
	"github.com/marketsrc/hermes/internal/logger"
	"github.com/marketsrc/hermes/internal/provider"
	"github.com/marketsrc/hermes/internal/provider/sim"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HERMES gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file when one was given, otherwise falls
// back to built-in defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	log.Warn("no config file specified, using defaults")
	return config.Defaults(), nil
}

// buildClients instantiates one client per enabled provider. All
// upstreams are currently served by the deterministic simulator; real
// HTTP clients slot in here per provider name.
func buildClients(cfg *config.Config) []provider.Client {
	var clients []provider.Client
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		clients = append(clients, sim.New(core.ProviderID(name)))
	}
	return clients
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	application, err := app.New(cfg, log, buildClients(cfg)...)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	log.Info("starting HERMES gateway",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	server := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, application, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down HERMES gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
