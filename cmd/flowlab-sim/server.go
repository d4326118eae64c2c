package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"flowlab.dev/flowlab/internal/logging"
	"flowlab.dev/flowlab/internal/sampling"
)

// runServer loads config, builds an Engine, and serves the Sampling API
// and Prometheus metrics until interrupted. Grounded on
// grimm-is-flywall/cmd/flywall-sim/server.go's StartServer signal-handling
// shutdown sequence.
func runServer(configPath, addr string) error {
	logger := logging.New(logging.DefaultConfig())

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	if err := engine.collector.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	engine.collector.Start(engine.cache, engine.belady)
	defer engine.collector.Stop()

	srv := sampling.NewServer(engine.store, logger, sampling.DefaultServerConfig(), addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	logger.Info("shutting down sampling server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
