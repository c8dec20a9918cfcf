package app

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat-server/internal/config"
	"github.com/vovakirdan/streamchat-server/internal/core"
	"github.com/vovakirdan/streamchat-server/internal/monitor"
	"github.com/vovakirdan/streamchat-server/internal/proto"
	"github.com/vovakirdan/streamchat-server/internal/store"
	"github.com/vovakirdan/streamchat-server/internal/store/sqlite"
	transporttcp "github.com/vovakirdan/streamchat-server/internal/transport/tcp"
)

// App wires together the registry, the TCP transport, and the supporting
// services.
type App struct {
	server  *transporttcp.Server
	monitor *monitor.Monitor
	store   store.Store
	cfg     config.Config
	log     *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	var st store.Store
	if cfg.DatabasePath != "" {
		s, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = s
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("session store initialized")
	} else {
		logger.Info().Msg("session store disabled")
	}

	framer := proto.Framer{
		Timeout:       cfg.IOTimeout,
		MaxFrameBytes: uint32(cfg.MaxFrameBytes),
	}
	registry := core.NewRegistry(framer, logger)
	server := transporttcp.NewServer(registry, framer, st, cfg, logger)
	mon := monitor.New(cfg.StatsInterval, registry, logger)

	return &App{
		server:  server,
		monitor: mon,
		store:   st,
		cfg:     cfg,
		log:     logger,
	}, nil
}

// Addr reports the bound listen address once Run has started listening,
// nil before that.
func (a *App) Addr() net.Addr {
	return a.server.Addr()
}

// Run starts the accept loop and blocks until context cancellation or a
// listener failure, then drains every connection before returning.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Listen(); err != nil {
		a.cleanup()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Serve()
	}()

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go a.monitor.Run(monCtx)

	select {
	case err := <-serverErr:
		// The accept loop ended on its own; drain whatever is connected.
		a.shutdown()
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
		a.shutdown()
		err := <-serverErr
		a.cleanup()
		return err
	}
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	a.server.Shutdown(shutdownCtx)
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
