package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/httpapi"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/scheduler"
)

// App owns the store, the sweep scheduler and the HTTP server.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   repo.Store
	sweeper *scheduler.Sweeper
	server  *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	prober := probe.NewHTTPProber(cfg.ProbeTimeout)

	sw := scheduler.NewSweeper(logger.Named("scheduler"), store, prober, m,
		cfg.CheckInterval, cfg.ProbeTimeout, cfg.SweepConcurrency)
	sw.SweepOnStart = cfg.SweepOnStart

	api := httpapi.NewServer(logger.Named("http"), store, prober, m, cfg.ProbeTimeout)
	api.DNS = probe.NewDNSDiagnoser()

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			RateLimitRPM:   cfg.RateLimitRPM,
			RateLimitBurst: cfg.RateLimitBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		// leaves room for a full probe plus the DNS diagnosis
		WriteTimeout: cfg.ProbeTimeout + 10*time.Second,
	}

	return &App{cfg: cfg, logger: logger, store: store, sweeper: sw, server: server}, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves until ctx is cancelled or the listener fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return multierr.Append(fmt.Errorf("listen %s: %w", a.cfg.Addr, err), a.store.Close())
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.sweeper.Start(ctx); err != nil {
		ln.Close()
		return multierr.Append(err, a.store.Close())
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("api_listen", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown_requested")
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("server_failed", zap.Error(err))
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return multierr.Append(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the scheduler (waiting for an in-flight sweep), drains
// HTTP and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.sweeper.Stop()

	var err error
	if e := a.server.Shutdown(ctx); e != nil {
		err = multierr.Append(err, fmt.Errorf("http shutdown: %w", e))
	}
	if e := a.store.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("close store: %w", e))
	}
	if err != nil {
		a.logger.Error("shutdown_incomplete", zap.Error(err))
		return err
	}
	a.logger.Info("shutdown_complete")
	return nil
}
