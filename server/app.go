package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

type AppState int

const (
	StateInit AppState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s AppState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// App owns the injector and the HTTP server lifecycle.
// samber/do shuts services down in reverse dependency order.
type App struct {
	cfg      *Config
	injector *do.RootScope
	logger   *logger.CtxZapLogger
	server   *HTTPServer

	state AppState
	mu    sync.RWMutex
}

// New initializes logging and registers every provider; nothing connects until Start
func New(cfg *Config) *App {
	logger.InitManager(cfg.Logger)

	injector := do.New()
	Register(injector, cfg)

	return &App{
		cfg:      cfg,
		injector: injector,
		logger:   logger.GetLogger("server"),
		state:    StateInit,
	}
}

func (a *App) Injector() *do.RootScope {
	return a.injector
}

func (a *App) State() AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) setState(state AppState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

// Start builds the service graph and begins serving
func (a *App) Start(ctx context.Context) error {
	srv, err := do.Invoke[*HTTPServer](a.injector)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	if err := srv.Start(); err != nil {
		return err
	}

	a.server = srv
	a.setState(StateRunning)
	a.logger.InfoCtx(ctx, "auth server running",
		zap.String("addr", srv.Addr()),
		zap.String("session_driver", a.cfg.Session.Driver),
		zap.String("database_driver", a.cfg.Database.Driver),
	)
	return nil
}

// Run starts the app and blocks until ctx ends, SIGINT/SIGTERM arrives or the
// server fails, then shuts down within ApiServer.ShutdownTimeout
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	case serveErr = <-a.server.Errors():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ApiServer.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", zap.Error(err))
	}
	return serveErr
}

// Shutdown stops the HTTP server first, then every other service
func (a *App) Shutdown(ctx context.Context) error {
	a.setState(StateStopping)
	defer logger.CloseAll()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("http server shutdown failed", zap.Error(err))
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- shutdownError(a.injector.ShutdownWithContext(ctx))
	}()

	select {
	case err := <-done:
		a.setState(StateStopped)
		if err != nil {
			return fmt.Errorf("shutdown services: %w", err)
		}
		a.logger.Info("auth server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown services: %w", ctx.Err())
	}
}

// shutdownError turns a do shutdown report into an error. The report is
// returned even when every service closed cleanly, so only Succeed counts.
func shutdownError(report *do.ShutdownReport) error {
	if report == nil || report.Succeed {
		return nil
	}
	return report
}
