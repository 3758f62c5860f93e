package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FinSignal/internal/usecase"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	applogger "FinSignal/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	live       *usecase.LiveQuotes
}

// New creates a new App instance. live may be nil when the trade stream is disabled.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, live *usecase.LiveQuotes) *App {
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: srv,
		live:       live,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	// Live quotes are an overlay; the API serves without them.
	if a.live != nil {
		if err := a.live.Start(ctx); err != nil {
			a.log.Warn("live quotes unavailable", applogger.Error(err))
		} else {
			a.log.Info("live quotes started", applogger.Strings("symbols", a.cfg.Finnhub.Stream.Symbols))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.live != nil {
		if err := a.live.Shutdown(ctx); err != nil {
			a.log.Warn("live quotes stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	// Flushes aggregated logs before the producer is closed.
	a.log.RemoveCollector()
	return nil
}
