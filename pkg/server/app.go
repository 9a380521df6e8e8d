package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: the scheduler
// loop, the status/metrics HTTP server, and infrastructure clients.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	scheduler  *usecase.Scheduler
	store      domrepo.TrainingStore
	chClient   *pkgch.Client
	redis      *cache.RedisCache
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. chClient is nil
// when the training backend is Kafka.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	scheduler *usecase.Scheduler,
	store domrepo.TrainingStore,
	chClient *pkgch.Client,
	redis *cache.RedisCache,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		scheduler: scheduler,
		store:     store,
		chClient:  chClient,
		redis:     redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := api.NewStatusHandler(a.logger, a.scheduler)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.scheduler.Run(ctx); err != nil {
			a.logger.Error("scheduler error", applogger.Error(err))
		}
	}()
	a.logger.Info("monitor started", applogger.String("environment", a.cfg.Environment))

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()

	// Let the scheduler finish the post in flight; the rest of the
	// queue is abandoned and re-deduped on next start.
	select {
	case <-schedDone:
	case <-time.After(a.cfg.Server.ShutdownTimeout):
		a.logger.Warn("scheduler did not stop within shutdown timeout")
	}

	return a.shutdown()
}

// shutdown gracefully stops the HTTP server and closes clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("training store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
