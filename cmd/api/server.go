package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mise/internal/infrastructure/postgres/listener"
	"mise/internal/interfaces/scheduler"
	"mise/internal/shared/config"
)

// StartServer creates and starts the HTTP server. A listen failure is
// reported on the returned channel.
func StartServer(handler http.Handler, cfg *config.Config, logger *zap.Logger) (*http.Server, <-chan error) {
	writeTimeout := cfg.Server.RequestTimeout + 10*time.Second
	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return srv, errCh
}

// GracefulShutdown stops intake first (HTTP and the event listener), then
// drains the scheduler.
func GracefulShutdown(srv *http.Server, ln *listener.EventListener, sched *scheduler.Scheduler, timeout time.Duration, logger *zap.Logger) {
	logger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error shutting down HTTP server", zap.Error(err))
	}

	if ln != nil {
		ln.Stop()
	}

	if sched != nil {
		sched.Shutdown(timeout)
	}

	logger.Info("server stopped")
}
