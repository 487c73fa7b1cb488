package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sheets/internal/logger"
	"sheets/internal/watch"
)

// RunWatch imports files dropped into the inbox, reports catalog changes made
// by other processes and runs the scheduled index repair, until ctx is done.
func (a *App) RunWatch(ctx context.Context) error {
	stopMetrics := a.serveMetrics(ctx)
	defer stopMetrics()

	inbox := watch.NewInbox(a.cfg.ImportDir, a.catalog, watch.Options{
		Logger:  logger.Component(a.log, "inbox"),
		Metrics: a.metrics,
	})
	if err := inbox.Start(ctx); err != nil {
		return err
	}
	defer inbox.Close()

	poller := watch.NewCatalogPoller(a.store, a.emitter, watch.DefaultPollInterval)
	poller.Start(ctx)
	defer poller.Stop()

	if a.cfg.RepairSchedule != "" {
		if err := a.repairer.Start(ctx, a.cfg.RepairSchedule); err != nil {
			return err
		}
	}

	<-ctx.Done()
	a.log.Info().Msg("watch stopping")
	return nil
}

// serveMetrics exposes /metrics when an address is configured. The returned
// func shuts the server down.
func (a *App) serveMetrics(ctx context.Context) func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
