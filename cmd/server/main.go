package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"

	"ec-dashboard/internal/config"
	"ec-dashboard/internal/constants"
	fxmodules "ec-dashboard/internal/fx"
	"ec-dashboard/internal/middleware"
	"ec-dashboard/internal/mode"
	"ec-dashboard/internal/poller"
	"ec-dashboard/internal/server"
	"ec-dashboard/internal/service"
	"ec-dashboard/internal/session"
	"ec-dashboard/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	dashboard *server.DashboardServer,
	sess *session.Session,
	overview *service.OverviewService,
	registry *poller.Registry,
	resolver *mode.Resolver,
	pipeline *telemetry.Pipeline,
	reg *prometheus.Registry,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()
	dashboard.Mount(mux)
	server.MountOps(mux, resolver, sess, reg, logger)

	handler := middleware.Chain(mux,
		middleware.CORS(nil),
		middleware.RequestID(logger),
		middleware.Recover(pipeline, logger),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// listen first: an in-game session waits for a NUI message posted to this server
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()

			if err := sess.Start(ctx); err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}

			pipeline.Go("overview", func() {
				overview.StartPolling(registry, cfg.PollInterval)
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			registry.StopAll()

			if err := pipeline.Flush(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("telemetry reports still in flight")
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
