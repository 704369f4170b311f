package main

import (
	"context"
	"database/sql"

	"ultimate-tracker/internal/constants"
	fxmodules "ultimate-tracker/internal/fx"
	"ultimate-tracker/internal/server"
	"ultimate-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runTracker),
	).Run()
}

func runTracker(
	lc fx.Lifecycle,
	tracker *service.Tracker,
	statusServer *server.StatusServer,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			tracker.Start()
			go func() {
				logger.Info().Str("addr", statusServer.Addr()).Msg("status server starting")
				if err := statusServer.ListenAndServe(); err != nil {
					logger.Fatal().Err(err).Msg("status server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			tracker.Stop()

			if err := statusServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
