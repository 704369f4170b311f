package fx

import (
	"ultimate-tracker/internal/config"
	"ultimate-tracker/internal/constants"
	"ultimate-tracker/internal/database"
	"ultimate-tracker/internal/events"
	"ultimate-tracker/internal/lifecycle"
	"ultimate-tracker/internal/logger"
	"ultimate-tracker/internal/replay"
	"ultimate-tracker/internal/repository"
	"ultimate-tracker/internal/server"
	"ultimate-tracker/internal/service"

	"github.com/rs/zerolog"

	"go.uber.org/fx"
)

func ProvideGroupLoader(codec *replay.Codec, log zerolog.Logger) *replay.GroupLoader {
	return replay.NewGroupLoader(codec, constants.LoaderWorkers, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewReplayRepository),
	// replay persistence
	fx.Provide(replay.NewCodec),
	fx.Provide(ProvideGroupLoader),
	// events + match lifecycle
	fx.Provide(events.NewBus),
	fx.Provide(lifecycle.NewManager),
	// svc
	fx.Provide(service.NewTracker),
	// server
	fx.Provide(server.NewStatusServer),
)
