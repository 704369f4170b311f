package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"ultimate-tracker/internal/config"
	"ultimate-tracker/internal/middleware"
	"ultimate-tracker/internal/replay"
	"ultimate-tracker/internal/repository"
	"ultimate-tracker/internal/service"
	"ultimate-tracker/internal/session"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// StatusServer exposes the tracker's live state and the replay index over
// HTTP. Read-only surface; all mutation happens on the console connection.
type StatusServer struct {
	tracker *service.Tracker
	repo    *repository.ReplayRepository
	loader  *replay.GroupLoader
	logger  zerolog.Logger

	replayDir string
	addr      string
	srv       *fasthttp.Server
}

func NewStatusServer(
	cfg *config.Config,
	tracker *service.Tracker,
	repo *repository.ReplayRepository,
	loader *replay.GroupLoader,
	logger zerolog.Logger,
) *StatusServer {
	s := &StatusServer{
		tracker:   tracker,
		repo:      repo,
		loader:    loader,
		logger:    logger,
		replayDir: cfg.ReplayDir,
		addr:      fmt.Sprintf(":%s", cfg.ServerPort),
	}
	s.srv = &fasthttp.Server{
		Handler: middleware.RequestID(logger, s.route),
		Name:    "ultimate-tracker",
	}
	return s
}

func (s *StatusServer) Addr() string { return s.addr }

// ListenAndServe blocks until Shutdown.
func (s *StatusServer) ListenAndServe() error {
	return s.srv.ListenAndServe(s.addr)
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *StatusServer) route(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}

	switch string(ctx.Path()) {
	case "/status":
		s.handleStatus(ctx)
	case "/replays":
		s.handleReplays(ctx)
	case "/replays/scan":
		s.handleScan(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *StatusServer) handleStatus(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, s.tracker.Status())
}

func (s *StatusServer) handleReplays(ctx *fasthttp.RequestCtx) {
	records, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list replays")
		ctx.Error("internal server error", fasthttp.StatusInternalServerError)
		return
	}
	s.writeJSON(ctx, records)
}

// replaySummary is the scan endpoint's view of one decoded file. Unlike the
// index rows it is derived from the file contents, so it also covers replays
// dropped into the directory by other tools.
type replaySummary struct {
	Path       string   `json:"path"`
	Stage      string   `json:"stage"`
	Players    []string `json:"players"`
	Fighters   []string `json:"fighters"`
	Format     string   `json:"format"`
	GameNumber int      `json:"game_number"`
	SetNumber  int      `json:"set_number"`
	Winner     int      `json:"winner"`
	StartedAt  uint64   `json:"started_at"`
	DurationMs int64    `json:"duration_ms"`
}

// handleScan decodes every replay file in the configured directory and
// returns summaries sorted by start time. A scan started while a previous
// one is still running supersedes it.
func (s *StatusServer) handleScan(ctx *fasthttp.RequestCtx) {
	paths, err := filepath.Glob(filepath.Join(s.replayDir, "*.rfr"))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list replay directory")
		ctx.Error("internal server error", fasthttp.StatusInternalServerError)
		return
	}

	gen := s.loader.Begin()
	results, err := s.loader.Load(ctx, gen, paths)
	if err != nil {
		if errors.Is(err, replay.ErrStale) {
			ctx.Error("superseded by a newer scan", fasthttp.StatusConflict)
			return
		}
		s.logger.Error().Err(err).Msg("replay scan failed")
		ctx.Error("internal server error", fasthttp.StatusInternalServerError)
		return
	}

	summaries := make([]replaySummary, 0, len(results))
	for _, r := range results {
		g := r.Game
		s.reindex(ctx, r.Path, g)
		sum := replaySummary{
			Path:       r.Path,
			Stage:      g.Mapping().StageName(g.StageID(), "unknown stage"),
			Format:     g.Format().Description(),
			GameNumber: g.GameNumber(),
			SetNumber:  g.SetNumber(),
			Winner:     g.Winner(),
			StartedAt:  g.StartedAt(),
			DurationMs: g.Duration().Milliseconds(),
		}
		for i := 0; i < g.PlayerCount(); i++ {
			sum.Players = append(sum.Players, g.PlayerName(i))
			sum.Fighters = append(sum.Fighters, g.Mapping().FighterName(g.FighterID(i), "unknown fighter"))
		}
		summaries = append(summaries, sum)
	}
	s.writeJSON(ctx, summaries)
}

// reindex backfills the index row for a scanned file that is not in the
// database, so replays dropped into the directory by hand become listable.
func (s *StatusServer) reindex(ctx context.Context, path string, g *session.Game) {
	existing, err := s.repo.GetByPath(ctx, path)
	if err != nil || existing != nil {
		return
	}
	if err := s.repo.Insert(ctx, repository.RecordFromGame(path, g)); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to backfill replay index")
	}
}

func (s *StatusServer) writeJSON(ctx *fasthttp.RequestCtx, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		ctx.Error("internal server error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}
