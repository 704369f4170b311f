package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/session"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RecordFromGame builds an index row from a finished game session and the
// path its replay file was written to.
func RecordFromGame(path string, g *session.Game) *domain.ReplayRecord {
	rec := &domain.ReplayRecord{
		FilePath:   path,
		StageID:    int(g.StageID()),
		StageName:  g.Mapping().StageName(g.StageID(), "unknown stage"),
		Format:     g.Format().Description(),
		GameNumber: g.GameNumber(),
		SetNumber:  g.SetNumber(),
		Winner:     g.Winner(),
		StartedAt:  time.UnixMilli(int64(g.StartedAt())).UTC(),
		EndedAt:    time.UnixMilli(int64(g.EndedAt())).UTC(),
	}
	if g.PlayerCount() > 0 {
		rec.P1Name = g.PlayerName(0)
		rec.P1Fighter = g.Mapping().FighterName(g.FighterID(0), "unknown fighter")
	}
	if g.PlayerCount() > 1 {
		rec.P2Name = g.PlayerName(1)
		rec.P2Fighter = g.Mapping().FighterName(g.FighterID(1), "unknown fighter")
	}
	return rec
}

// ReplayRepository indexes saved replay files so they can be listed and
// searched without re-reading every file on disk.
type ReplayRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewReplayRepository(sqlDB *sql.DB, logger zerolog.Logger) *ReplayRepository {
	return &ReplayRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *ReplayRepository) Insert(ctx context.Context, rec *domain.ReplayRecord) error {
	if rec.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate replay id: %w", err)
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO replays (
			id, file_path, stage_id, stage_name,
			p1_name, p2_name, p1_fighter, p2_fighter,
			format, game_number, set_number, winner,
			started_at, ended_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FilePath, rec.StageID, rec.StageName,
		rec.P1Name, rec.P2Name, rec.P1Fighter, rec.P2Fighter,
		rec.Format, rec.GameNumber, rec.SetNumber, rec.Winner,
		rec.StartedAt, rec.EndedAt, rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("path", rec.FilePath).Msg("failed to insert replay record")
		return fmt.Errorf("failed to insert replay record: %w", err)
	}

	r.logger.Debug().Str("id", rec.ID).Str("path", rec.FilePath).Msg("replay indexed")
	return nil
}

func (r *ReplayRepository) List(ctx context.Context) ([]domain.ReplayRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_path, stage_id, stage_name,
			p1_name, p2_name, p1_fighter, p2_fighter,
			format, game_number, set_number, winner,
			started_at, ended_at, created_at
		FROM replays
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list replays: %w", err)
	}
	defer rows.Close()

	var records []domain.ReplayRecord
	for rows.Next() {
		var rec domain.ReplayRecord
		if err := rows.Scan(
			&rec.ID, &rec.FilePath, &rec.StageID, &rec.StageName,
			&rec.P1Name, &rec.P2Name, &rec.P1Fighter, &rec.P2Fighter,
			&rec.Format, &rec.GameNumber, &rec.SetNumber, &rec.Winner,
			&rec.StartedAt, &rec.EndedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan replay record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate replay records: %w", err)
	}

	return records, nil
}

func (r *ReplayRepository) GetByPath(ctx context.Context, path string) (*domain.ReplayRecord, error) {
	var rec domain.ReplayRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, file_path, stage_id, stage_name,
			p1_name, p2_name, p1_fighter, p2_fighter,
			format, game_number, set_number, winner,
			started_at, ended_at, created_at
		FROM replays
		WHERE file_path = ?`, path).Scan(
		&rec.ID, &rec.FilePath, &rec.StageID, &rec.StageName,
		&rec.P1Name, &rec.P2Name, &rec.P1Fighter, &rec.P2Fighter,
		&rec.Format, &rec.GameNumber, &rec.SetNumber, &rec.Winner,
		&rec.StartedAt, &rec.EndedAt, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replay by path: %w", err)
	}
	return &rec, nil
}
