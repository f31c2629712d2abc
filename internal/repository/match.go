package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"valorant-live-tracker/internal/domain"

	"github.com/goccy/go-json"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// MatchRepository archives published snapshots so past lobbies can be
// listed after the process exits.
type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		logger: logger.With().Str("component", "match_repository").Logger(),
	}
}

const upsertMatchQuery = `
INSERT INTO matches (match_id, map_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT(match_id) DO UPDATE SET map_id = excluded.map_id, ended_at = NULL`

const insertParticipantQuery = `
INSERT INTO match_participants (
    id, match_id, position, puuid, game_name, tag_line, team_id, agent_id, agent_name,
    skin_id, skin_name, account_level, level_hidden, current_tier, ranked_rating, current_label,
    peak_tier, peak_label, win_rate, games_sampled, win_rate_known, has_stats, kd, headshot_pct, tactical
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveSnapshot replaces the archived roster of snapshot.MatchID.
func (r *MatchRepository) SaveSnapshot(ctx context.Context, snapshot *domain.MatchSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, upsertMatchQuery, snapshot.MatchID, snapshot.MapID, createdAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert match %s: %w", snapshot.MatchID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = ?`, snapshot.MatchID); err != nil {
		return fmt.Errorf("failed to clear participants of %s: %w", snapshot.MatchID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertParticipantQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare participant insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range snapshot.Participants {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		tactical, err := json.Marshal(p.Tactical)
		if err != nil {
			return fmt.Errorf("failed to encode tactical stats of %s: %w", p.Puuid, err)
		}
		_, err = stmt.ExecContext(ctx,
			id, snapshot.MatchID, i, p.Puuid, p.GameName, p.TagLine, p.TeamID, p.AgentID, p.AgentName,
			p.SkinID, p.SkinName, p.AccountLevel, p.LevelHidden, p.Rank.CurrentTier, p.Rank.RankedRating, p.Rank.CurrentLabel,
			p.Rank.PeakTier, p.Rank.PeakLabel, p.Rank.WinRate, p.Rank.GamesSampled, p.Rank.WinRateKnown,
			p.HasStats, p.KD, p.HeadshotPct, string(tactical),
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant %s/%s: %w", snapshot.MatchID, p.Puuid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot %s: %w", snapshot.MatchID, err)
	}
	r.logger.Debug().Str("match_id", snapshot.MatchID).Int("participants", len(snapshot.Participants)).Msg("snapshot archived")
	return nil
}

// MarkEnded stamps the end time of an archived match. Unknown ids are ignored.
func (r *MatchRepository) MarkEnded(ctx context.Context, matchID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE matches SET ended_at = ? WHERE match_id = ?`, at.UTC(), matchID)
	if err != nil {
		return fmt.Errorf("failed to mark match %s ended: %w", matchID, err)
	}
	return nil
}

// ListMatches returns the most recent archived matches, newest first.
func (r *MatchRepository) ListMatches(ctx context.Context, limit int) ([]domain.ArchivedMatch, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT m.match_id, m.map_id, m.created_at, m.ended_at, COUNT(p.id)
FROM matches m
LEFT JOIN match_participants p ON p.match_id = m.match_id
GROUP BY m.match_id
ORDER BY m.created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := []domain.ArchivedMatch{}
	for rows.Next() {
		var (
			m       domain.ArchivedMatch
			endedAt sql.NullTime
		)
		if err := rows.Scan(&m.MatchID, &m.MapID, &m.CreatedAt, &endedAt, &m.Participants); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			m.EndedAt = &t
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// GetByMatchID rebuilds the archived snapshot of matchID. It returns
// sql.ErrNoRows when the match was never archived.
func (r *MatchRepository) GetByMatchID(ctx context.Context, matchID string) (*domain.MatchSnapshot, error) {
	snapshot := &domain.MatchSnapshot{MatchID: matchID}
	err := r.db.QueryRowContext(ctx, `SELECT map_id, created_at FROM matches WHERE match_id = ?`, matchID).
		Scan(&snapshot.MapID, &snapshot.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT puuid, game_name, tag_line, team_id, agent_id, agent_name, skin_id, skin_name, account_level, level_hidden,
       current_tier, ranked_rating, current_label, peak_tier, peak_label, win_rate, games_sampled,
       win_rate_known, has_stats, kd, headshot_pct, tactical
FROM match_participants
WHERE match_id = ?
ORDER BY position`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants of %s: %w", matchID, err)
	}
	defer rows.Close()

	snapshot.Participants = []domain.EnrichedParticipant{}
	for rows.Next() {
		var (
			p        domain.EnrichedParticipant
			tactical string
		)
		err := rows.Scan(
			&p.Puuid, &p.GameName, &p.TagLine, &p.TeamID, &p.AgentID, &p.AgentName, &p.SkinID, &p.SkinName,
			&p.AccountLevel, &p.LevelHidden, &p.Rank.CurrentTier, &p.Rank.RankedRating, &p.Rank.CurrentLabel,
			&p.Rank.PeakTier, &p.Rank.PeakLabel, &p.Rank.WinRate, &p.Rank.GamesSampled, &p.Rank.WinRateKnown,
			&p.HasStats, &p.KD, &p.HeadshotPct, &tactical,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if err := json.Unmarshal([]byte(tactical), &p.Tactical); err != nil {
			return nil, fmt.Errorf("failed to decode tactical stats of %s: %w", p.Puuid, err)
		}
		snapshot.Participants = append(snapshot.Participants, p)
	}
	return snapshot, rows.Err()
}
