package sink

import (
	"context"
	"time"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type MatchStore interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.MatchSnapshot) error
	MarkEnded(ctx context.Context, matchID string, at time.Time) error
}

// Archive records every published snapshot and the time its match ended.
type Archive struct {
	store  MatchStore
	clock  clock.Clock
	logger zerolog.Logger
}

func NewArchive(store MatchStore, clk clock.Clock, logger zerolog.Logger) *Archive {
	return &Archive{store: store, clock: clk, logger: logger.With().Str("sink", "archive").Logger()}
}

func (a *Archive) Snapshot(snapshot *domain.MatchSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := a.store.SaveSnapshot(ctx, snapshot); err != nil {
		a.logger.Error().Err(err).Str("match_id", snapshot.MatchID).Msg("failed to archive snapshot")
	}
}

func (a *Archive) Waiting() {}

func (a *Archive) Ended(matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := a.store.MarkEnded(ctx, matchID, a.clock.Now()); err != nil {
		a.logger.Error().Err(err).Str("match_id", matchID).Msg("failed to mark match ended")
	}
}

func (a *Archive) StateChanged(string, api.Event) {}
