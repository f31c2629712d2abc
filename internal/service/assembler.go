package service

import (
	"context"
	"errors"
	"fmt"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/cache"
	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/metrics"
	"valorant-live-tracker/internal/pacer"
	"valorant-live-tracker/internal/rank"
	"valorant-live-tracker/internal/stats"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RiotAPI is the subset of the remote client the assembler needs.
type RiotAPI interface {
	CoreGameMatch(ctx context.Context, matchID string) (*api.CoreGameMatchResponse, error)
	Loadouts(ctx context.Context, matchID string) (*api.LoadoutsResponse, error)
	PlayerNames(ctx context.Context, puuids []string) ([]api.NameEntry, error)
	MMR(ctx context.Context, puuid string) (*api.MMRResponse, error)
	AccountXP(ctx context.Context, puuid string) (*api.AccountXPResponse, error)
	Seasons(ctx context.Context) (*api.ContentResponse, error)
	MatchHistory(ctx context.Context, puuid string, start, end int, queue string) (*api.MatchHistoryResponse, error)
	MatchDetails(ctx context.Context, matchID string) (*api.MatchDetailsResponse, error)
}

type CatalogSource interface {
	Catalog(ctx context.Context) (api.Catalog, error)
}

type AssemblerConfig struct {
	Shard        string
	Queue        string
	HistoryDepth int
}

type Pacers struct {
	Rank    *pacer.Pacer
	History *pacer.Pacer
}

// Assembler joins roster, identity, loadout, rank and history data into one
// snapshot. Participants are enriched one after another; remote calls on a
// cache miss go through the pacers.
type Assembler struct {
	riot       RiotAPI
	content    CatalogSource
	cache      *cache.Cache
	pacers     Pacers
	resolver   *rank.Resolver
	aggregator *stats.Aggregator
	cfg        AssemblerConfig
	clock      clock.Clock
	logger     zerolog.Logger
}

func NewAssembler(
	riot RiotAPI,
	content CatalogSource,
	c *cache.Cache,
	pacers Pacers,
	resolver *rank.Resolver,
	aggregator *stats.Aggregator,
	cfg AssemblerConfig,
	clk clock.Clock,
	logger zerolog.Logger,
) *Assembler {
	if cfg.Queue == "" {
		cfg.Queue = api.QueueComp
	}
	if cfg.HistoryDepth < aggregator.Window {
		cfg.HistoryDepth = aggregator.Window
	}
	return &Assembler{
		riot:       riot,
		content:    content,
		cache:      c,
		pacers:     pacers,
		resolver:   resolver,
		aggregator: aggregator,
		cfg:        cfg,
		clock:      clk,
		logger:     logger.With().Str("component", "assembler").Logger(),
	}
}

// shared holds the per-match lookups fetched concurrently before the
// participant loop.
type shared struct {
	skins        map[string]string
	names        map[string]domain.PlayerName
	activeSeason string
	catalog      api.Catalog
}

// Assemble builds the snapshot for matchID. Only a failed roster fetch or a
// cancelled context is returned as an error; everything else degrades to
// placeholders on the affected participant.
func (a *Assembler) Assemble(ctx context.Context, matchID string) (*domain.MatchSnapshot, error) {
	core, err := a.riot.CoreGameMatch(ctx, matchID)
	if err != nil {
		a.logger.Error().Err(err).Str("match_id", matchID).Msg("failed to fetch roster")
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	roster := core.Roster()
	if roster.MatchID == "" {
		roster.MatchID = matchID
	}

	a.logger.Info().Str("match_id", matchID).Str("map_id", roster.MapID).Int("players", len(roster.Players)).Msg("assembling match")

	sh, err := a.fetchShared(ctx, roster)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.MatchSnapshot{
		MatchID:      roster.MatchID,
		MapID:        roster.MapID,
		CreatedAt:    a.clock.Now(),
		Participants: make([]domain.EnrichedParticipant, 0, len(roster.Players)),
	}

	for _, p := range roster.Players {
		ep, err := a.enrich(ctx, p, roster.MapID, sh)
		if err != nil {
			return nil, err
		}
		snapshot.Participants = append(snapshot.Participants, ep)
	}

	a.logger.Info().Str("match_id", matchID).Int("participants", len(snapshot.Participants)).Msg("match assembled")
	return snapshot, nil
}

func (a *Assembler) fetchShared(ctx context.Context, roster domain.Roster) (*shared, error) {
	sh := &shared{}
	puuids := make([]string, 0, len(roster.Players))
	for _, p := range roster.Players {
		puuids = append(puuids, p.Puuid)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loadouts, err := a.riot.Loadouts(gCtx, roster.MatchID)
		if err != nil {
			a.logger.Warn().Err(err).Str("match_id", roster.MatchID).Msg("failed to fetch loadouts")
			sh.skins = map[string]string{}
			return nil
		}
		sh.skins = loadouts.VandalSkins()
		return nil
	})

	g.Go(func() error {
		sh.names = a.playerNames(gCtx, puuids)
		return nil
	})

	g.Go(func() error {
		sh.activeSeason = a.activeSeason(gCtx)
		return nil
	})

	g.Go(func() error {
		sh.catalog = a.catalog(gCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sh, nil
}

func (a *Assembler) playerNames(ctx context.Context, puuids []string) map[string]domain.PlayerName {
	out := make(map[string]domain.PlayerName, len(puuids))
	var missing []string
	for _, id := range puuids {
		if n, ok := cache.GetAs[domain.PlayerName](a.cache, cache.PlayerNames, id); ok {
			out[id] = n
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out
	}

	entries, err := a.riot.PlayerNames(ctx, missing)
	if err != nil {
		a.logger.Warn().Err(err).Int("players", len(missing)).Msg("failed to fetch player names")
		return out
	}
	for _, e := range entries {
		n := domain.PlayerName{Puuid: e.Subject, GameName: e.GameName, TagLine: e.TagLine}
		out[e.Subject] = n
		a.cache.Set(cache.PlayerNames, e.Subject, n)
	}
	return out
}

func (a *Assembler) activeSeason(ctx context.Context) string {
	if id, ok := cache.GetAs[string](a.cache, cache.SeasonInfo, a.cfg.Shard); ok {
		return id
	}
	content, err := a.riot.Seasons(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to fetch seasons")
		return ""
	}
	id, ok := rank.ActiveSeason(content.DomainSeasons())
	if !ok {
		a.logger.Warn().Msg("no active act in content service")
		return ""
	}
	a.cache.Set(cache.SeasonInfo, a.cfg.Shard, id)
	return id
}

const catalogKey = "catalog"

func (a *Assembler) catalog(ctx context.Context) api.Catalog {
	if cat, ok := cache.GetAs[api.Catalog](a.cache, cache.Content, catalogKey); ok {
		return cat
	}
	cat, err := a.content.Catalog(ctx)
	if err != nil {
		// partial catalogs are still usable but not worth keeping
		return cat
	}
	a.cache.Set(cache.Content, catalogKey, cat)
	return cat
}

func (a *Assembler) enrich(ctx context.Context, p domain.RosterPlayer, mapID string, sh *shared) (domain.EnrichedParticipant, error) {
	level, err := a.accountLevel(ctx, p)
	if err != nil {
		return domain.EnrichedParticipant{Puuid: p.Puuid}, err
	}
	ep := domain.EnrichedParticipant{
		Puuid:        p.Puuid,
		TeamID:       p.TeamID,
		AgentID:      p.AgentID,
		AgentName:    sh.catalog.AgentName(p.AgentID),
		SkinID:       sh.skins[p.Puuid],
		AccountLevel: level,
		LevelHidden:  p.HideLevel,
	}
	ep.SkinName = sh.catalog.SkinName(ep.SkinID)
	if n, ok := sh.names[p.Puuid]; ok {
		ep.GameName = n.GameName
		ep.TagLine = n.TagLine
	}

	info, err := a.rankFor(ctx, p.Puuid, sh.activeSeason)
	if err != nil {
		return ep, err
	}
	ep.Rank = info

	ps, ok, err := a.statsFor(ctx, p.Puuid, mapID)
	if err != nil {
		return ep, err
	}
	if ok {
		ep.HasStats = true
		ep.KD = ps.KD
		ep.HeadshotPct = ps.HeadshotPct
		ep.Tactical = ps.Tactical
	}
	return ep, nil
}

// accountLevel prefers the roster level, then a cached one, then account-xp.
// A failed lookup is cached as 0 so it is not retried until the entry expires.
// It returns an error only when ctx is done.
func (a *Assembler) accountLevel(ctx context.Context, p domain.RosterPlayer) (int, error) {
	if p.AccountLevel > 0 {
		a.cache.Set(cache.PlayerLevel, p.Puuid, p.AccountLevel)
		return p.AccountLevel, nil
	}
	if lvl, ok := cache.GetAs[int](a.cache, cache.PlayerLevel, p.Puuid); ok {
		return lvl, nil
	}
	if p.HideLevel {
		return 0, nil
	}

	if err := a.pacers.History.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := a.riot.AccountXP(ctx, p.Puuid)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		a.logger.Debug().Err(err).Str("puuid", p.Puuid).Msg("account level unavailable")
		a.cache.Set(cache.PlayerLevel, p.Puuid, 0)
		return 0, nil
	}
	a.cache.Set(cache.PlayerLevel, p.Puuid, resp.Progress.Level)
	return resp.Progress.Level, nil
}

// rankFor returns an error only when ctx is done.
func (a *Assembler) rankFor(ctx context.Context, puuid, activeSeason string) (domain.RankInfo, error) {
	if info, ok := cache.GetAs[domain.RankInfo](a.cache, cache.Ranks, puuid); ok {
		return info, nil
	}
	if activeSeason == "" {
		metrics.ParticipantFailures.WithLabelValues("season").Inc()
		return rank.Placeholder(), nil
	}

	if err := a.pacers.Rank.Wait(ctx); err != nil {
		return domain.RankInfo{}, err
	}
	resp, err := a.riot.MMR(ctx, puuid)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.RankInfo{}, ctxErr
		}
		if errors.Is(err, api.ErrRateLimited) {
			metrics.ParticipantFailures.WithLabelValues("rank_rate_limited").Inc()
			a.logger.Warn().Str("puuid", puuid).Msg("rank lookup rate limited")
			return rank.RateLimited(), nil
		}
		metrics.ParticipantFailures.WithLabelValues("rank").Inc()
		a.logger.Warn().Err(err).Str("puuid", puuid).Msg("failed to fetch rank")
		return rank.Placeholder(), nil
	}

	info := a.resolver.Resolve(resp.Profile(puuid), activeSeason)
	a.cache.Set(cache.Ranks, puuid, info)
	return info, nil
}

func (a *Assembler) statsKey(puuid, mapID string) string {
	return fmt.Sprintf("%s_%d_%s_%s", puuid, a.aggregator.Window, a.cfg.Queue, stats.MapKey(mapID))
}

func (a *Assembler) historyKey(puuid string) string {
	return fmt.Sprintf("%s_0_%d_%s", puuid, a.cfg.HistoryDepth, a.cfg.Queue)
}

// statsFor reports ok=false when no history could be read for puuid or none
// of the fetched matches include them.
func (a *Assembler) statsFor(ctx context.Context, puuid, mapID string) (domain.PlayerStats, bool, error) {
	key := a.statsKey(puuid, mapID)
	if ps, ok := cache.GetAs[domain.PlayerStats](a.cache, cache.PlayerStats, key); ok {
		return ps, true, nil
	}

	ids, err := a.history(ctx, puuid)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.PlayerStats{}, false, ctxErr
		}
		metrics.ParticipantFailures.WithLabelValues("history").Inc()
		a.logger.Warn().Err(err).Str("puuid", puuid).Msg("failed to fetch match history")
		return domain.PlayerStats{}, false, nil
	}
	if len(ids) == 0 {
		return domain.PlayerStats{}, false, nil
	}

	target := stats.MapKey(mapID)
	mapHits := 0
	matches := make([]domain.HistoricalMatch, 0, len(ids))
	for _, id := range ids {
		if len(matches) >= a.aggregator.Window && mapHits >= a.aggregator.MapWindow {
			break
		}
		m, err := a.matchDetails(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.PlayerStats{}, false, ctxErr
			}
			if errors.Is(err, api.ErrRateLimited) {
				a.logger.Warn().Str("puuid", puuid).Int("fetched", len(matches)).Msg("match details rate limited, using partial history")
				break
			}
			a.logger.Debug().Err(err).Str("match_id", id).Msg("skipping match details")
			continue
		}
		matches = append(matches, m)
		if target == "" || stats.MapKey(m.MapID) == target {
			mapHits++
		}
	}
	if len(matches) == 0 {
		metrics.ParticipantFailures.WithLabelValues("match_details").Inc()
		return domain.PlayerStats{}, false, nil
	}

	ps := a.aggregator.Aggregate(puuid, matches, mapID)
	if ps.MatchesUsed == 0 {
		return domain.PlayerStats{}, false, nil
	}
	a.cache.Set(cache.PlayerStats, key, ps)
	return ps, true, nil
}

func (a *Assembler) history(ctx context.Context, puuid string) ([]string, error) {
	key := a.historyKey(puuid)
	if ids, ok := cache.GetAs[[]string](a.cache, cache.MatchHistory, key); ok {
		return ids, nil
	}
	if err := a.pacers.History.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.riot.MatchHistory(ctx, puuid, 0, a.cfg.HistoryDepth, a.cfg.Queue)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.History))
	for _, h := range resp.History {
		if h.MatchID != "" {
			ids = append(ids, h.MatchID)
		}
	}
	a.cache.Set(cache.MatchHistory, key, ids)
	return ids, nil
}

func (a *Assembler) matchDetails(ctx context.Context, matchID string) (domain.HistoricalMatch, error) {
	if m, ok := cache.GetAs[domain.HistoricalMatch](a.cache, cache.CompletedMatchDetails, matchID); ok {
		return m, nil
	}
	if err := a.pacers.History.Wait(ctx); err != nil {
		return domain.HistoricalMatch{}, err
	}
	resp, err := a.riot.MatchDetails(ctx, matchID)
	if err != nil {
		return domain.HistoricalMatch{}, err
	}
	m := resp.Historical(matchID)
	a.cache.Set(cache.CompletedMatchDetails, matchID, m)
	return m, nil
}
