package rank

import (
	"fmt"
	"strconv"

	"valorant-live-tracker/internal/domain"
)

const (
	Unranked  = "Unranked"
	RateLimit = "Rate Limit"
	MaxTier   = 27
)

// DefaultMinSampleGames is the active-season game count below which every
// other season is folded into the win-rate sample.
const DefaultMinSampleGames = 3

var bands = [...]string{
	Unranked, "Iron", "Bronze", "Silver", "Gold",
	"Platinum", "Diamond", "Ascendant", "Immortal", "Radiant",
}

// TierName maps a competitive tier 0..27 to its label. Tiers 0-2 are
// Unranked, 27 is Radiant, everything between is "<band> <1-3>".
func TierName(tier int) string {
	if tier < 0 || tier > MaxTier {
		return "?"
	}
	band := tier / 3
	if band == 0 || band == len(bands)-1 {
		return bands[band]
	}
	return fmt.Sprintf("%s %d", bands[band], tier%3+1)
}

// ActiveSeason returns the id of the season flagged active with type "act".
func ActiveSeason(seasons []domain.Season) (string, bool) {
	for _, s := range seasons {
		if s.IsActive && s.Type == "act" {
			return s.ID, true
		}
	}
	return "", false
}

type Resolver struct {
	minSampleGames int
}

func NewResolver(minSampleGames int) *Resolver {
	if minSampleGames < 0 {
		minSampleGames = 0
	}
	return &Resolver{minSampleGames: minSampleGames}
}

// Placeholder is the rank reported when nothing could be resolved.
func Placeholder() domain.RankInfo {
	return domain.RankInfo{CurrentLabel: Unranked, PeakLabel: Unranked}
}

// RateLimited is the rank reported after the upstream refused the call.
func RateLimited() domain.RankInfo {
	return domain.RankInfo{CurrentLabel: RateLimit, PeakLabel: RateLimit}
}

func winCount(s domain.SeasonSkill) int {
	if s.WinsWithPlacements > 0 {
		return s.WinsWithPlacements
	}
	return s.Wins
}

// Resolve computes current rank, peak rank and win rate. A nil profile or a
// missing active season yields the Unranked placeholder.
func (r *Resolver) Resolve(profile *domain.SkillProfile, activeSeason string) domain.RankInfo {
	if profile == nil || len(profile.Seasons) == 0 || activeSeason == "" {
		return Placeholder()
	}

	current := profile.Seasons[activeSeason]
	info := domain.RankInfo{}

	wins, games := winCount(current), current.Games
	if games < r.minSampleGames {
		for id, s := range profile.Seasons {
			if id == activeSeason {
				continue
			}
			wins += winCount(s)
			games += s.Games
		}
	}
	if games > 0 {
		info.WinRate = wins * 100 / games
		info.GamesSampled = games
		info.WinRateKnown = true
	}

	if current.Tier <= 0 {
		info.CurrentTier = 0
		info.CurrentLabel = Unranked
	} else {
		info.CurrentTier = current.Tier
		info.RankedRating = current.RankedRating
		info.CurrentLabel = fmt.Sprintf("%s (%d RR)", TierName(current.Tier), current.RankedRating)
	}

	peak := 0
	for _, s := range profile.Seasons {
		if s.Tier > peak {
			peak = s.Tier
		}
		for key := range s.WinsByTier {
			t, err := strconv.Atoi(key)
			if err != nil || t < 0 {
				continue
			}
			if t > peak {
				peak = t
			}
		}
	}
	if peak == 0 {
		peak = info.CurrentTier
	}
	if peak > MaxTier {
		peak = MaxTier
	}
	info.PeakTier = peak
	info.PeakLabel = TierName(peak)

	return info
}
