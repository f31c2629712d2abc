package stats

import (
	"math"
	"strings"

	"valorant-live-tracker/internal/domain"
)

const (
	DefaultWindow    = 5
	DefaultMapWindow = 5
	resultDefused    = "Defused"
)

var Sites = []string{"A", "B", "C"}

// Aggregator derives recent-form and tactical metrics from completed matches.
// Window bounds the KD/headshot sample, MapWindow bounds how many
// map-matching matches feed the tactical rates.
type Aggregator struct {
	Window    int
	MapWindow int
}

func NewAggregator(window, mapWindow int) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	if mapWindow <= 0 {
		mapWindow = DefaultMapWindow
	}
	return &Aggregator{Window: window, MapWindow: mapWindow}
}

// MapKey reduces a path-style map id like "/Game/Maps/Pitt/Pitt" to "pitt".
func MapKey(mapID string) string {
	if i := strings.LastIndex(mapID, "/"); i >= 0 {
		mapID = mapID[i+1:]
	}
	return strings.ToLower(mapID)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

// KD is kills/deaths to two decimals, or the raw kill count with no deaths.
func KD(kills, deaths int) float64 {
	if deaths == 0 {
		return float64(kills)
	}
	return round2(float64(kills) / float64(deaths))
}

// Aggregate computes every metric for puuid. Matches are expected newest
// first. An empty mapID disables map scoping but MapWindow still applies.
func (a *Aggregator) Aggregate(puuid string, matches []domain.HistoricalMatch, mapID string) domain.PlayerStats {
	out := domain.PlayerStats{}

	var kills, deaths, hs, body, legs int
	window := matches
	if len(window) > a.Window {
		window = window[:a.Window]
	}
	for _, m := range window {
		totals, ok := m.Players[puuid]
		if !ok {
			continue
		}
		out.MatchesUsed++
		kills += totals.Kills
		deaths += totals.Deaths

		for _, r := range m.Rounds {
			for _, ps := range r.PlayerStats {
				if ps.Puuid != puuid {
					continue
				}
				for _, d := range ps.Damage {
					hs += d.Headshots
					body += d.Bodyshots
					legs += d.Legshots
				}
			}
		}
	}
	out.KD = KD(kills, deaths)
	out.HeadshotPct = percent(hs, hs+body+legs)
	out.Tactical = a.Tactical(puuid, matches, mapID)

	return out
}

type teamRound struct {
	team  string
	round domain.RoundRecord
}

// Tactical computes site-push, retake and save rates from the rounds of the
// first MapWindow matches played on mapID.
func (a *Aggregator) Tactical(puuid string, matches []domain.HistoricalMatch, mapID string) domain.TacticalStats {
	target := MapKey(mapID)

	var rounds []teamRound
	inspected := 0
	for _, m := range matches {
		if target != "" && MapKey(m.MapID) != target {
			continue
		}
		inspected++
		if inspected > a.MapWindow {
			break
		}
		totals, ok := m.Players[puuid]
		if !ok || totals.TeamID == "" {
			continue
		}
		for _, r := range m.Rounds {
			rounds = append(rounds, teamRound{team: totals.TeamID, round: r})
		}
	}

	return domain.TacticalStats{
		SitePush: sitePush(rounds),
		Retake:   retake(rounds),
		Save:     saveRate(rounds, puuid),
	}
}

func sitePush(rounds []teamRound) map[string]domain.Rate {
	out := make(map[string]domain.Rate, len(Sites))
	for _, s := range Sites {
		out[s] = domain.Rate{}
	}
	for _, tr := range rounds {
		rate, ok := out[tr.round.PlantSite]
		if !ok {
			continue
		}
		rate.Total++
		if tr.round.WinningTeam == tr.team {
			rate.Wins++
		}
		out[tr.round.PlantSite] = rate
	}
	for s, rate := range out {
		rate.Percent = percent(rate.Wins, rate.Total)
		out[s] = rate
	}
	return out
}

func retake(rounds []teamRound) domain.Rate {
	var rate domain.Rate
	for _, tr := range rounds {
		if tr.round.PlantSite == "" || tr.round.ResultCode != resultDefused {
			continue
		}
		rate.Total++
		if tr.round.WinningTeam == tr.team {
			rate.Wins++
		}
	}
	rate.Percent = percent(rate.Wins, rate.Total)
	return rate
}

func saveRate(rounds []teamRound, puuid string) domain.SaveRate {
	var rate domain.SaveRate
	for _, tr := range rounds {
		present := false
		for _, ps := range tr.round.PlayerStats {
			if ps.Puuid == puuid {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		rate.Total++

		died := false
		for _, v := range tr.round.Victims {
			if v == puuid {
				died = true
				break
			}
		}
		if !died {
			rate.Survived++
		}
	}
	rate.Percent = percent(rate.Survived, rate.Total)
	return rate
}
