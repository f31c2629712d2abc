package stats

import (
	"testing"

	"valorant-live-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const me = "puuid-me"

func match(id, mapID, team string, kills, deaths int, rounds ...domain.RoundRecord) domain.HistoricalMatch {
	return domain.HistoricalMatch{
		MatchID: id,
		MapID:   mapID,
		Players: map[string]domain.MatchPlayerTotals{
			me:      {TeamID: team, Kills: kills, Deaths: deaths},
			"other": {TeamID: "Red", Kills: 1, Deaths: 1},
		},
		Rounds: rounds,
	}
}

func played(dmg ...domain.DamageEntry) []domain.RoundPlayerStats {
	return []domain.RoundPlayerStats{{Puuid: me, Damage: dmg}, {Puuid: "other"}}
}

func TestHeadshotPercentage(t *testing.T) {
	t.Parallel()

	m := match("m1", "/Game/Maps/Ascent/Ascent", "Blue", 10, 5, domain.RoundRecord{
		PlayerStats: played(domain.DamageEntry{Headshots: 10, Bodyshots: 20, Legshots: 0}),
	})

	got := NewAggregator(DefaultWindow, DefaultMapWindow).Aggregate(me, []domain.HistoricalMatch{m}, "")
	assert.Equal(t, 33.3, got.HeadshotPct)
	assert.Equal(t, 2.0, got.KD)
	assert.Equal(t, 1, got.MatchesUsed)
}

func TestKDWithZeroDeaths(t *testing.T) {
	t.Parallel()

	m := match("m1", "/Game/Maps/Bind/Bind", "Blue", 5, 0)
	got := NewAggregator(DefaultWindow, DefaultMapWindow).Aggregate(me, []domain.HistoricalMatch{m}, "")
	assert.Equal(t, 5.0, got.KD)
	assert.Equal(t, 0.0, got.HeadshotPct, "no shots recorded")
}

func TestKDRoundsToTwoDecimals(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.33, KD(4, 3))
	assert.Equal(t, 0.67, KD(2, 3))
	assert.Equal(t, 0.0, KD(0, 0))
}

func TestKDWindow(t *testing.T) {
	t.Parallel()

	var matches []domain.HistoricalMatch
	for i := 0; i < 7; i++ {
		matches = append(matches, match("m", "/Game/Maps/Bind/Bind", "Blue", 2, 1))
	}
	matches[6].Players[me] = domain.MatchPlayerTotals{TeamID: "Blue", Kills: 100, Deaths: 1}

	got := NewAggregator(5, 5).Aggregate(me, matches, "")
	assert.Equal(t, 2.0, got.KD, "matches past the window are ignored")
	assert.Equal(t, 5, got.MatchesUsed)
}

func TestSitePushWinrate(t *testing.T) {
	t.Parallel()

	m := match("m1", "/Game/Maps/Ascent/Ascent", "Blue", 0, 0,
		domain.RoundRecord{PlantSite: "A", WinningTeam: "Blue", PlayerStats: played()},
		domain.RoundRecord{PlantSite: "A", WinningTeam: "Red", PlayerStats: played()},
	)

	tac := NewAggregator(DefaultWindow, DefaultMapWindow).Tactical(me, []domain.HistoricalMatch{m}, "")
	require.Len(t, tac.SitePush, 3)
	assert.Equal(t, domain.Rate{Wins: 1, Total: 2, Percent: 50.0}, tac.SitePush["A"])
	assert.Equal(t, domain.Rate{}, tac.SitePush["B"])
	assert.Equal(t, domain.Rate{}, tac.SitePush["C"])
}

func TestRetakeWinrate(t *testing.T) {
	t.Parallel()

	m := match("m1", "/Game/Maps/Haven/Haven", "Blue", 0, 0,
		domain.RoundRecord{PlantSite: "C", WinningTeam: "Blue", ResultCode: "Defused"},
		domain.RoundRecord{PlantSite: "B", WinningTeam: "Red", ResultCode: "Defused"},
		domain.RoundRecord{PlantSite: "A", WinningTeam: "Red", ResultCode: "Bomb detonated"},
		domain.RoundRecord{WinningTeam: "Blue", ResultCode: "Defused"},
	)

	tac := NewAggregator(DefaultWindow, DefaultMapWindow).Tactical(me, []domain.HistoricalMatch{m}, "")
	assert.Equal(t, domain.Rate{Wins: 1, Total: 2, Percent: 50.0}, tac.Retake)
}

func TestSaveRate(t *testing.T) {
	t.Parallel()

	m := match("m1", "/Game/Maps/Haven/Haven", "Blue", 0, 0,
		domain.RoundRecord{PlayerStats: played()},
		domain.RoundRecord{PlayerStats: played(), Victims: []string{"other", me}},
		domain.RoundRecord{PlayerStats: played(), Victims: []string{"other"}},
		domain.RoundRecord{PlayerStats: []domain.RoundPlayerStats{{Puuid: "other"}}},
	)

	tac := NewAggregator(DefaultWindow, DefaultMapWindow).Tactical(me, []domain.HistoricalMatch{m}, "")
	assert.Equal(t, domain.SaveRate{Survived: 2, Total: 3, Percent: 66.7}, tac.Save)
}

func TestTacticalMapScoping(t *testing.T) {
	t.Parallel()

	win := domain.RoundRecord{PlantSite: "B", WinningTeam: "Blue"}
	var matches []domain.HistoricalMatch
	matches = append(matches, match("other-map", "/Game/Maps/Bonsai/Bonsai", "Blue", 0, 0, win))
	for i := 0; i < 7; i++ {
		matches = append(matches, match("pitt", "/Game/Maps/Pitt/Pitt", "Blue", 0, 0, win))
	}

	tac := NewAggregator(DefaultWindow, DefaultMapWindow).Tactical(me, matches, "/Game/Maps/PITT/Pitt")
	assert.Equal(t, 5, tac.SitePush["B"].Total, "stops after five map matches")
	assert.Equal(t, 100.0, tac.SitePush["B"].Percent)

	tac = NewAggregator(DefaultWindow, DefaultMapWindow).Tactical(me, matches, "Icebox")
	assert.Equal(t, 0, tac.SitePush["B"].Total)
}

func TestAbsentParticipantSkipped(t *testing.T) {
	t.Parallel()

	m := domain.HistoricalMatch{
		MapID:   "/Game/Maps/Bind/Bind",
		Players: map[string]domain.MatchPlayerTotals{"other": {TeamID: "Red", Kills: 9}},
		Rounds:  []domain.RoundRecord{{PlantSite: "A", WinningTeam: "Red"}},
	}

	got := NewAggregator(DefaultWindow, DefaultMapWindow).Aggregate(me, []domain.HistoricalMatch{m}, "")
	assert.Equal(t, 0, got.MatchesUsed)
	assert.Equal(t, 0.0, got.KD)
	assert.Equal(t, 0, got.Tactical.SitePush["A"].Total)
	assert.Equal(t, 0, got.Tactical.Save.Total)
}

func TestMapKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pitt", MapKey("/Game/Maps/Pitt/Pitt"))
	assert.Equal(t, "ascent", MapKey("Ascent"))
	assert.Equal(t, "", MapKey(""))
}
