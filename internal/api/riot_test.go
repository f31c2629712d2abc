package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"valorant-live-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *domain.SessionContext {
	return &domain.SessionContext{
		Puuid:            "me",
		AccessToken:      "access",
		EntitlementToken: "ent",
		ClientVersion:    "release-09.00",
		Region:           "eu",
		Shard:            "eu",
	}
}

func newTestRiot(t *testing.T, handler http.Handler) *RiotClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRiotClientWithHosts(testSession(), Hosts{GLZ: srv.URL, PD: srv.URL, Shared: srv.URL}, zerolog.Nop())
}

func TestSessionHosts(t *testing.T) {
	t.Parallel()

	s := domain.SessionContext{Region: "na", Shard: "na", LocalPort: "5555"}
	assert.Equal(t, "https://glz-na-1.na.a.pvp.net", s.GLZHost())
	assert.Equal(t, "https://pd.na.a.pvp.net", s.PDHost())
	assert.Equal(t, "https://shared.na.a.pvp.net", s.SharedHost())
	assert.Equal(t, "127.0.0.1:5555", s.LocalHost())
}

func TestCurrentMatchID(t *testing.T) {
	t.Parallel()

	var inMatch atomic.Bool
	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/core-game/v1/players/me", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "ent", r.Header.Get("X-Riot-Entitlements-JWT"))
		assert.Equal(t, "release-09.00", r.Header.Get("X-Riot-ClientVersion"))
		assert.Equal(t, DefaultClientPlatform, r.Header.Get("X-Riot-ClientPlatform"))
		if !inMatch.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"Subject":"me","MatchID":"M1"}`)
	}))

	id, err := c.CurrentMatchID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)

	inMatch.Store(true)
	id, err = c.CurrentMatchID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "M1", id)
}

func TestCurrentMatchIDServerError(t *testing.T) {
	t.Parallel()

	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := c.CurrentMatchID(context.Background())
	assert.Error(t, err)
}

func TestCoreGameRosterAndLoadouts(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/core-game/v1/matches/M1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"MatchID":"M1","MapID":"/Game/Maps/Ascent/Ascent","Players":[
			{"Subject":"a","TeamID":"Blue","CharacterID":"ADD6443A-41BD-E414-F6AD-E58D267F4E95","PlayerIdentity":{"AccountLevel":120,"HideAccountLevel":false}},
			{"Subject":"b","TeamID":"Red","CharacterID":"x","PlayerIdentity":{"AccountLevel":30,"HideAccountLevel":true}}]}`)
	})
	mux.HandleFunc("/core-game/v1/matches/M1/loadouts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Loadouts":[{"CharacterID":"x","Loadout":{"Subject":"a","Items":{
			"9C82E19D-4575-0200-1A81-3EACF00CF872":{"Sockets":{"BCEF87D6-209B-46C6-8B19-FBE40BD95ABC":{"Item":{"ID":"SKIN-1"}}}}}}}]}`)
	})
	c := newTestRiot(t, mux)

	m, err := c.CoreGameMatch(context.Background(), "M1")
	require.NoError(t, err)
	roster := m.Roster()
	require.Len(t, roster.Players, 2)
	assert.Equal(t, "add6443a-41bd-e414-f6ad-e58d267f4e95", roster.Players[0].AgentID)
	assert.Equal(t, 120, roster.Players[0].AccountLevel)
	assert.True(t, roster.Players[1].HideLevel)

	l, err := c.Loadouts(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "skin-1"}, l.VandalSkins(), "uppercase map keys are normalized")
}

func TestAccountXP(t *testing.T) {
	t.Parallel()

	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account-xp/v1/players/me", r.URL.Path)
		_, _ = io.WriteString(w, `{"Subject":"me","Progress":{"Level":87,"XP":1200}}`)
	}))

	resp, err := c.AccountXP(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, 87, resp.Progress.Level)
}

func TestMMRProfileToleratesKeyCasing(t *testing.T) {
	t.Parallel()

	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Subject":"p","QueueSkills":{"Competitive":{"SeasonalInfoBySeasonID":{
			"ACT-1":{"CompetitiveTier":14,"RankedRating":61,"NumberOfWins":3,"NumberOfWinsWithPlacements":4,"NumberOfGames":7,"WinsByTier":{"15":1}},
			"act-0":null}}}}`)
	}))

	resp, err := c.MMR(context.Background(), "p")
	require.NoError(t, err)
	profile := resp.Profile("p")
	require.Len(t, profile.Seasons, 1)
	s := profile.Seasons["act-1"]
	assert.Equal(t, 14, s.Tier)
	assert.Equal(t, 61, s.RankedRating)
	assert.Equal(t, 4, s.WinsWithPlacements)
	assert.Equal(t, map[string]int{"15": 1}, s.WinsByTier)
}

func TestRateLimitTripsBreaker(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	for i := 0; i < 3; i++ {
		_, err := c.MMR(context.Background(), "p")
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	_, err := c.MMR(context.Background(), "p")
	assert.ErrorIs(t, err, ErrRateLimited, "open circuit reports a rate limit")
	assert.Equal(t, int32(3), hits.Load(), "open circuit short-circuits the call")

	info := c.GetRateLimitInfo()
	assert.Equal(t, 3, info.Limited)
	assert.Equal(t, 12, info.RetryAfter)
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	for i := 0; i < 5; i++ {
		_, err := c.MatchDetails(context.Background(), "gone")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestPlayerNamesPut(t *testing.T) {
	t.Parallel()

	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `["a","b"]`, string(body))
		_, _ = io.WriteString(w, `[{"Subject":"a","GameName":"Alpha","TagLine":"EU1"},{"Subject":"b","GameName":"Bravo","TagLine":"000"}]`)
	}))

	names, err := c.PlayerNames(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "Alpha", names[0].GameName)
	assert.Equal(t, "000", names[1].TagLine)
}

func TestMatchDetailsHistorical(t *testing.T) {
	t.Parallel()

	c := newTestRiot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/match-details/v1/matches/H1", r.URL.Path)
		_, _ = io.WriteString(w, `{"matchInfo":{"matchId":"H1","mapId":"/Game/Maps/Pitt/Pitt"},
			"players":[{"subject":"me","teamId":"Blue","stats":{"kills":20,"deaths":10}},{"subject":"x","teamId":"Red","stats":null}],
			"roundResults":[{"roundNum":0,"plantSite":"a","winningTeam":"Blue","roundResultCode":"Defused",
				"playerStats":[{"subject":"me","damage":[{"receiver":"x","headshots":2,"bodyshots":3,"legshots":1}],"kills":[{"victim":"x"}]},
				               {"subject":"x","kills":[{"victim":"me"}]}]}]}`)
	}))

	resp, err := c.MatchDetails(context.Background(), "H1")
	require.NoError(t, err)
	m := resp.Historical("H1")
	assert.Equal(t, "/Game/Maps/Pitt/Pitt", m.MapID)
	assert.Equal(t, domain.MatchPlayerTotals{TeamID: "Blue", Kills: 20, Deaths: 10}, m.Players["me"])
	assert.Equal(t, domain.MatchPlayerTotals{TeamID: "Red"}, m.Players["x"])
	require.Len(t, m.Rounds, 1)
	r := m.Rounds[0]
	assert.Equal(t, "A", r.PlantSite)
	assert.Equal(t, "Defused", r.ResultCode)
	assert.ElementsMatch(t, []string{"x", "me"}, r.Victims)
	assert.Equal(t, []domain.DamageEntry{{Headshots: 2, Bodyshots: 3, Legshots: 1}}, r.PlayerStats[0].Damage)
}

func TestSeasonsAndHistory(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/content-service/v3/content", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Seasons":[{"ID":"EP","Type":"episode","IsActive":true},{"ID":"ACT-NOW","Type":"act","IsActive":true}]}`)
	})
	mux.HandleFunc("/match-history/v1/history/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("startIndex"))
		assert.Equal(t, "15", r.URL.Query().Get("endIndex"))
		assert.Equal(t, "competitive", r.URL.Query().Get("queue"))
		_, _ = io.WriteString(w, `{"Subject":"me","History":[{"MatchID":"H1"},{"MatchID":"H2"}]}`)
	})
	c := newTestRiot(t, mux)

	content, err := c.Seasons(context.Background())
	require.NoError(t, err)
	seasons := content.DomainSeasons()
	require.Len(t, seasons, 2)
	assert.Equal(t, "act-now", seasons[1].ID)

	hist, err := c.MatchHistory(context.Background(), "me", 0, 15, QueueComp)
	require.NoError(t, err)
	require.Len(t, hist.History, 2)
	assert.Equal(t, "H2", hist.History[1].MatchID)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	_, err := decode[MMRResponse]([]byte(`{"QueueSkills":`))
	assert.Error(t, err)

	resp, err := decode[MMRResponse]([]byte(`{"QueueSkills":{"competitive":{"SeasonalInfoBySeasonID":null}}}`))
	require.NoError(t, err)
	assert.Empty(t, resp.Profile("p").Seasons)
}
