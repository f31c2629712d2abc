package sink

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/monitor"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ monitor.Sink = (*Console)(nil)
	_ monitor.Sink = (*Push)(nil)
	_ monitor.Sink = (*Archive)(nil)
)

func testSnapshot() *domain.MatchSnapshot {
	return &domain.MatchSnapshot{
		MatchID: "M1",
		MapID:   "/Game/Maps/Ascent/Ascent",
		Participants: []domain.EnrichedParticipant{
			{
				Puuid: "a", GameName: "Alpha", TagLine: "EU1", TeamID: "Blue", AgentName: "Jett",
				SkinID: "s1", SkinName: "Prime Vandal", AccountLevel: 120, HasStats: true, KD: 1.5, HeadshotPct: 25,
				Rank: domain.RankInfo{CurrentLabel: "Gold 2 (45 RR)", PeakLabel: "Platinum 1", WinRate: 60, GamesSampled: 10, WinRateKnown: true},
				Tactical: domain.TacticalStats{
					SitePush: map[string]domain.Rate{"A": {Wins: 1, Total: 2, Percent: 50}},
					Save:     domain.SaveRate{Survived: 2, Total: 3, Percent: 66.7},
				},
			},
			{
				Puuid: "b", TeamID: "Red", AgentName: "?", LevelHidden: true,
				Rank: domain.RankInfo{CurrentLabel: "Unranked", PeakLabel: "Unranked"},
			},
		},
	}
}

func TestGamePayload(t *testing.T) {
	t.Parallel()

	p := NewGamePayload(testSnapshot())
	assert.Equal(t, StatusSuccess, p.Status)
	assert.Equal(t, "M1", p.MatchID)
	require.Len(t, p.Players, 2)
	assert.Equal(t, "60% (10)", p.Players[0].WinRate)
	assert.Equal(t, "1.50", p.Players[0].KD)
	assert.Equal(t, "25.0%", p.Players[0].Headshot)
	assert.Equal(t, "120", p.Players[0].Level)
	assert.Equal(t, "?", p.Players[1].KD)
	assert.Equal(t, "?", p.Players[1].WinRate)
	assert.Equal(t, domain.HiddenLevel, p.Players[1].Level)

	assert.Equal(t, StatusNoGame, NewGamePayload(nil).Status)
}

func TestConsoleRendersSnapshot(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConsole(&buf, zerolog.Nop())
	c.Snapshot(testSnapshot())

	out := buf.String()
	assert.Contains(t, out, "Ascent")
	assert.Contains(t, out, "Alpha#EU1")
	assert.Contains(t, out, "Gold 2 (45 RR)")
	assert.Contains(t, out, "Prime Vandal")
	assert.Contains(t, out, "50.0% (2)")
	assert.Contains(t, out, "66.7% (3)")
	assert.Contains(t, out, domain.HiddenLevel)
}

func TestConsoleCollapsesWaiting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConsole(&buf, zerolog.Nop())
	c.Waiting()
	c.Waiting()
	c.Ended("M1")
	c.Waiting()

	assert.Equal(t, 2, strings.Count(buf.String(), "Waiting for a match"))
	assert.Contains(t, buf.String(), "Match M1 ended.")
}

func TestRenderHistory(t *testing.T) {
	t.Parallel()

	ended := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	RenderHistory(&buf, []domain.ArchivedMatch{
		{MatchID: "M2", MapID: "/Game/Maps/Pitt/Pitt", CreatedAt: ended, Participants: 10},
		{MatchID: "M1", MapID: "", CreatedAt: ended, EndedAt: &ended, Participants: 9},
	})
	out := buf.String()
	assert.Contains(t, out, "M2")
	assert.Contains(t, out, "Pitt")
	assert.Contains(t, out, "10")
}

func TestPushPostsSnapshot(t *testing.T) {
	t.Parallel()

	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PushPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- b
	}))
	defer srv.Close()

	p := NewPush(srv.URL, zerolog.Nop())
	p.Snapshot(testSnapshot())
	p.Wait()

	var got GamePayload
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, "M1", got.MatchID)
	assert.Equal(t, "Alpha", got.Players[0].GameName)
	assert.Equal(t, "Prime Vandal", got.Players[0].VandalSkin)
}

func TestPushFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewPush(srv.URL, zerolog.Nop())
	assert.Error(t, p.post([]byte(`{}`)))

	dead := NewPush("http://127.0.0.1:1", zerolog.Nop())
	dead.Snapshot(testSnapshot())
	dead.Wait()
}

type fakeStore struct {
	mu    sync.Mutex
	saved []string
	ended map[string]time.Time
	err   error
}

func (f *fakeStore) SaveSnapshot(_ context.Context, s *domain.MatchSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s.MatchID)
	return f.err
}

func (f *fakeStore) MarkEnded(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended[id] = at
	return f.err
}

func TestArchiveRecordsLifecycle(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{ended: map[string]time.Time{}}
	a := NewArchive(store, clock.NewFake(start), zerolog.Nop())

	a.Snapshot(testSnapshot())
	a.Waiting()
	a.Ended("M1")

	assert.Equal(t, []string{"M1"}, store.saved)
	assert.Equal(t, start, store.ended["M1"])
}

func TestArchiveSwallowsStoreErrors(t *testing.T) {
	t.Parallel()

	store := &fakeStore{ended: map[string]time.Time{}, err: assert.AnError}
	a := NewArchive(store, clock.NewFake(time.Now()), zerolog.Nop())
	assert.NotPanics(t, func() {
		a.Snapshot(testSnapshot())
		a.Ended("M1")
	})
}
