package sink

import (
	"fmt"
	"io"
	"path"
	"sync"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/stats"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
)

// Console renders snapshots as tables. Consecutive waiting notices are
// collapsed into one line.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	waiting bool
	logger  zerolog.Logger
}

func NewConsole(w io.Writer, logger zerolog.Logger) *Console {
	return &Console{w: w, logger: logger.With().Str("sink", "console").Logger()}
}

func (c *Console) Snapshot(snapshot *domain.MatchSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiting = false
	RenderSnapshot(c.w, snapshot)
}

func (c *Console) Waiting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiting {
		return
	}
	c.waiting = true
	fmt.Fprintln(c.w, "Waiting for a match...")
}

func (c *Console) Ended(matchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiting = false
	fmt.Fprintf(c.w, "\nMatch %s ended.\n", matchID)
}

func (c *Console) StateChanged(matchID string, ev api.Event) {
	c.logger.Debug().Str("match_id", matchID).Str("uri", ev.URI).Msg("state changed")
}

// RenderSnapshot writes the lobby table followed by the tactical table.
func RenderSnapshot(w io.Writer, snapshot *domain.MatchSnapshot) {
	fmt.Fprintf(w, "\nMap: %s  |  Match: %s  |  Players: %d\n\n",
		mapName(snapshot.MapID), snapshot.MatchID, len(snapshot.Participants))

	table := newTable(w)
	table.Header("TEAM", "PLAYER", "AGENT", "LEVEL", "RANK", "PEAK", "WR", "K/D", "HS%", "VANDAL")
	for _, p := range snapshot.Participants {
		table.Append(
			p.TeamID,
			p.DisplayName(),
			p.AgentName,
			p.LevelLabel(),
			p.Rank.CurrentLabel,
			p.Rank.PeakLabel,
			p.Rank.WinRateLabel(),
			kdLabel(p),
			headshotLabel(p),
			p.SkinName,
		)
	}
	table.Render()

	fmt.Fprintln(w)
	tactical := newTable(w)
	header := []any{"PLAYER"}
	for _, site := range stats.Sites {
		header = append(header, site+" PUSH")
	}
	header = append(header, "RETAKE", "SAVE")
	tactical.Header(header...)
	for _, p := range snapshot.Participants {
		row := []any{p.DisplayName()}
		for _, site := range stats.Sites {
			row = append(row, rateLabel(p.HasStats, p.Tactical.SitePush[site].Percent, p.Tactical.SitePush[site].Total))
		}
		row = append(row,
			rateLabel(p.HasStats, p.Tactical.Retake.Percent, p.Tactical.Retake.Total),
			rateLabel(p.HasStats, p.Tactical.Save.Percent, p.Tactical.Save.Total),
		)
		tactical.Append(row...)
	}
	tactical.Render()
}

// RenderHistory writes one row per archived match.
func RenderHistory(w io.Writer, matches []domain.ArchivedMatch) {
	table := newTable(w)
	table.Header("MATCH", "MAP", "STARTED", "ENDED", "PLAYERS")
	for _, m := range matches {
		ended := "-"
		if m.EndedAt != nil {
			ended = m.EndedAt.Local().Format("2006-01-02 15:04")
		}
		table.Append(
			m.MatchID,
			mapName(m.MapID),
			m.CreatedAt.Local().Format("2006-01-02 15:04"),
			ended,
			fmt.Sprintf("%d", m.Participants),
		)
	}
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

func rateLabel(known bool, percent float64, total int) string {
	if !known || total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%% (%d)", percent, total)
}

func mapName(mapID string) string {
	if mapID == "" {
		return "?"
	}
	return path.Base(mapID)
}
