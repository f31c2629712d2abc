package sink

import (
	"fmt"

	"valorant-live-tracker/internal/domain"
)

const (
	StatusSuccess = "success"
	StatusNoGame  = "no_game"
)

// GamePayload is the JSON body shared by the dashboard push and the status
// endpoint.
type GamePayload struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	MatchID string       `json:"match_id,omitempty"`
	MapID   string       `json:"map_id,omitempty"`
	Players []GamePlayer `json:"players,omitempty"`
}

type GamePlayer struct {
	Puuid      string               `json:"puuid"`
	GameName   string               `json:"game_name"`
	TagLine    string               `json:"tag_line"`
	TeamID     string               `json:"team_id"`
	AgentName  string               `json:"agent_name"`
	Rank       string               `json:"rank"`
	PeakRank   string               `json:"peak_rank"`
	WinRate    string               `json:"win_rate"`
	Level      string               `json:"level"`
	VandalSkin string               `json:"vandal_skin"`
	SkinUUID   string               `json:"skin_uuid"`
	KD         string               `json:"kd"`
	Headshot   string               `json:"headshot_pct"`
	Tactical   domain.TacticalStats `json:"tactical"`
}

func NoGamePayload() GamePayload {
	return GamePayload{Status: StatusNoGame, Message: "no active match"}
}

func NewGamePayload(snapshot *domain.MatchSnapshot) GamePayload {
	if snapshot == nil {
		return NoGamePayload()
	}
	players := make([]GamePlayer, 0, len(snapshot.Participants))
	for _, p := range snapshot.Participants {
		players = append(players, GamePlayer{
			Puuid:      p.Puuid,
			GameName:   p.GameName,
			TagLine:    p.TagLine,
			TeamID:     p.TeamID,
			AgentName:  p.AgentName,
			Rank:       p.Rank.CurrentLabel,
			PeakRank:   p.Rank.PeakLabel,
			WinRate:    p.Rank.WinRateLabel(),
			Level:      p.LevelLabel(),
			VandalSkin: p.SkinName,
			SkinUUID:   p.SkinID,
			KD:         kdLabel(p),
			Headshot:   headshotLabel(p),
			Tactical:   p.Tactical,
		})
	}
	return GamePayload{
		Status:  StatusSuccess,
		MatchID: snapshot.MatchID,
		MapID:   snapshot.MapID,
		Players: players,
	}
}

func kdLabel(p domain.EnrichedParticipant) string {
	if !p.HasStats {
		return "?"
	}
	return fmt.Sprintf("%.2f", p.KD)
}

func headshotLabel(p domain.EnrichedParticipant) string {
	if !p.HasStats {
		return "?"
	}
	return fmt.Sprintf("%.1f%%", p.HeadshotPct)
}
