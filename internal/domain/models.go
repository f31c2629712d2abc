package domain

import (
	"fmt"
	"time"
)

// SessionContext is built once at startup from the local client and never
// changes for the life of the process.
type SessionContext struct {
	Puuid            string
	AccessToken      string
	EntitlementToken string
	ClientVersion    string
	ClientPlatform   string
	Region           string
	Shard            string
	LocalPort        string
	LocalPassword    string
}

func (s SessionContext) GLZHost() string {
	return fmt.Sprintf("https://glz-%s-1.%s.a.pvp.net", s.Region, s.Shard)
}

func (s SessionContext) PDHost() string {
	return fmt.Sprintf("https://pd.%s.a.pvp.net", s.Shard)
}

func (s SessionContext) SharedHost() string {
	return fmt.Sprintf("https://shared.%s.a.pvp.net", s.Shard)
}

func (s SessionContext) LocalHost() string {
	return fmt.Sprintf("127.0.0.1:%s", s.LocalPort)
}

// Roster is the live match as reported by the core-game endpoint.
type Roster struct {
	MatchID string
	MapID   string
	Players []RosterPlayer
}

type RosterPlayer struct {
	Puuid        string
	TeamID       string
	AgentID      string
	AccountLevel int
	HideLevel    bool
}

type PlayerName struct {
	Puuid    string
	GameName string
	TagLine  string
}

// RankInfo is the neutral rank description of one participant. Labels carry
// no presentation markup.
type RankInfo struct {
	CurrentTier  int    `json:"current_tier"`
	RankedRating int    `json:"ranked_rating"`
	CurrentLabel string `json:"current_label"`
	PeakTier     int    `json:"peak_tier"`
	PeakLabel    string `json:"peak_label"`
	WinRate      int    `json:"win_rate"`
	GamesSampled int    `json:"games_sampled"`
	// WinRateKnown is false when no games were found in any season.
	WinRateKnown bool `json:"win_rate_known"`
}

// WinRateLabel renders "57% (21)" or "?".
func (r RankInfo) WinRateLabel() string {
	if !r.WinRateKnown {
		return "?"
	}
	return fmt.Sprintf("%d%% (%d)", r.WinRate, r.GamesSampled)
}

type Rate struct {
	Wins    int     `json:"wins"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type SaveRate struct {
	Survived int     `json:"survived"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
}

type TacticalStats struct {
	SitePush map[string]Rate `json:"site_push"`
	Retake   Rate            `json:"retake"`
	Save     SaveRate        `json:"save"`
}

type PlayerStats struct {
	KD          float64       `json:"kd"`
	HeadshotPct float64       `json:"headshot_pct"`
	MatchesUsed int           `json:"matches_used"`
	Tactical    TacticalStats `json:"tactical"`
}

type EnrichedParticipant struct {
	Puuid        string        `json:"puuid"`
	GameName     string        `json:"game_name"`
	TagLine      string        `json:"tag_line"`
	TeamID       string        `json:"team_id"`
	AgentID      string        `json:"agent_id"`
	AgentName    string        `json:"agent_name"`
	SkinID       string        `json:"skin_id"`
	SkinName     string        `json:"skin_name"`
	AccountLevel int           `json:"account_level"`
	LevelHidden  bool          `json:"level_hidden"`
	Rank         RankInfo      `json:"rank"`
	HasStats     bool          `json:"has_stats"`
	KD           float64       `json:"kd"`
	HeadshotPct  float64       `json:"headshot_pct"`
	Tactical     TacticalStats `json:"tactical"`
}

const HiddenLevel = "hidden"

func (p EnrichedParticipant) DisplayName() string {
	if p.GameName == "" {
		return "?"
	}
	if p.TagLine == "" {
		return p.GameName
	}
	return p.GameName + "#" + p.TagLine
}

func (p EnrichedParticipant) LevelLabel() string {
	if p.LevelHidden {
		return HiddenLevel
	}
	return fmt.Sprintf("%d", p.AccountLevel)
}

// MatchSnapshot is immutable once published. A new match id produces a new
// snapshot.
type MatchSnapshot struct {
	MatchID      string                `json:"match_id"`
	MapID        string                `json:"map_id"`
	CreatedAt    time.Time             `json:"created_at"`
	Participants []EnrichedParticipant `json:"participants"`
}

// SkillProfile is the competitive skill record of one player keyed by season.
type SkillProfile struct {
	Puuid   string
	Seasons map[string]SeasonSkill
}

type SeasonSkill struct {
	Tier               int
	RankedRating       int
	Wins               int
	WinsWithPlacements int
	Games              int
	WinsByTier         map[string]int
}

type Season struct {
	ID       string
	Type     string
	IsActive bool
}

// HistoricalMatch is one completed match reduced to what the stats
// aggregator reads.
type HistoricalMatch struct {
	MatchID string
	MapID   string
	Players map[string]MatchPlayerTotals
	Rounds  []RoundRecord
}

type MatchPlayerTotals struct {
	TeamID string
	Kills  int
	Deaths int
}

type RoundRecord struct {
	PlantSite   string
	WinningTeam string
	ResultCode  string
	PlayerStats []RoundPlayerStats
	// Victims lists every player killed in the round, from the round-level
	// kill feed and the per-player kill lists combined.
	Victims []string
}

type RoundPlayerStats struct {
	Puuid  string
	Damage []DamageEntry
}

type DamageEntry struct {
	Headshots int
	Bodyshots int
	Legshots  int
}

// ArchivedMatch is one row of the local match archive.
type ArchivedMatch struct {
	MatchID      string
	MapID        string
	CreatedAt    time.Time
	EndedAt      *time.Time
	Participants int
}
