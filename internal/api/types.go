package api

import (
	"strings"

	"valorant-live-tracker/internal/domain"
)

const (
	VandalID     = "9c82e19d-4575-0200-1a81-3eacf00cf872"
	SkinSocketID = "bcef87d6-209b-46c6-8b19-fbe40bd95abc"
	QueueComp    = "competitive"
)

type EntitlementsResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	Subject     string `json:"subject"`
}

type PlayerMatchResponse struct {
	MatchID string `json:"MatchID"`
}

type CoreGameMatchResponse struct {
	MatchID string           `json:"MatchID"`
	MapID   string           `json:"MapID"`
	Players []CoreGamePlayer `json:"Players"`
}

type CoreGamePlayer struct {
	Subject        string         `json:"Subject"`
	TeamID         string         `json:"TeamID"`
	CharacterID    string         `json:"CharacterID"`
	PlayerIdentity PlayerIdentity `json:"PlayerIdentity"`
}

type PlayerIdentity struct {
	AccountLevel     int  `json:"AccountLevel"`
	HideAccountLevel bool `json:"HideAccountLevel"`
}

func (r *CoreGameMatchResponse) Roster() domain.Roster {
	roster := domain.Roster{MatchID: r.MatchID, MapID: r.MapID}
	for _, p := range r.Players {
		if p.Subject == "" {
			continue
		}
		roster.Players = append(roster.Players, domain.RosterPlayer{
			Puuid:        p.Subject,
			TeamID:       p.TeamID,
			AgentID:      strings.ToLower(p.CharacterID),
			AccountLevel: p.PlayerIdentity.AccountLevel,
			HideLevel:    p.PlayerIdentity.HideAccountLevel,
		})
	}
	return roster
}

type LoadoutsResponse struct {
	Loadouts []LoadoutEntry `json:"Loadouts"`
}

type LoadoutEntry struct {
	CharacterID string  `json:"CharacterID"`
	Loadout     Loadout `json:"Loadout"`
}

type Loadout struct {
	Subject string                 `json:"Subject"`
	Items   map[string]LoadoutItem `json:"Items"`
}

type LoadoutItem struct {
	Sockets map[string]LoadoutSocket `json:"Sockets"`
}

type LoadoutSocket struct {
	Item struct {
		ID string `json:"ID"`
	} `json:"Item"`
}

// VandalSkins maps each player to the skin id on their Vandal.
func (r *LoadoutsResponse) VandalSkins() map[string]string {
	out := make(map[string]string, len(r.Loadouts))
	for _, l := range r.Loadouts {
		item, ok := l.Loadout.Items[VandalID]
		if !ok {
			continue
		}
		socket, ok := item.Sockets[SkinSocketID]
		if !ok || socket.Item.ID == "" {
			continue
		}
		out[l.Loadout.Subject] = strings.ToLower(socket.Item.ID)
	}
	return out
}

type NameEntry struct {
	Subject  string `json:"Subject"`
	GameName string `json:"GameName"`
	TagLine  string `json:"TagLine"`
}

// AccountXPResponse carries the account level. Riot only answers this for
// the signed-in player; other puuids usually come back as an error.
type AccountXPResponse struct {
	Progress struct {
		Level int `json:"Level"`
	} `json:"Progress"`
}

type MMRResponse struct {
	Subject     string                `json:"Subject"`
	QueueSkills map[string]QueueSkill `json:"QueueSkills"`
}

type QueueSkill struct {
	SeasonalInfoBySeasonID map[string]*SeasonalInfo `json:"SeasonalInfoBySeasonID"`
}

type SeasonalInfo struct {
	CompetitiveTier            int            `json:"CompetitiveTier"`
	RankedRating               int            `json:"RankedRating"`
	NumberOfWins               int            `json:"NumberOfWins"`
	NumberOfWinsWithPlacements int            `json:"NumberOfWinsWithPlacements"`
	NumberOfGames              int            `json:"NumberOfGames"`
	WinsByTier                 map[string]int `json:"WinsByTier"`
}

// Profile extracts the competitive queue. Keys were lowercased by decode.
func (r *MMRResponse) Profile(puuid string) *domain.SkillProfile {
	profile := &domain.SkillProfile{Puuid: puuid, Seasons: map[string]domain.SeasonSkill{}}
	queue, ok := r.QueueSkills[QueueComp]
	if !ok {
		return profile
	}
	for id, s := range queue.SeasonalInfoBySeasonID {
		if s == nil {
			continue
		}
		profile.Seasons[id] = domain.SeasonSkill{
			Tier:               s.CompetitiveTier,
			RankedRating:       s.RankedRating,
			Wins:               s.NumberOfWins,
			WinsWithPlacements: s.NumberOfWinsWithPlacements,
			Games:              s.NumberOfGames,
			WinsByTier:         s.WinsByTier,
		}
	}
	return profile
}

type ContentResponse struct {
	Seasons []ContentSeason `json:"Seasons"`
}

type ContentSeason struct {
	ID       string `json:"ID"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
	IsActive bool   `json:"IsActive"`
}

func (r *ContentResponse) DomainSeasons() []domain.Season {
	out := make([]domain.Season, 0, len(r.Seasons))
	for _, s := range r.Seasons {
		out = append(out, domain.Season{ID: strings.ToLower(s.ID), Type: s.Type, IsActive: s.IsActive})
	}
	return out
}

type MatchHistoryResponse struct {
	Subject string              `json:"Subject"`
	History []MatchHistoryEntry `json:"History"`
}

type MatchHistoryEntry struct {
	MatchID       string `json:"MatchID"`
	GameStartTime int64  `json:"GameStartTime"`
	QueueID       string `json:"QueueID"`
}

type MatchDetailsResponse struct {
	MatchInfo struct {
		MatchID string `json:"matchId"`
		MapID   string `json:"mapId"`
	} `json:"matchInfo"`
	Players      []MatchDetailsPlayer `json:"players"`
	RoundResults []RoundResult        `json:"roundResults"`
}

type MatchDetailsPlayer struct {
	Subject string `json:"subject"`
	TeamID  string `json:"teamId"`
	Stats   *struct {
		Kills  int `json:"kills"`
		Deaths int `json:"deaths"`
	} `json:"stats"`
}

type RoundResult struct {
	RoundNum        int               `json:"roundNum"`
	PlantSite       string            `json:"plantSite"`
	WinningTeam     string            `json:"winningTeam"`
	RoundResultCode string            `json:"roundResultCode"`
	PlayerStats     []RoundPlayerStat `json:"playerStats"`
	Kills           []KillEvent       `json:"kills"`
}

type RoundPlayerStat struct {
	Subject string        `json:"subject"`
	Kills   []KillEvent   `json:"kills"`
	Damage  []DamageEvent `json:"damage"`
}

type KillEvent struct {
	Round  int    `json:"round"`
	Killer string `json:"killer"`
	Victim string `json:"victim"`
}

type DamageEvent struct {
	Receiver  string `json:"receiver"`
	Headshots int    `json:"headshots"`
	Bodyshots int    `json:"bodyshots"`
	Legshots  int    `json:"legshots"`
}

// Historical reduces the payload to what the stats aggregator reads. Round
// victims are merged from the round kill feed and the per-player kill lists.
func (r *MatchDetailsResponse) Historical(matchID string) domain.HistoricalMatch {
	m := domain.HistoricalMatch{
		MatchID: matchID,
		MapID:   r.MatchInfo.MapID,
		Players: make(map[string]domain.MatchPlayerTotals, len(r.Players)),
	}
	for _, p := range r.Players {
		t := domain.MatchPlayerTotals{TeamID: p.TeamID}
		if p.Stats != nil {
			t.Kills = p.Stats.Kills
			t.Deaths = p.Stats.Deaths
		}
		m.Players[p.Subject] = t
	}

	for _, rr := range r.RoundResults {
		rec := domain.RoundRecord{
			PlantSite:   strings.ToUpper(rr.PlantSite),
			WinningTeam: rr.WinningTeam,
			ResultCode:  rr.RoundResultCode,
		}
		victims := make(map[string]struct{})
		for _, k := range rr.Kills {
			victims[k.Victim] = struct{}{}
		}
		for _, ps := range rr.PlayerStats {
			stat := domain.RoundPlayerStats{Puuid: ps.Subject}
			for _, d := range ps.Damage {
				stat.Damage = append(stat.Damage, domain.DamageEntry{
					Headshots: d.Headshots,
					Bodyshots: d.Bodyshots,
					Legshots:  d.Legshots,
				})
			}
			for _, k := range ps.Kills {
				victims[k.Victim] = struct{}{}
			}
			rec.PlayerStats = append(rec.PlayerStats, stat)
		}
		for v := range victims {
			if v != "" {
				rec.Victims = append(rec.Victims, v)
			}
		}
		m.Rounds = append(m.Rounds, rec)
	}
	return m
}

type versionResponse struct {
	Data struct {
		RiotClientVersion string `json:"riotClientVersion"`
	} `json:"data"`
}

type agentsResponse struct {
	Data []struct {
		UUID        string `json:"uuid"`
		DisplayName string `json:"displayName"`
	} `json:"data"`
}

type weaponResponse struct {
	Data struct {
		Skins []struct {
			UUID        string `json:"uuid"`
			DisplayName string `json:"displayName"`
			Chromas     []struct {
				UUID string `json:"uuid"`
			} `json:"chromas"`
		} `json:"skins"`
	} `json:"data"`
}
