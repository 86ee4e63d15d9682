package pubg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BadShapeError marks a data-shape anomaly: the payload parsed as JSON but is
// missing a field the pipeline requires. Callers skip the offending record
// and continue, they do not abort the run.
type BadShapeError struct {
	What string
}

func (e *BadShapeError) Error() string {
	return fmt.Sprintf("unexpected payload shape: %s", e.What)
}

// Player is one entry of a /players batch lookup.
type Player struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MatchIDs []string `json:"match_ids"`
}

type playerDocument struct {
	Data []playerResource `json:"data"`
}

type playerResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
	Relationships struct {
		Matches struct {
			Data []resourceRef `json:"data"`
		} `json:"matches"`
	} `json:"relationships"`
}

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func parsePlayers(body []byte) ([]Player, error) {
	var doc playerDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse players response: %w", err)
	}

	players := make([]Player, 0, len(doc.Data))
	for _, res := range doc.Data {
		if res.ID == "" {
			return nil, &BadShapeError{What: "player without id"}
		}
		p := Player{ID: res.ID, Name: res.Attributes.Name}
		for _, ref := range res.Relationships.Matches.Data {
			if ref.ID != "" {
				p.MatchIDs = append(p.MatchIDs, ref.ID)
			}
		}
		players = append(players, p)
	}
	return players, nil
}

// Participant is one tracked participant's stat line inside a match detail.
type Participant struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
}

// MatchDetail is the subset of a /matches/{id} payload the pipeline keeps.
// IsRanked is a pointer because the upstream flag is optional: when absent,
// classification falls back to the game-mode string.
type MatchDetail struct {
	ID            string        `json:"id"`
	CreatedAt     string        `json:"created_at"` // UTC ISO-8601 Z as sent upstream
	GameMode      string        `json:"game_mode"`
	IsRanked      *bool         `json:"is_ranked,omitempty"`
	IsCustomMatch bool          `json:"is_custom_match"`
	Participants  []Participant `json:"participants"`
}

type matchDocument struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CreatedAt     string `json:"createdAt"`
			GameMode      string `json:"gameMode"`
			IsRanked      *bool  `json:"isRanked"`
			IsCustomMatch bool   `json:"isCustomMatch"`
		} `json:"attributes"`
	} `json:"data"`
	Included []includedResource `json:"included"`
}

type includedResource struct {
	Type       string `json:"type"`
	Attributes struct {
		Stats struct {
			PlayerID string  `json:"playerId"`
			Name     string  `json:"name"`
			Kills    float64 `json:"kills"`
		} `json:"stats"`
	} `json:"attributes"`
}

func parseMatch(body []byte) (*MatchDetail, error) {
	var doc matchDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse match response: %w", err)
	}

	if doc.Data.ID == "" {
		return nil, &BadShapeError{What: "match without id"}
	}
	if strings.TrimSpace(doc.Data.Attributes.CreatedAt) == "" {
		return nil, &BadShapeError{What: "match without createdAt"}
	}

	m := &MatchDetail{
		ID:            doc.Data.ID,
		CreatedAt:     strings.TrimSpace(doc.Data.Attributes.CreatedAt),
		GameMode:      strings.ToLower(strings.TrimSpace(doc.Data.Attributes.GameMode)),
		IsRanked:      doc.Data.Attributes.IsRanked,
		IsCustomMatch: doc.Data.Attributes.IsCustomMatch,
	}

	for _, res := range doc.Included {
		if res.Type != "participant" {
			continue
		}
		stats := res.Attributes.Stats
		if stats.PlayerID == "" {
			continue
		}
		name := strings.TrimSpace(stats.Name)
		if name == "" {
			name = stats.PlayerID
		}
		m.Participants = append(m.Participants, Participant{
			PlayerID: stats.PlayerID,
			Name:     name,
			Kills:    int(stats.Kills),
		})
	}

	return m, nil
}

type seasonDocument struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			IsCurrentSeason bool `json:"isCurrentSeason"`
		} `json:"attributes"`
	} `json:"data"`
}

func parseCurrentSeason(body []byte) (string, error) {
	var doc seasonDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to parse seasons response: %w", err)
	}
	for _, s := range doc.Data {
		if s.Attributes.IsCurrentSeason {
			if s.ID == "" {
				return "", &BadShapeError{What: "current season without id"}
			}
			return s.ID, nil
		}
	}
	return "", &BadShapeError{What: "no current season in listing"}
}

// GameModeStats is one mode's aggregate season stat block, shared between the
// normal and ranked season endpoints.
type GameModeStats struct {
	RoundsPlayed  int     `json:"roundsPlayed"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Deaths        int     `json:"deaths"`
	Top10s        int     `json:"top10s"`
	Kills         int     `json:"kills"`
	DamageDealt   float64 `json:"damageDealt"`
	HeadshotKills int     `json:"headshotKills"`
	LongestKill   float64 `json:"longestKill"`
	TimeSurvived  float64 `json:"timeSurvived"`
	RoundMostKills int    `json:"roundMostKills"`

	// Ranked-only fields.
	CurrentTier      *RankTier `json:"currentTier,omitempty"`
	BestTier         *RankTier `json:"bestTier,omitempty"`
	CurrentRankPoint int       `json:"currentRankPoint"`
	BestRankPoint    int       `json:"bestRankPoint"`
}

// RankTier is a ranked tier/subTier pair.
type RankTier struct {
	Tier    string `json:"tier"`
	SubTier string `json:"subTier"`
}

// String renders "Gold 2", falling back to "-" when empty.
func (t *RankTier) String() string {
	if t == nil {
		return "-"
	}
	tier := strings.TrimSpace(t.Tier)
	sub := strings.TrimSpace(t.SubTier)
	switch {
	case tier != "" && sub != "":
		return tier + " " + sub
	case tier != "":
		return tier
	case sub != "":
		return sub
	default:
		return "-"
	}
}

type seasonStatsDocument struct {
	Data struct {
		Attributes struct {
			GameModeStats       map[string]GameModeStats `json:"gameModeStats"`
			RankedGameModeStats map[string]GameModeStats `json:"rankedGameModeStats"`
		} `json:"attributes"`
	} `json:"data"`
}

func parseSeasonStats(body []byte) (map[string]GameModeStats, error) {
	var doc seasonStatsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse season stats response: %w", err)
	}
	if doc.Data.Attributes.GameModeStats != nil {
		return doc.Data.Attributes.GameModeStats, nil
	}
	if doc.Data.Attributes.RankedGameModeStats != nil {
		return doc.Data.Attributes.RankedGameModeStats, nil
	}
	return nil, &BadShapeError{What: "season stats without game mode map"}
}
