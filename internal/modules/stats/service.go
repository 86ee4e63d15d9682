package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/clients/pubg"
)

// StatsClient is the slice of the PUBG client the stats service consumes.
type StatsClient interface {
	PlayerByName(ctx context.Context, name string) (*pubg.Player, error)
	CurrentSeasonID(ctx context.Context) (string, error)
	SeasonStats(ctx context.Context, playerID, seasonID string) (map[string]pubg.GameModeStats, error)
	RankedStats(ctx context.Context, playerID, seasonID string) (map[string]pubg.GameModeStats, error)
}

// ModeSummary is one mode's derived season summary.
type ModeSummary struct {
	Mode          string  `json:"mode"`
	RoundsPlayed  int     `json:"rounds_played"`
	Wins          int     `json:"wins"`
	Top10s        int     `json:"top10s"`
	Kills         int     `json:"kills"`
	Deaths        int     `json:"deaths"`
	HeadshotKills int     `json:"headshot_kills"`
	RoundMostKills int    `json:"round_most_kills"`
	LongestKill   float64 `json:"longest_kill_m"`
	KD            float64 `json:"kd"`
	WinRate       float64 `json:"win_rate_pct"`
	ADR           float64 `json:"adr"`
	HeadshotRate  float64 `json:"headshot_rate_pct"`
	AvgSurvivalMin float64 `json:"avg_survival_min"`

	// Ranked view only.
	CurrentTier      string `json:"current_tier,omitempty"`
	BestTier         string `json:"best_tier,omitempty"`
	CurrentRankPoint int    `json:"current_rank_point,omitempty"`
	BestRankPoint    int    `json:"best_rank_point,omitempty"`
}

// PlayerSummary is the season summary for one player.
type PlayerSummary struct {
	PlayerName string        `json:"player_name"`
	AccountID  string        `json:"account_id"`
	SeasonID   string        `json:"season_id"`
	Ranked     bool          `json:"ranked"`
	Modes      []ModeSummary `json:"modes"`
}

// Service resolves a player name to current-season stat summaries.
type Service struct {
	client StatsClient
	log    zerolog.Logger
}

// NewService creates a stats service.
func NewService(client StatsClient, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		log:    log.With().Str("component", "stats").Logger(),
	}
}

// Summary fetches and summarizes the current season for a player. mode
// filters to one game mode when non-empty; ranked selects the ranked stat
// block instead of the normal one.
func (s *Service) Summary(ctx context.Context, playerName, mode string, ranked bool) (*PlayerSummary, error) {
	player, err := s.client.PlayerByName(ctx, playerName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve player %q: %w", playerName, err)
	}

	seasonID, err := s.client.CurrentSeasonID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current season: %w", err)
	}

	var blocks map[string]pubg.GameModeStats
	if ranked {
		blocks, err = s.client.RankedStats(ctx, player.ID, seasonID)
	} else {
		blocks, err = s.client.SeasonStats(ctx, player.ID, seasonID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch season stats for %q: %w", playerName, err)
	}

	summary := &PlayerSummary{
		PlayerName: player.Name,
		AccountID:  player.ID,
		SeasonID:   seasonID,
		Ranked:     ranked,
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	for blockMode, gs := range blocks {
		if mode != "" && blockMode != mode {
			continue
		}
		if gs.RoundsPlayed == 0 {
			continue
		}
		summary.Modes = append(summary.Modes, summarizeMode(blockMode, gs))
	}

	sort.Slice(summary.Modes, func(i, j int) bool {
		return summary.Modes[i].Mode < summary.Modes[j].Mode
	})
	return summary, nil
}

func summarizeMode(mode string, gs pubg.GameModeStats) ModeSummary {
	m := ModeSummary{
		Mode:           mode,
		RoundsPlayed:   gs.RoundsPlayed,
		Wins:           gs.Wins,
		Top10s:         gs.Top10s,
		Kills:          gs.Kills,
		Deaths:         gs.Deaths,
		HeadshotKills:  gs.HeadshotKills,
		RoundMostKills: gs.RoundMostKills,
		LongestKill:    round1(gs.LongestKill),
	}

	// KD counts a deathless season as kills per round would be misleading;
	// divide by max(deaths, 1) like the upstream stat cards do.
	deaths := gs.Deaths
	if deaths == 0 {
		deaths = 1
	}
	m.KD = round2(float64(gs.Kills) / float64(deaths))

	if gs.RoundsPlayed > 0 {
		m.WinRate = round1(float64(gs.Wins) / float64(gs.RoundsPlayed) * 100)
		m.ADR = round1(gs.DamageDealt / float64(gs.RoundsPlayed))
		m.AvgSurvivalMin = round1(gs.TimeSurvived / float64(gs.RoundsPlayed) / 60)
	}
	if gs.Kills > 0 {
		m.HeadshotRate = round1(float64(gs.HeadshotKills) / float64(gs.Kills) * 100)
	}

	if gs.CurrentTier != nil || gs.BestTier != nil {
		m.CurrentTier = gs.CurrentTier.String()
		m.BestTier = gs.BestTier.String()
		m.CurrentRankPoint = gs.CurrentRankPoint
		m.BestRankPoint = gs.BestRankPoint
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
