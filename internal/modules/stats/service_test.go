package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadedclan/killboard/internal/clients/pubg"
)

type fakeStatsClient struct {
	player      *pubg.Player
	playerErr   error
	seasonID    string
	normal      map[string]pubg.GameModeStats
	ranked      map[string]pubg.GameModeStats
	rankedCalls int
	normalCalls int
}

func (f *fakeStatsClient) PlayerByName(context.Context, string) (*pubg.Player, error) {
	return f.player, f.playerErr
}

func (f *fakeStatsClient) CurrentSeasonID(context.Context) (string, error) {
	return f.seasonID, nil
}

func (f *fakeStatsClient) SeasonStats(context.Context, string, string) (map[string]pubg.GameModeStats, error) {
	f.normalCalls++
	return f.normal, nil
}

func (f *fakeStatsClient) RankedStats(context.Context, string, string) (map[string]pubg.GameModeStats, error) {
	f.rankedCalls++
	return f.ranked, nil
}

func newFakeClient() *fakeStatsClient {
	return &fakeStatsClient{
		player:   &pubg.Player{ID: "acct-a", Name: "Alpha"},
		seasonID: "division.bro.official.pc-2018-35",
		normal: map[string]pubg.GameModeStats{
			"squad-fpp": {
				RoundsPlayed:   100,
				Wins:           12,
				Top10s:         40,
				Kills:          250,
				Deaths:         90,
				HeadshotKills:  50,
				DamageDealt:    21000,
				TimeSurvived:   120000,
				LongestKill:    312.447,
				RoundMostKills: 9,
			},
			"solo": {}, // never played, must be dropped
		},
		ranked: map[string]pubg.GameModeStats{
			"squad-fpp": {
				RoundsPlayed:     40,
				Wins:             4,
				Kills:            120,
				Deaths:           36,
				DamageDealt:      9000,
				CurrentTier:      &pubg.RankTier{Tier: "Gold", SubTier: "2"},
				BestTier:         &pubg.RankTier{Tier: "Platinum", SubTier: "5"},
				CurrentRankPoint: 2710,
				BestRankPoint:    3105,
			},
		},
	}
}

func TestSummaryNormalSeason(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, zerolog.Nop())

	sum, err := svc.Summary(context.Background(), "Alpha", "", false)
	require.NoError(t, err)

	assert.Equal(t, "Alpha", sum.PlayerName)
	assert.Equal(t, "acct-a", sum.AccountID)
	assert.Equal(t, "division.bro.official.pc-2018-35", sum.SeasonID)
	assert.False(t, sum.Ranked)
	assert.Equal(t, 1, client.normalCalls)
	assert.Equal(t, 0, client.rankedCalls)

	require.Len(t, sum.Modes, 1, "zero-round modes are dropped")
	m := sum.Modes[0]
	assert.Equal(t, "squad-fpp", m.Mode)
	assert.Equal(t, 100, m.RoundsPlayed)
	assert.InDelta(t, 2.78, m.KD, 0.001)
	assert.InDelta(t, 12.0, m.WinRate, 0.001)
	assert.InDelta(t, 210.0, m.ADR, 0.001)
	assert.InDelta(t, 20.0, m.HeadshotRate, 0.001)
	assert.InDelta(t, 20.0, m.AvgSurvivalMin, 0.001)
	assert.InDelta(t, 312.4, m.LongestKill, 0.001)
	assert.Empty(t, m.CurrentTier)
}

func TestSummaryRankedSeason(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, zerolog.Nop())

	sum, err := svc.Summary(context.Background(), "Alpha", "squad-fpp", true)
	require.NoError(t, err)
	assert.Equal(t, 1, client.rankedCalls)
	assert.Equal(t, 0, client.normalCalls)

	require.Len(t, sum.Modes, 1)
	m := sum.Modes[0]
	assert.Equal(t, "Gold 2", m.CurrentTier)
	assert.Equal(t, "Platinum 5", m.BestTier)
	assert.Equal(t, 2710, m.CurrentRankPoint)
	assert.InDelta(t, 3.33, m.KD, 0.001)
}

func TestSummaryModeFilter(t *testing.T) {
	client := newFakeClient()
	client.normal["duo"] = pubg.GameModeStats{RoundsPlayed: 5, Kills: 3}
	svc := NewService(client, zerolog.Nop())

	sum, err := svc.Summary(context.Background(), "Alpha", "DUO", false)
	require.NoError(t, err)
	require.Len(t, sum.Modes, 1)
	assert.Equal(t, "duo", sum.Modes[0].Mode)
}

func TestSummaryZeroDeaths(t *testing.T) {
	client := newFakeClient()
	client.normal = map[string]pubg.GameModeStats{
		"solo": {RoundsPlayed: 2, Kills: 7, Deaths: 0},
	}
	svc := NewService(client, zerolog.Nop())

	sum, err := svc.Summary(context.Background(), "Alpha", "", false)
	require.NoError(t, err)
	require.Len(t, sum.Modes, 1)
	assert.InDelta(t, 7.0, sum.Modes[0].KD, 0.001)
}

func TestSummaryUnknownPlayer(t *testing.T) {
	client := newFakeClient()
	client.player = nil
	client.playerErr = errors.New("player not found")
	svc := NewService(client, zerolog.Nop())

	_, err := svc.Summary(context.Background(), "Nobody", "", false)
	assert.ErrorContains(t, err, "failed to resolve player")
}
