package leaderboard

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadedclan/killboard/internal/database"
	"github.com/shadedclan/killboard/internal/domain"
	"github.com/shadedclan/killboard/internal/modules/matches"
	"github.com/shadedclan/killboard/internal/modules/roster"
)

type fixture struct {
	svc   *Service
	snaps *SnapshotRepository
	ros   *roster.Repository
	mat   *matches.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(t.TempDir() + "/board.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ros := roster.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, ros.Init())
	mat := matches.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, mat.Init())
	snaps := NewSnapshotRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, snaps.Init())

	return &fixture{
		svc:   NewService(db.Conn(), zerolog.Nop()),
		snaps: snaps,
		ros:   ros,
		mat:   mat,
	}
}

func (f *fixture) addMatch(t *testing.T, matchID, createdAt string, ranked, custom, casual bool, kills map[string]int) {
	t.Helper()
	cm := matches.ClassifiedMatch{
		Match: domain.Match{
			MatchID:       matchID,
			Platform:      "steam",
			CreatedAt:     createdAt,
			GameMode:      "squad-fpp",
			IsRanked:      ranked,
			IsCustomMatch: custom,
			IsCasual:      casual,
		},
		Names: map[string]string{},
	}
	for accountID, k := range kills {
		cm.Participants = append(cm.Participants, domain.PlayerMatch{
			MatchID: matchID, Platform: "steam", AccountID: accountID, Kills: k,
		})
	}
	require.NoError(t, f.mat.CommitBatch([]matches.ClassifiedMatch{cm}))
}

func (f *fixture) query(scope domain.Scope) Query {
	return Query{
		ClanID:   "shaded_steam",
		Platform: "steam",
		StartUTC: "2026-02-04T00:00:00Z",
		EndUTC:   "2026-02-11T00:00:00Z",
		Scope:    scope,
		Limit:    10,
	}
}

// Roster {A, B}; A has two ranked matches (3, 5 kills) and one casual; B has
// one normal match (2 kills). Ranked scope sees only A; total sees both and
// still excludes the casual match.
func TestFetchScopes(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.a", "A", "member"))
	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.b", "B", "member"))

	f.addMatch(t, "m-1", "2026-02-05T10:00:00Z", true, false, false, map[string]int{"account.a": 3})
	f.addMatch(t, "m-2", "2026-02-05T11:00:00Z", true, false, false, map[string]int{"account.a": 5})
	f.addMatch(t, "m-3", "2026-02-05T12:00:00Z", false, false, true, map[string]int{"account.a": 11})
	f.addMatch(t, "m-4", "2026-02-06T10:00:00Z", false, false, false, map[string]int{"account.b": 2})

	rankedRows, err := f.svc.Fetch(f.query(domain.ScopeRanked))
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardRow{{PlayerName: "A", Kills: 8}}, rankedRows)

	totalRows, err := f.svc.Fetch(f.query(domain.ScopeTotal))
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardRow{
		{PlayerName: "A", Kills: 8},
		{PlayerName: "B", Kills: 2},
	}, totalRows)

	normalRows, err := f.svc.Fetch(f.query(domain.ScopeNormal))
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardRow{{PlayerName: "B", Kills: 2}}, normalRows)
}

func TestFetchExcludesCustomMatches(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.a", "A", "member"))
	f.addMatch(t, "m-1", "2026-02-05T10:00:00Z", false, true, false, map[string]int{"account.a": 20})

	rows, err := f.svc.Fetch(f.query(domain.ScopeTotal))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchTiesBrokenByName(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.z", "Zulu", "member"))
	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.a", "Alpha", "member"))

	f.addMatch(t, "m-1", "2026-02-05T10:00:00Z", false, false, false,
		map[string]int{"account.z": 4, "account.a": 4})

	rows, err := f.svc.Fetch(f.query(domain.ScopeTotal))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].PlayerName)
	assert.Equal(t, "Zulu", rows[1].PlayerName)
}

func TestFetchRespectsWindowAndInactiveMembers(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.a", "A", "member"))
	require.NoError(t, f.ros.RegisterMember("shaded_steam", "steam", "account.gone", "Gone", "member"))
	require.NoError(t, f.ros.DeactivateMember("shaded_steam", "steam", "account.gone"))

	f.addMatch(t, "m-in", "2026-02-05T10:00:00Z", false, false, false,
		map[string]int{"account.a": 2, "account.gone": 9})
	f.addMatch(t, "m-before", "2026-02-03T10:00:00Z", false, false, false, map[string]int{"account.a": 7})
	f.addMatch(t, "m-at-end", "2026-02-11T00:00:00Z", false, false, false, map[string]int{"account.a": 7})

	rows, err := f.svc.Fetch(f.query(domain.ScopeTotal))
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardRow{{PlayerName: "A", Kills: 2}},
		rows, "window is half-open and inactive members are excluded")
}

func TestSnapshotFreezeIsWriteOnce(t *testing.T) {
	f := newFixture(t)

	first := []domain.LeaderboardRow{{PlayerName: "A", Kills: 8}, {PlayerName: "B", Kills: 2}}
	require.NoError(t, f.snaps.Freeze("shaded_steam", "steam",
		"2026-01-28T00:00:00Z", "2026-02-04T00:00:00Z", domain.ScopeTotal, first))

	// A second freeze with different data must not change anything.
	require.NoError(t, f.snaps.Freeze("shaded_steam", "steam",
		"2026-01-28T00:00:00Z", "2026-02-04T00:00:00Z", domain.ScopeTotal,
		[]domain.LeaderboardRow{{PlayerName: "X", Kills: 99}}))

	snap, err := f.snaps.Fetch("shaded_steam", "steam", "2026-01-28T00:00:00Z", domain.ScopeTotal, 10)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, first, snap.Rows)
	assert.NotEmpty(t, snap.CreatedAt)
	assert.Equal(t, "2026-02-04T00:00:00Z", snap.WeekEnd)
}

func TestSnapshotFetchMissing(t *testing.T) {
	f := newFixture(t)

	snap, err := f.snaps.Fetch("shaded_steam", "steam", "2026-01-28T00:00:00Z", domain.ScopeRanked, 10)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSnapshotEmptyWeekStillFreezes(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.snaps.Freeze("shaded_steam", "steam",
		"2026-01-28T00:00:00Z", "2026-02-04T00:00:00Z", domain.ScopeNormal, nil))

	exists, err := f.snaps.Exists("shaded_steam", "steam", "2026-01-28T00:00:00Z", domain.ScopeNormal)
	require.NoError(t, err)
	assert.True(t, exists)

	snap, err := f.snaps.Fetch("shaded_steam", "steam", "2026-01-28T00:00:00Z", domain.ScopeNormal, 10)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Rows)
	assert.NotEmpty(t, snap.CreatedAt)
}
