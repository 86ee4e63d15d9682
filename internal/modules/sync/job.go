package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/clients/pubg"
	"github.com/shadedclan/killboard/internal/domain"
	"github.com/shadedclan/killboard/internal/locking"
	"github.com/shadedclan/killboard/internal/modules/leaderboard"
	"github.com/shadedclan/killboard/internal/modules/matches"
	"github.com/shadedclan/killboard/internal/modules/roster"
	"github.com/shadedclan/killboard/pkg/weekwindow"
)

// JobName identifies the sync lease and log lines.
const JobName = "sync_weekly_kills"

const (
	// Roster account ids per batch player lookup; the upstream /players
	// filter caps at 10, which also bounds discovery to
	// ceil(roster/10) requests per run.
	discoveryBatchSize = 10

	// Matches per commit transaction. Bounds write lock hold time against
	// concurrent leaderboard readers without a giant run-long transaction.
	commitBatchSize = 25
)

// ErrEmptyRoster aborts a run before any mutation: there is nothing to sync.
var ErrEmptyRoster = errors.New("no active roster members to sync")

// APIClient is the slice of the PUBG client the sync pipeline consumes.
type APIClient interface {
	PlayersByIDs(ctx context.Context, ids []string) ([]pubg.Player, error)
	Match(ctx context.Context, matchID string) (*pubg.MatchDetail, error)
}

// Job orchestrates one end-to-end sync run: acquire the lease, discover
// candidate matches from the roster, ingest only new ones, purge stale rows,
// freeze last week's snapshots, record the outcome, release the lease.
type Job struct {
	client APIClient
	ros    *roster.Repository
	mat    *matches.Repository
	board  *leaderboard.Service
	snaps  *leaderboard.SnapshotRepository
	state  *StateRepository
	locks  *locking.Manager

	clanID   string
	platform string
	lockTTL  time.Duration

	now func() time.Time
	log zerolog.Logger
}

// Config wires a sync job.
type Config struct {
	Client    APIClient
	Roster    *roster.Repository
	Matches   *matches.Repository
	Board     *leaderboard.Service
	Snapshots *leaderboard.SnapshotRepository
	State     *StateRepository
	Locks     *locking.Manager
	ClanID    string
	Platform  string
	LockTTL   time.Duration
}

// NewJob creates a sync job.
func NewJob(cfg Config, log zerolog.Logger) *Job {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Job{
		client:   cfg.Client,
		ros:      cfg.Roster,
		mat:      cfg.Matches,
		board:    cfg.Board,
		snaps:    cfg.Snapshots,
		state:    cfg.State,
		locks:    cfg.Locks,
		clanID:   cfg.ClanID,
		platform: cfg.Platform,
		lockTTL:  ttl,
		now:      time.Now,
		log:      log.With().Str("job", JobName).Logger(),
	}
}

// Run executes one sync. Lock contention returns locking.ErrLockHeld and is
// a clean no-op for the caller; any other failure, a panic included, has
// already been recorded to sync state for the alerting consumer before it
// propagates.
func (j *Job) Run(ctx context.Context) (outcome *domain.SyncOutcome, err error) {
	lease, err := j.locks.Acquire(JobName, j.lockTTL)
	if err != nil {
		if errors.Is(err, locking.ErrLockHeld) {
			j.log.Info().Msg("Another sync is running, skipping")
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer func() {
		if err := lease.Release(); err != nil {
			j.log.Error().Err(err).Msg("Failed to release sync lock")
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("sync panicked: %v", r)
			j.log.Error().Err(err).Msg("Sync panicked")
			if recErr := j.state.RecordError(err.Error()); recErr != nil {
				j.log.Error().Err(recErr).Msg("Failed to record sync error")
			}
		}
	}()

	outcome, runErr := j.run(ctx)
	if runErr != nil {
		if recErr := j.state.RecordError(runErr.Error()); recErr != nil {
			j.log.Error().Err(recErr).Msg("Failed to record sync error")
		}
		return nil, runErr
	}

	if err := j.state.SetLastSync(weekwindow.FormatZ(outcome.FinishedAt)); err != nil {
		j.log.Error().Err(err).Msg("Failed to record sync timestamp")
	}

	j.log.Info().
		Int("members", outcome.Members).
		Int("candidates", outcome.Candidates).
		Int("new_matches", outcome.NewMatches).
		Int("inserted", outcome.Inserted).
		Int("skipped_old", outcome.SkippedOld).
		Int64("purged", outcome.Purged).
		Int("snapshots", outcome.Snapshots).
		Msg("Sync completed")

	return outcome, nil
}

func (j *Job) run(ctx context.Context) (*domain.SyncOutcome, error) {
	members, err := j.ros.ActiveMembers(j.clanID, j.platform)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrEmptyRoster
	}

	rosterIDs := make(map[string]bool, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		rosterIDs[m.AccountID] = true
		ids = append(ids, m.AccountID)
	}

	// Retention cutoff: the start of the previous accounting week.
	cutoff := weekwindow.Previous(j.now()).StartZ()

	candidates, err := j.discoverCandidates(ctx, ids)
	if err != nil {
		return nil, err
	}

	exist, err := j.mat.ExistingIDs(candidates)
	if err != nil {
		return nil, err
	}
	newIDs := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !exist[id] {
			newIDs = append(newIDs, id)
		}
	}

	outcome := &domain.SyncOutcome{
		Members:    len(members),
		Candidates: len(candidates),
		NewMatches: len(newIDs),
	}

	if err := j.ingestNewMatches(ctx, newIDs, rosterIDs, cutoff, outcome); err != nil {
		return nil, err
	}

	purged, err := j.mat.PurgeBefore(cutoff)
	if err != nil {
		return nil, err
	}
	outcome.Purged = purged

	frozen, err := j.freezeLastWeek()
	if err != nil {
		return nil, err
	}
	outcome.Snapshots = frozen

	outcome.FinishedAt = j.now().UTC()
	return outcome, nil
}

// discoverCandidates unions the recent match references of every roster
// member, ten accounts per upstream call.
func (j *Job) discoverCandidates(ctx context.Context, ids []string) ([]string, error) {
	seen := make(map[string]bool)
	var candidates []string

	for start := 0; start < len(ids); start += discoveryBatchSize {
		end := start + discoveryBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		players, err := j.client.PlayersByIDs(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to discover matches for roster batch: %w", err)
		}
		for _, p := range players {
			for _, matchID := range p.MatchIDs {
				if !seen[matchID] {
					seen[matchID] = true
					candidates = append(candidates, matchID)
				}
			}
		}
	}
	return candidates, nil
}

// ingestNewMatches fetches, classifies and commits genuinely new matches in
// bounded transactions. Per-match fetch failures are logged and skipped; the
// run continues.
func (j *Job) ingestNewMatches(ctx context.Context, newIDs []string, rosterIDs map[string]bool, cutoff string, outcome *domain.SyncOutcome) error {
	batch := make([]matches.ClassifiedMatch, 0, commitBatchSize)

	flush := func() error {
		if err := j.mat.CommitBatch(batch); err != nil {
			return err
		}
		outcome.Inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, matchID := range newIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		detail, err := j.client.Match(ctx, matchID)
		if err != nil {
			j.log.Warn().Err(err).Str("match_id", matchID).Msg("Match fetch failed, skipping")
			continue
		}

		cm, keep := j.classify(detail, rosterIDs, cutoff, outcome)
		if !keep {
			continue
		}

		batch = append(batch, cm)
		if len(batch) >= commitBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

// classify applies the retention, mode and participation filters and shapes
// a match for commit.
func (j *Job) classify(detail *pubg.MatchDetail, rosterIDs map[string]bool, cutoff string, outcome *domain.SyncOutcome) (matches.ClassifiedMatch, bool) {
	var cm matches.ClassifiedMatch

	if detail.CreatedAt < cutoff {
		outcome.SkippedOld++
		return cm, false
	}
	if !isTrackedMode(detail.GameMode) {
		return cm, false
	}

	isRanked, isCustom, isCasual := classifyFlags(detail)

	cm = matches.ClassifiedMatch{
		Match: domain.Match{
			MatchID:       detail.ID,
			Platform:      j.platform,
			CreatedAt:     detail.CreatedAt,
			GameMode:      detail.GameMode,
			IsRanked:      isRanked,
			IsCustomMatch: isCustom,
			IsCasual:      isCasual,
		},
		Names: make(map[string]string),
	}

	for _, part := range detail.Participants {
		if !rosterIDs[part.PlayerID] {
			continue
		}
		cm.Participants = append(cm.Participants, domain.PlayerMatch{
			MatchID:   detail.ID,
			Platform:  j.platform,
			AccountID: part.PlayerID,
			Kills:     part.Kills,
		})
		cm.Names[part.PlayerID] = part.Name
	}

	// No tracked participants: the match belongs to someone else's squad.
	if len(cm.Participants) == 0 {
		return cm, false
	}
	return cm, true
}

// freezeLastWeek snapshots the previous accounting week for every scope that
// has no snapshot yet. Returns how many scopes were frozen this run.
func (j *Job) freezeLastWeek() (int, error) {
	week := weekwindow.Previous(j.now())
	frozen := 0

	for _, scope := range []domain.Scope{domain.ScopeNormal, domain.ScopeRanked, domain.ScopeTotal} {
		exists, err := j.snaps.Exists(j.clanID, j.platform, week.StartZ(), scope)
		if err != nil {
			return frozen, err
		}
		if exists {
			continue
		}

		rows, err := j.board.Fetch(leaderboard.Query{
			ClanID:   j.clanID,
			Platform: j.platform,
			StartUTC: week.StartZ(),
			EndUTC:   week.EndZ(),
			Scope:    scope,
			Limit:    10,
		})
		if err != nil {
			return frozen, err
		}

		if err := j.snaps.Freeze(j.clanID, j.platform, week.StartZ(), week.EndZ(), scope, rows); err != nil {
			return frozen, err
		}
		frozen++
	}
	return frozen, nil
}
