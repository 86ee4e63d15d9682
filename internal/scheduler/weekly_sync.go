package scheduler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/locking"
	kbsync "github.com/shadedclan/killboard/internal/modules/sync"
)

// WeeklySyncJob adapts the sync pipeline to the scheduler. Lock contention
// means another instance is already syncing; the cycle is skipped quietly
// instead of surfacing a failure.
type WeeklySyncJob struct {
	job *kbsync.Job
	log zerolog.Logger
}

// NewWeeklySyncJob creates the scheduled sync job.
func NewWeeklySyncJob(job *kbsync.Job, log zerolog.Logger) *WeeklySyncJob {
	return &WeeklySyncJob{
		job: job,
		log: log.With().Str("job", kbsync.JobName).Logger(),
	}
}

// Name returns the job name.
func (j *WeeklySyncJob) Name() string {
	return kbsync.JobName
}

// Run executes one sync cycle.
func (j *WeeklySyncJob) Run(ctx context.Context) error {
	_, err := j.job.Run(ctx)
	if errors.Is(err, locking.ErrLockHeld) {
		return nil
	}
	return err
}
