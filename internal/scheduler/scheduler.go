package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a schedulable unit of background work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs on cron schedules. Jobs receive a context
// that is cancelled when the scheduler stops.
type Scheduler struct {
	cron   *cron.Cron
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		log:    log.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop cancels the jobs' context and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	done := s.cron.Stop()
	<-done.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "@every 10m"       - Every 10 minutes
//   - "@hourly"          - Every hour
//   - "0 9 * * WED"      - 9 AM Wednesdays
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(s.ctx); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})

	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run(ctx)
}
