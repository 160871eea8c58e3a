package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/queue"
	"sharpms/dashboard/internal/views"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

type WatchLister interface {
	Active(ctx context.Context, view string) ([]string, error)
}

type Sweeper interface {
	Sweep(idle time.Duration) int
}

type ExpiredPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Options struct {
	Views    []views.View
	Watchers WatchLister
	Queue    Enqueuer
	Sessions Sweeper
	Idle     time.Duration
	// Purger is set only when device storage lives in Postgres.
	Purger ExpiredPurger
}

type Scheduler struct {
	cron *cron.Cron
	opts Options
	log  zerolog.Logger
}

func NewScheduler(opts Options, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		opts: opts,
		log:  log,
	}
}

// Every turns a poll interval into a cron schedule.
func Every(interval time.Duration) string {
	return "@every " + interval.String()
}

func (s *Scheduler) Start() error {
	if s.opts.Queue != nil && s.opts.Watchers != nil {
		for _, v := range s.opts.Views {
			if v.PollInterval <= 0 {
				continue
			}
			name := v.Name
			if _, err := s.cron.AddFunc(Every(v.PollInterval), func() { s.enqueueRefresh(name) }); err != nil {
				return err
			}
		}
	}

	if s.opts.Sessions != nil && s.opts.Idle > 0 {
		if _, err := s.cron.AddFunc("0 * * * * *", s.sweepSessions); err != nil {
			return err
		}
	}
	if s.opts.Purger != nil {
		if _, err := s.cron.AddFunc("0 0 */1 * * *", s.purgeExpired); err != nil { // hourly
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueRefresh(view string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	devices, err := s.opts.Watchers.Active(ctx, view)
	if err != nil {
		s.log.Error().Err(err).Str("view", view).Msg("list watchers failed")
		return
	}
	for _, deviceID := range devices {
		task := queue.Task{Type: queue.TaskRefresh, View: view, DeviceID: deviceID}
		if err := s.opts.Queue.Enqueue(ctx, task); err != nil {
			s.log.Error().Err(err).Str("view", view).Msg("enqueue refresh failed")
			return
		}
	}
}

func (s *Scheduler) sweepSessions() {
	if n := s.opts.Sessions.Sweep(s.opts.Idle); n > 0 {
		s.log.Info().Int("evicted", n).Msg("idle sessions swept")
	}
}

func (s *Scheduler) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.opts.Purger.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired storage failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("rows", n).Msg("expired device storage purged")
	}
}
