// Package scheduler runs the core's periodic background jobs —
// housekeeping (retention sweep) and Redis checkpointing — as named cron
// entries instead of independent tickers,
// so each job's cadence is configured and logged independently the way
// the gateway's own scheduled jobs are.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wraps a cron.Cron with zerolog-based job logging.
type Scheduler struct {
	c   *cron.Cron
	log zerolog.Logger
}

// New builds a Scheduler. Entries are specified as standard five-field
// cron expressions.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		c:   cron.New(cron.WithLogger(cron.VerbosePrintfLogger(stdLogAdapter{log}))),
		log: log,
	}
}

// AddJob registers a named job on the given cron schedule. Errors from job
// are logged, not propagated — a failed housekeeping sweep or checkpoint
// must not take down the scheduler's other jobs.
func (s *Scheduler) AddJob(name, schedule string, job func(ctx context.Context) error) error {
	_, err := s.c.AddFunc(schedule, func() {
		if err := job(context.Background()); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
		}
	})
	return err
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() { s.c.Start() }

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() { <-s.c.Stop().Done() }

// stdLogAdapter satisfies cron's minimal printf-style logger interface
// over zerolog so cron's own diagnostics (job added, job panicked) land in
// the same structured log stream as everything else.
type stdLogAdapter struct{ log zerolog.Logger }

func (a stdLogAdapter) Printf(format string, args ...interface{}) {
	a.log.Debug().Msgf(format, args...)
}
