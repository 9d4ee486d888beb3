package channels

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs SyncAll on a cron spec
type Scheduler struct {
	cron *cron.Cron
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	log.Debug().Fields(kv).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	log.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}

// NewScheduler registers the sync job; runs never overlap.
func NewScheduler(svc *Service, spec string, post bool, timeout time.Duration) (*Scheduler, error) {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		started := time.Now()
		if err := svc.SyncAll(ctx, post); err != nil {
			log.Error().Err(err).Msg("scheduled sync finished with errors")
			return
		}
		log.Info().Dur("took", time.Since(started)).Int("projects", len(svc.Projects)).Msg("scheduled sync done")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job to finish
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Entries number of registered jobs
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
