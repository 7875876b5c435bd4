package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs housekeeping on a cron spec with a seconds field. Session
// validity never depends on it; purging only reclaims rows.
type Scheduler struct {
	cron   *cron.Cron
	purger SessionPurger
	spec   string
	log    zerolog.Logger
}

func NewScheduler(purger SessionPurger, spec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		purger: purger,
		spec:   spec,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.purger == nil || s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.purgeSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running job to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) purgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired sessions failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("sessions", n).Msg("expired sessions purged")
	}
}
