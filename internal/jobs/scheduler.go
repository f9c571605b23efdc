package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const purgeTimeout = time.Minute

type BirthdayPurger interface {
	PurgeBefore(ctx context.Context, day time.Time) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	birthdays BirthdayPurger
	log       zerolog.Logger
	now       func() time.Time
}

func NewScheduler(birthdays BirthdayPurger, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	return &Scheduler{
		cron:      c,
		birthdays: birthdays,
		log:       log,
		now:       time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.birthdays == nil {
		return nil
	}

	// birthday cache keys are dated in UTC
	if _, err := s.cron.AddFunc("0 0 0 * * *", s.purgeBirthdays); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) purgeBirthdays() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	removed, err := s.birthdays.PurgeBefore(ctx, today)
	if err != nil {
		s.log.Error().Err(err).Msg("birthday cache purge failed")
		return
	}
	s.log.Info().Int("removed", removed).Str("before", today.Format("2006-01-02")).Msg("birthday cache purged")
}
