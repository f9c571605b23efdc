package service

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/rs/zerolog"

	"contactbook/internal/models"
)

const (
	DefaultDayGap = 7
	MaxDayGap     = 366
)

type BirthdayService struct {
	contacts ContactStore
	cache    BirthdayCache
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewBirthdayService(contacts ContactStore, cache BirthdayCache, ttl time.Duration, log zerolog.Logger) *BirthdayService {
	return &BirthdayService{
		contacts: contacts,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// BirthdayWindow returns the day-of-year range [start, end] covering today
// through today+daygap. end < start means the range wraps past December 31.
// A window of a year or more covers every day.
func BirthdayWindow(today time.Time, daygap int) (start, end int) {
	if daygap >= 365 {
		return 1, 366
	}
	return today.YearDay(), today.AddDate(0, 0, daygap).YearDay()
}

// Nearest lists the user's contacts with a birthday in the next daygap days.
func (s *BirthdayService) Nearest(ctx context.Context, userID string, daygap int) ([]models.Contact, error) {
	if err := validation.Validate(daygap, validation.Min(0), validation.Max(MaxDayGap)); err != nil {
		return nil, validationError(fmt.Errorf("daygap: %w", err))
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if cached, ok, err := s.cache.Get(ctx, userID, today, daygap); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("birthday cache read failed")
	} else if ok {
		return cached, nil
	}

	start, end := BirthdayWindow(today, daygap)
	contacts, err := s.contacts.ListBirthdaysBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list birthdays: %w", err)
	}

	if err := s.cache.Set(ctx, userID, today, daygap, contacts, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("birthday cache write failed")
	}
	return contacts, nil
}
