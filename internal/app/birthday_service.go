package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

var ErrNotLeapDay = fmt.Errorf("leap year policy only applies to birthdays on February 29")

// UpcomingBirthday pairs a birthday with its next occurrence in the owner's offset.
type UpcomingBirthday struct {
	Birthday *birthday.Birthday
	Next     time.Time
}

type BirthdayService struct {
	birthdayRepo birthday.Repository
	userRepo     user.Repository
	now          func() time.Time
	logger       *logrus.Entry
}

func NewBirthdayService(br birthday.Repository, ur user.Repository, logger *logrus.Entry) *BirthdayService {
	return &BirthdayService{
		birthdayRepo: br,
		userRepo:     ur,
		now:          time.Now,
		logger:       logger.WithField("service", "birthday"),
	}
}

// Set creates the birthday or moves an existing one to a new date. Moving a
// birthday keeps its notify stamps. created reports which of the two happened.
func (s *BirthdayService) Set(ctx context.Context, ownerID int64, subject birthday.Subject, month, day int) (b *birthday.Birthday, created bool, err error) {
	if err := subject.Validate(); err != nil {
		return nil, false, err
	}
	if err := birthday.ValidateDate(month, day); err != nil {
		return nil, false, err
	}
	if _, err := s.userRepo.GetOrCreate(ctx, ownerID); err != nil {
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	existing, err := s.birthdayRepo.GetBySubject(ctx, ownerID, subject)
	switch {
	case err == nil:
		if err := s.birthdayRepo.UpdateDate(ctx, existing.ID, month, day); err != nil {
			return nil, false, fmt.Errorf("failed to update birthday: %w", err)
		}
		existing.Month, existing.Day = month, day
		return existing, false, nil
	case !errors.Is(err, birthday.ErrBirthdayNotFound):
		return nil, false, fmt.Errorf("failed to check existing birthday: %w", err)
	}

	b = &birthday.Birthday{UserID: ownerID, Subject: subject, Month: month, Day: day}
	if err := s.birthdayRepo.Create(ctx, b); err != nil {
		if errors.Is(err, birthday.ErrDuplicateBirthday) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to create birthday in repository: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": ownerID, "birthday_id": b.ID}).Info("Birthday created")
	return b, true, nil
}

func (s *BirthdayService) Remove(ctx context.Context, ownerID int64, subject birthday.Subject) error {
	b, err := s.birthdayRepo.GetBySubject(ctx, ownerID, subject)
	if err != nil {
		return err
	}
	return s.birthdayRepo.Delete(ctx, b.ID)
}

// List returns the owner's birthdays ordered by next occurrence.
func (s *BirthdayService) List(ctx context.Context, ownerID int64) ([]UpcomingBirthday, error) {
	u, err := s.userRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	birthdays, err := s.birthdayRepo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}

	now := s.now()
	upcoming := make([]UpcomingBirthday, 0, len(birthdays))
	for _, b := range birthdays {
		next, err := birthday.NextOccurrence(b.Month, b.Day, u.TimezoneOffset, now)
		if err != nil {
			s.logger.WithError(err).WithField("birthday_id", b.ID).Warn("Skipping birthday with invalid date")
			continue
		}
		upcoming = append(upcoming, UpcomingBirthday{Birthday: b, Next: next})
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Next.Before(upcoming[j].Next) })
	return upcoming, nil
}

func (s *BirthdayService) SetLeapPolicy(ctx context.Context, ownerID int64, subject birthday.Subject, policy birthday.LeapPolicy) error {
	if !policy.Valid() {
		return birthday.ErrInvalidLeapPolicy
	}
	b, err := s.birthdayRepo.GetBySubject(ctx, ownerID, subject)
	if err != nil {
		return err
	}
	if !b.IsLeapDay() {
		return ErrNotLeapDay
	}
	return s.birthdayRepo.UpdateLeapPolicy(ctx, b.ID, policy)
}

// SetEarlyNotify enables an early notice days before the birthday; 0 disables it.
func (s *BirthdayService) SetEarlyNotify(ctx context.Context, ownerID int64, subject birthday.Subject, days int) error {
	if days != 0 {
		if err := birthday.ValidateEarlyNotifyDays(days); err != nil {
			return err
		}
	}
	b, err := s.birthdayRepo.GetBySubject(ctx, ownerID, subject)
	if err != nil {
		return err
	}
	return s.birthdayRepo.UpdateEarlyNotifyDays(ctx, b.ID, days)
}
