package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reminder_bot/internal/domain/reminder"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

const MaxReminderTextLength = 1000

var ErrEmptyReminderText = fmt.Errorf("reminder text is empty")
var ErrReminderTextTooLong = fmt.Errorf("reminder text is longer than %d characters", MaxReminderTextLength)
var ErrNotFutureTime = fmt.Errorf("reminder time must be in the future")
var ErrReminderNotOwned = fmt.Errorf("reminder belongs to another user")

// Rescheduler is implemented by the reminder timer. It must be called after
// every change to the pending reminder set.
type Rescheduler interface {
	Reschedule(ctx context.Context) error
}

type ReminderService struct {
	reminderRepo reminder.Repository
	userRepo     user.Repository
	rescheduler  Rescheduler
	now          func() time.Time
	logger       *logrus.Entry
}

func NewReminderService(rr reminder.Repository, ur user.Repository, rs Rescheduler, logger *logrus.Entry) *ReminderService {
	return &ReminderService{
		reminderRepo: rr,
		userRepo:     ur,
		rescheduler:  rs,
		now:          time.Now,
		logger:       logger.WithField("service", "reminder"),
	}
}

// Create stores a reminder for userID at the instant described by when,
// interpreted in the user's current offset.
func (s *ReminderService) Create(ctx context.Context, userID int64, when, text, sourceRef string) (*reminder.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyReminderText
	}
	if len([]rune(text)) > MaxReminderTextLength {
		return nil, ErrReminderTextTooLong
	}

	u, err := s.userRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := s.now()
	at, err := ParseWhen(when, now, u.Location())
	if err != nil {
		return nil, err
	}
	if !at.After(now) {
		return nil, ErrNotFutureTime
	}

	r := &reminder.Reminder{
		UserID:      userID,
		Text:        text,
		ScheduledAt: at,
		CreatedAt:   now,
		SourceRef:   sql.NullString{String: sourceRef, Valid: sourceRef != ""},
	}
	if err := s.reminderRepo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create reminder in repository: %w", err)
	}
	s.reschedule(ctx)
	return r, nil
}

// Remove deletes one of userID's reminders.
func (s *ReminderService) Remove(ctx context.Context, userID, reminderID int64) error {
	r, err := s.reminderRepo.GetByID(ctx, reminderID)
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return ErrReminderNotOwned
	}
	if err := s.reminderRepo.Delete(ctx, reminderID); err != nil {
		return err
	}
	s.reschedule(ctx)
	return nil
}

// List returns userID's pending reminders, earliest first.
func (s *ReminderService) List(ctx context.Context, userID int64) ([]*reminder.Reminder, error) {
	reminders, err := s.reminderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// reschedule never fails the caller's mutation; the timer recovers on the next call.
func (s *ReminderService) reschedule(ctx context.Context) {
	if err := s.rescheduler.Reschedule(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Warn("Failed to reschedule reminder timer")
	}
}
