package app

import (
	"context"
	"fmt"

	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

var ErrUnsupportedLanguage = fmt.Errorf("unsupported language")

type SettingsService struct {
	userRepo    user.Repository
	rescheduler Rescheduler
	logger      *logrus.Entry
}

func NewSettingsService(ur user.Repository, rs Rescheduler, logger *logrus.Entry) *SettingsService {
	return &SettingsService{
		userRepo:    ur,
		rescheduler: rs,
		logger:      logger.WithField("service", "settings"),
	}
}

// Get returns the user's settings, creating the user on first contact.
func (s *SettingsService) Get(ctx context.Context, userID int64) (*user.User, error) {
	u, err := s.userRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

// SetTimezone changes the user's fixed offset. Stored reminder instants do not
// move, but the timer is re-armed so it reflects the current store.
func (s *SettingsService) SetTimezone(ctx context.Context, userID int64, offsetHours int) (*user.User, error) {
	if err := user.ValidateOffset(offsetHours); err != nil {
		return nil, err
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.TimezoneOffset == offsetHours {
		return u, nil
	}

	if err := s.userRepo.UpdateTimezone(ctx, userID, offsetHours); err != nil {
		return nil, fmt.Errorf("failed to update timezone in repository: %w", err)
	}
	u.TimezoneOffset = offsetHours

	if err := s.rescheduler.Reschedule(ctx); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to reschedule reminder timer after timezone change")
	}
	return u, nil
}

func (s *SettingsService) SetLanguage(ctx context.Context, userID int64, language string) (*user.User, error) {
	if language != "" && !SupportedLanguage(language) {
		return nil, ErrUnsupportedLanguage
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateLanguage(ctx, userID, language); err != nil {
		return nil, fmt.Errorf("failed to update language in repository: %w", err)
	}
	u.Language.String, u.Language.Valid = language, language != ""
	return u, nil
}
