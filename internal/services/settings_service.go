package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
)

type settingsStore interface {
	Get(ctx context.Context) (*models.BusinessSettings, error)
	Update(ctx context.Context, settings models.BusinessSettings) (*models.BusinessSettings, error)
}

type SettingsService struct {
	settings settingsStore
	events   realtime.Publisher
}

func NewSettingsService(settings *repository.SettingsRepository, events realtime.Publisher) *SettingsService {
	return &SettingsService{settings: settings, events: publisherOrNoop(events)}
}

func (s *SettingsService) Get(ctx context.Context) (models.BusinessSettings, error) {
	return loadSettings(ctx, s.settings)
}

func (s *SettingsService) Update(
	ctx context.Context,
	role string,
	input models.BusinessSettings,
) (*models.BusinessSettings, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	if input.LessonPrice < 0 {
		return nil, fmt.Errorf("%w: lesson_price cannot be negative", ErrInvalidInput)
	}
	if input.MinTotalLessons < 1 {
		return nil, fmt.Errorf("%w: min_total_lessons must be at least 1", ErrInvalidInput)
	}
	if input.ClassDurationMinutes < 15 || input.ClassDurationMinutes > 240 {
		return nil, fmt.Errorf("%w: class_duration_minutes must be between 15 and 240", ErrInvalidInput)
	}
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(input.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3 letter code", ErrInvalidInput)
	}
	input.PaymentInstructions = strings.TrimSpace(input.PaymentInstructions)

	updated, err := s.settings.Update(ctx, input)
	if err != nil {
		return nil, err
	}

	s.events.Publish(realtime.Event{
		Entity: realtime.TopicSettings,
		Action: realtime.ActionUpdated,
		ID:     1,
		Public: true,
	})
	return updated, nil
}
