package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
)

type availabilityStore interface {
	Create(ctx context.Context, teacherID int64, input repository.AvailabilityInput) (*models.TeacherAvailability, error)
	GetByID(ctx context.Context, id int64) (*models.TeacherAvailability, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]models.TeacherAvailability, error)
	Update(ctx context.Context, id int64, input repository.AvailabilityInput) (*models.TeacherAvailability, error)
	Delete(ctx context.Context, id int64) error
}

type AvailabilityService struct {
	availability availabilityStore
	classes      classWindowLister
	users        userReader
	settings     settingsReader
	events       realtime.Publisher
	location     *time.Location
}

func NewAvailabilityService(
	availability *repository.AvailabilityRepository,
	classes *repository.ClassRepository,
	users userReader,
	settings settingsReader,
	events realtime.Publisher,
	location *time.Location,
) *AvailabilityService {
	if location == nil {
		location = time.UTC
	}
	return &AvailabilityService{
		availability: availability,
		classes:      classes,
		users:        users,
		settings:     settings,
		events:       publisherOrNoop(events),
		location:     location,
	}
}

type AvailabilityInput struct {
	TeacherID   int64
	DayOfWeek   int
	StartTime   string
	EndTime     string
	IsAvailable bool
}

func (s *AvailabilityService) List(ctx context.Context, teacherID int64) ([]models.TeacherAvailability, error) {
	if teacherID <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := requireTeacher(ctx, s.users, teacherID); err != nil {
		return nil, err
	}
	return s.availability.ListByTeacher(ctx, teacherID)
}

func (s *AvailabilityService) Create(
	ctx context.Context,
	actorID int64,
	role string,
	input AvailabilityInput,
) (*models.TeacherAvailability, error) {
	teacherID := actorID
	if role == models.RoleAdmin && input.TeacherID > 0 {
		teacherID = input.TeacherID
	}
	if !canManage(role, actorID, teacherID) {
		return nil, ErrForbidden
	}

	normalized, err := normalizeWindow(input)
	if err != nil {
		return nil, err
	}

	window, err := s.availability.Create(ctx, teacherID, normalized)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.ActionCreated, window)
	return window, nil
}

func (s *AvailabilityService) Update(
	ctx context.Context,
	actorID int64,
	role string,
	windowID int64,
	input AvailabilityInput,
) (*models.TeacherAvailability, error) {
	existing, err := s.availability.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, existing.TeacherID) {
		return nil, ErrForbidden
	}

	normalized, err := normalizeWindow(input)
	if err != nil {
		return nil, err
	}

	window, err := s.availability.Update(ctx, windowID, normalized)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.ActionUpdated, window)
	return window, nil
}

func (s *AvailabilityService) Delete(ctx context.Context, actorID int64, role string, windowID int64) error {
	existing, err := s.availability.GetByID(ctx, windowID)
	if err != nil {
		return err
	}
	if !canManage(role, actorID, existing.TeacherID) {
		return ErrForbidden
	}
	if err := s.availability.Delete(ctx, windowID); err != nil {
		return err
	}
	s.publish(realtime.ActionDeleted, existing)
	return nil
}

// Check answers whether [start, start+duration) is bookable with the teacher. A zero duration
// uses the configured class length.
func (s *AvailabilityService) Check(
	ctx context.Context,
	teacherID int64,
	start time.Time,
	durationMinutes int,
) (models.AvailabilityResult, error) {
	if teacherID <= 0 || start.IsZero() || durationMinutes < 0 {
		return models.AvailabilityResult{}, ErrInvalidInput
	}
	if durationMinutes == 0 {
		settings, err := loadSettings(ctx, s.settings)
		if err != nil {
			return models.AvailabilityResult{}, err
		}
		durationMinutes = settings.ClassDurationMinutes
	}
	duration := time.Duration(durationMinutes) * time.Minute

	calendar, err := loadCalendar(ctx, s.availability, s.classes, s.location, teacherID, start, start.Add(duration))
	if err != nil {
		return models.AvailabilityResult{}, err
	}
	return calendar.Check(start, duration), nil
}

// Day computes the calendar day view for one teacher. date is a YYYY-MM-DD business-local date.
func (s *AvailabilityService) Day(ctx context.Context, teacherID int64, date string) (*models.DaySchedule, error) {
	if teacherID <= 0 {
		return nil, ErrInvalidInput
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	calendar, err := loadCalendar(ctx, s.availability, s.classes, s.location, teacherID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return &models.DaySchedule{
		TeacherID: teacherID,
		Date:      date,
		Slots:     scheduling.DailySlots(day, calendar),
	}, nil
}

func normalizeWindow(input AvailabilityInput) (repository.AvailabilityInput, error) {
	if input.DayOfWeek < 0 || input.DayOfWeek > 6 {
		return repository.AvailabilityInput{}, fmt.Errorf("%w: day_of_week must be between 0 and 6", ErrInvalidInput)
	}
	start, err := scheduling.ParseClock(input.StartTime)
	if err != nil {
		return repository.AvailabilityInput{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	end, err := scheduling.ParseClock(input.EndTime)
	if err != nil {
		return repository.AvailabilityInput{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if end <= start {
		return repository.AvailabilityInput{}, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}
	return repository.AvailabilityInput{
		DayOfWeek:   input.DayOfWeek,
		StartTime:   scheduling.FormatClock(start),
		EndTime:     scheduling.FormatClock(end),
		IsAvailable: input.IsAvailable,
	}, nil
}

func (s *AvailabilityService) publish(action string, window *models.TeacherAvailability) {
	s.events.Publish(realtime.Event{
		Entity:    realtime.TopicAvailability,
		Action:    action,
		ID:        window.ID,
		TeacherID: window.TeacherID,
		Public:    true,
	})
}
