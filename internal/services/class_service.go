package services

import (
	"context"
	"strings"
	"time"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
	"go.uber.org/zap"
)

type classStore interface {
	GetByID(ctx context.Context, classID int64) (*models.Class, error)
	List(ctx context.Context, filter repository.ClassListFilter) ([]models.Class, error)
	Update(ctx context.Context, classID int64, input repository.UpdateClassInput) (*models.Class, error)
	UpdateStatusIfCurrent(ctx context.Context, classID int64, currentStatus string, nextStatus string) (*models.Class, error)
	Delete(ctx context.Context, classID int64) error
}

type ClassService struct {
	db       txBeginner
	classes  classStore
	users    userReader
	settings settingsReader
	events   realtime.Publisher
	location *time.Location
	now      func() time.Time
	log      *zap.Logger
}

func NewClassService(
	db txBeginner,
	classes *repository.ClassRepository,
	users userReader,
	settings settingsReader,
	events realtime.Publisher,
	location *time.Location,
	log *zap.Logger,
) *ClassService {
	if location == nil {
		location = time.UTC
	}
	return &ClassService{
		db:       db,
		classes:  classes,
		users:    users,
		settings: settings,
		events:   publisherOrNoop(events),
		location: location,
		now:      time.Now,
		log:      log.Named("classes"),
	}
}

type CreateClassInput struct {
	StudentID       int64
	TeacherID       int64
	ClassDate       time.Time
	DurationMinutes int
	Title           string
	Notes           *string
	MeetingURL      *string
	IsFree          bool
}

type UpdateClassInput struct {
	ClassDate       *time.Time
	DurationMinutes *int
	Title           *string
	Notes           *string
	MeetingURL      *string
}

// Create books a one-off class after checking the teacher's calendar under the schedule lock.
func (s *ClassService) Create(
	ctx context.Context,
	actorID int64,
	role string,
	input CreateClassInput,
) (*models.Class, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	teacherID := actorID
	if role == models.RoleAdmin && input.TeacherID > 0 {
		teacherID = input.TeacherID
	}
	if teacherID != actorID {
		if _, err := requireTeacher(ctx, s.users, teacherID); err != nil {
			return nil, err
		}
	}
	if input.StudentID <= 0 || input.ClassDate.IsZero() || input.DurationMinutes < 0 {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrInvalidInput
	}
	if _, err := requireStudent(ctx, s.users, input.StudentID); err != nil {
		return nil, err
	}

	duration := input.DurationMinutes
	if duration == 0 {
		settings, err := loadSettings(ctx, s.settings)
		if err != nil {
			return nil, err
		}
		duration = settings.ClassDurationMinutes
	}

	status, paymentStatus := models.ClassStatusScheduled, models.PaymentStatusUnpaid
	if input.IsFree {
		paymentStatus = models.PaymentStatusPaid
	}

	var created *models.Class
	err := s.withScheduleCheck(ctx, teacherID, input.ClassDate, duration, 0, func(classes *repository.ClassRepository) error {
		class, err := classes.Create(ctx, repository.CreateClassInput{
			StudentID:       input.StudentID,
			TeacherID:       teacherID,
			ClassDate:       input.ClassDate,
			DurationMinutes: duration,
			Title:           title,
			Notes:           optionalText(input.Notes),
			MeetingURL:      optionalText(input.MeetingURL),
			IsFree:          input.IsFree,
			Status:          status,
			PaymentStatus:   paymentStatus,
		})
		created = class
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(classEvent(realtime.ActionCreated, created))
	return created, nil
}

// withScheduleCheck runs write inside a transaction after verifying that [start, start+duration)
// is free on the teacher's calendar. excludeClassID lets a class be moved over its own slot.
func (s *ClassService) withScheduleCheck(
	ctx context.Context,
	teacherID int64,
	start time.Time,
	durationMinutes int,
	excludeClassID int64,
	write func(classes *repository.ClassRepository) error,
) error {
	duration := time.Duration(durationMinutes) * time.Minute

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := repository.LockTeacherSchedule(ctx, tx, teacherID); err != nil {
		return err
	}

	txClasses := repository.NewClassRepository(tx)
	calendar, err := loadCalendar(
		ctx,
		repository.NewAvailabilityRepository(tx),
		txClasses,
		s.location,
		teacherID,
		start,
		start.Add(duration),
	)
	if err != nil {
		return err
	}
	calendar.ExcludeClassID = excludeClassID

	if result := calendar.Check(start, duration); !result.Available {
		return &scheduling.SlotConflict{
			DayOfWeek: int(start.In(s.location).Weekday()),
			Time:      start.In(s.location).Format("15:04"),
			Date:      start,
			Reason:    result.Reason,
		}
	}

	if err := write(txClasses); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ClassService) List(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.ClassListFilter,
) ([]models.Class, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	filter.ActorID = actorID
	filter.Role = role
	return s.classes.List(ctx, filter)
}

func (s *ClassService) Get(
	ctx context.Context,
	actorID int64,
	role string,
	classID int64,
) (*models.Class, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !canAccess(role, actorID, class.StudentID, class.TeacherID) {
		return nil, ErrForbidden
	}
	return class, nil
}

// Update edits a class. Moving it in time re-runs the availability check with the class itself
// excluded from the overlap test.
func (s *ClassService) Update(
	ctx context.Context,
	actorID int64,
	role string,
	classID int64,
	input UpdateClassInput,
) (*models.Class, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, class.TeacherID) {
		return nil, ErrForbidden
	}
	if class.Status == models.ClassStatusCompleted || class.Status == models.ClassStatusCancelled {
		return nil, ErrInvalidStateTransition
	}

	next := repository.UpdateClassInput{
		ClassDate:       class.ClassDate,
		DurationMinutes: class.DurationMinutes,
		Title:           class.Title,
		Notes:           class.Notes,
		MeetingURL:      class.MeetingURL,
	}
	if input.ClassDate != nil {
		if input.ClassDate.IsZero() {
			return nil, ErrInvalidInput
		}
		next.ClassDate = *input.ClassDate
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes <= 0 {
			return nil, ErrInvalidInput
		}
		next.DurationMinutes = *input.DurationMinutes
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrInvalidInput
		}
		next.Title = title
	}
	if input.Notes != nil {
		next.Notes = optionalText(input.Notes)
	}
	if input.MeetingURL != nil {
		next.MeetingURL = optionalText(input.MeetingURL)
	}

	moved := !next.ClassDate.Equal(class.ClassDate) || next.DurationMinutes != class.DurationMinutes

	var updated *models.Class
	if moved {
		err = s.withScheduleCheck(ctx, class.TeacherID, next.ClassDate, next.DurationMinutes, classID,
			func(classes *repository.ClassRepository) error {
				row, err := classes.Update(ctx, classID, next)
				updated = row
				return err
			})
	} else {
		updated, err = s.classes.Update(ctx, classID, next)
	}
	if err != nil {
		return nil, err
	}

	if moved {
		s.log.Info("class rescheduled",
			zap.Int64("class_id", classID),
			zap.Time("from", class.ClassDate),
			zap.Time("to", updated.ClassDate),
		)
	}
	s.events.Publish(classEvent(realtime.ActionUpdated, updated))
	return updated, nil
}

func (s *ClassService) UpdateStatus(
	ctx context.Context,
	actorID int64,
	role string,
	classID int64,
	requestedStatus string,
) (*models.Class, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !canAccess(role, actorID, class.StudentID, class.TeacherID) {
		return nil, ErrForbidden
	}

	nextStatus, err := normalizeClassStatus(requestedStatus)
	if err != nil {
		return nil, err
	}
	if err := validateClassTransition(role, class, nextStatus, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.classes.UpdateStatusIfCurrent(ctx, classID, class.Status, nextStatus)
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	s.events.Publish(classEvent(realtime.ActionUpdated, updated))
	return updated, nil
}

func (s *ClassService) Delete(
	ctx context.Context,
	actorID int64,
	role string,
	classID int64,
) error {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		return err
	}
	if !canManage(role, actorID, class.TeacherID) {
		return ErrForbidden
	}
	if err := s.classes.Delete(ctx, classID); err != nil {
		return err
	}

	s.events.Publish(classEvent(realtime.ActionDeleted, class))
	return nil
}

func classEvent(action string, class *models.Class) realtime.Event {
	return realtime.Event{
		Entity:    realtime.TopicClasses,
		Action:    action,
		ID:        class.ID,
		StudentID: class.StudentID,
		TeacherID: class.TeacherID,
		Status:    class.Status,
	}
}

func normalizeClassStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "schedule", "scheduled", "confirm", "confirmed":
		return models.ClassStatusScheduled, nil
	case "complete", "completed":
		return models.ClassStatusCompleted, nil
	case "cancel", "cancelled", "canceled":
		return models.ClassStatusCancelled, nil
	default:
		return "", ErrInvalidStatus
	}
}

func validateClassTransition(role string, class *models.Class, nextStatus string, now time.Time) error {
	if class.Status == models.ClassStatusCompleted || class.Status == models.ClassStatusCancelled {
		return ErrInvalidStateTransition
	}

	switch role {
	case models.RoleStudent:
		if nextStatus != models.ClassStatusCancelled {
			return ErrForbidden
		}
		if !class.ClassDate.After(now) {
			return ErrInvalidStateTransition
		}
		return nil
	case models.RoleTeacher, models.RoleAdmin:
		switch nextStatus {
		case models.ClassStatusScheduled:
			if class.Status != models.ClassStatusPendingPayment {
				return ErrInvalidStateTransition
			}
		case models.ClassStatusCompleted:
			if class.Status != models.ClassStatusScheduled {
				return ErrInvalidStateTransition
			}
			if class.EndsAt().After(now) {
				return ErrInvalidStateTransition
			}
		case models.ClassStatusCancelled:
		default:
			return ErrInvalidStatus
		}
		return nil
	default:
		return ErrForbidden
	}
}
