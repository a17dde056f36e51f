package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
)

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type settingsReader interface {
	Get(ctx context.Context) (*models.BusinessSettings, error)
}

type availabilityLister interface {
	ListByTeacher(ctx context.Context, teacherID int64) ([]models.TeacherAvailability, error)
}

type classWindowLister interface {
	ListActiveForTeacherBetween(ctx context.Context, teacherID int64, from time.Time, to time.Time) ([]models.Class, error)
}

type noopPublisher struct{}

func (noopPublisher) Publish(realtime.Event) {}

func publisherOrNoop(events realtime.Publisher) realtime.Publisher {
	if events == nil {
		return noopPublisher{}
	}
	return events
}

func loadSettings(ctx context.Context, reader settingsReader) (models.BusinessSettings, error) {
	defaults := models.DefaultBusinessSettings()
	if reader == nil {
		return defaults, nil
	}
	settings, err := reader.Get(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaults, nil
		}
		return defaults, err
	}
	if settings.ClassDurationMinutes <= 0 {
		settings.ClassDurationMinutes = defaults.ClassDurationMinutes
	}
	if settings.MinTotalLessons <= 0 {
		settings.MinTotalLessons = defaults.MinTotalLessons
	}
	return *settings, nil
}

// loadCalendar reads the teacher's recurring windows and the classes overlapping [from, to).
func loadCalendar(
	ctx context.Context,
	availability availabilityLister,
	classes classWindowLister,
	loc *time.Location,
	teacherID int64,
	from time.Time,
	to time.Time,
) (scheduling.Calendar, error) {
	windows, err := availability.ListByTeacher(ctx, teacherID)
	if err != nil {
		return scheduling.Calendar{}, err
	}
	booked, err := classes.ListActiveForTeacherBetween(ctx, teacherID, from, to)
	if err != nil {
		return scheduling.Calendar{}, err
	}
	return scheduling.Calendar{Location: loc, Availability: windows, Classes: booked}, nil
}

// requireTeacher checks that id belongs to a teacher or admin account.
func requireTeacher(ctx context.Context, users userReader, id int64) (*models.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}
	if !user.IsStaff() {
		return nil, ErrTeacherNotFound
	}
	return user, nil
}

func requireStudent(ctx context.Context, users userReader, id int64) (*models.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if user.Role != models.RoleStudent {
		return nil, ErrStudentNotFound
	}
	return user, nil
}

// canAccess reports whether the actor is one of the two parties, or an admin.
func canAccess(role string, actorID int64, studentID int64, teacherID int64) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return actorID == studentID
	case models.RoleTeacher:
		return actorID == teacherID
	default:
		return false
	}
}

// canManage reports whether the actor may act as the teacher of the record.
func canManage(role string, actorID int64, teacherID int64) bool {
	return role == models.RoleAdmin || (role == models.RoleTeacher && actorID == teacherID)
}

func trimOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}
	return &trimmed, nil
}

// optionalText trims the value and treats blank as absent.
func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapNoRows(err error, replacement error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return replacement
	}
	return err
}

var _ availabilityLister = (*repository.AvailabilityRepository)(nil)
var _ classWindowLister = (*repository.ClassRepository)(nil)
