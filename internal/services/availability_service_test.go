package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
)

type stubAvailabilityRepo struct {
	windows   []models.TeacherAvailability
	lastInput repository.AvailabilityInput
	lastOwner int64
}

func (r *stubAvailabilityRepo) Create(_ context.Context, teacherID int64, input repository.AvailabilityInput) (*models.TeacherAvailability, error) {
	r.lastOwner = teacherID
	r.lastInput = input
	return &models.TeacherAvailability{ID: 1, TeacherID: teacherID, DayOfWeek: input.DayOfWeek, StartTime: input.StartTime, EndTime: input.EndTime}, nil
}

func (r *stubAvailabilityRepo) GetByID(_ context.Context, id int64) (*models.TeacherAvailability, error) {
	for i := range r.windows {
		if r.windows[i].ID == id {
			return &r.windows[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubAvailabilityRepo) ListByTeacher(_ context.Context, _ int64) ([]models.TeacherAvailability, error) {
	return r.windows, nil
}

func (r *stubAvailabilityRepo) Update(_ context.Context, id int64, input repository.AvailabilityInput) (*models.TeacherAvailability, error) {
	r.lastInput = input
	return &models.TeacherAvailability{ID: id, TeacherID: 7}, nil
}

func (r *stubAvailabilityRepo) Delete(_ context.Context, _ int64) error {
	return nil
}

type stubClassWindows struct {
	classes []models.Class
}

func (s *stubClassWindows) ListActiveForTeacherBetween(_ context.Context, _ int64, _ time.Time, _ time.Time) ([]models.Class, error) {
	return s.classes, nil
}

func newTestAvailabilityService(repo *stubAvailabilityRepo, classes []models.Class) *AvailabilityService {
	return &AvailabilityService{
		availability: repo,
		classes:      &stubClassWindows{classes: classes},
		users:        newStubUsers(&models.User{ID: 7, Role: models.RoleTeacher}, &models.User{ID: 42, Role: models.RoleStudent}),
		events:       noopPublisher{},
		location:     time.UTC,
	}
}

func TestAvailabilityServiceCreateNormalizesWindow(t *testing.T) {
	repo := &stubAvailabilityRepo{}
	service := newTestAvailabilityService(repo, nil)
	ctx := context.Background()

	if _, err := service.Create(ctx, 7, models.RoleTeacher, AvailabilityInput{DayOfWeek: 1, StartTime: "9:00", EndTime: "13:30", IsAvailable: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.lastOwner != 7 || repo.lastInput.StartTime != "09:00" || repo.lastInput.EndTime != "13:30" {
		t.Fatalf("unexpected stored window owner=%d %+v", repo.lastOwner, repo.lastInput)
	}

	if _, err := service.Create(ctx, 1, models.RoleAdmin, AvailabilityInput{TeacherID: 7, DayOfWeek: 2, StartTime: "10:00", EndTime: "11:00"}); err != nil {
		t.Fatalf("Create as admin: %v", err)
	}
	if repo.lastOwner != 7 {
		t.Fatalf("expected admin to create for teacher 7, got %d", repo.lastOwner)
	}

	invalid := []AvailabilityInput{
		{DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"},
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "10:00"},
		{DayOfWeek: 1, StartTime: "25:00", EndTime: "26:00"},
	}
	for _, input := range invalid {
		if _, err := service.Create(ctx, 7, models.RoleTeacher, input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", input, err)
		}
	}
	if _, err := service.Create(ctx, 42, models.RoleStudent, AvailabilityInput{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for students, got %v", err)
	}
}

func TestAvailabilityServiceUpdateRequiresOwner(t *testing.T) {
	repo := &stubAvailabilityRepo{windows: []models.TeacherAvailability{{ID: 3, TeacherID: 7}}}
	service := newTestAvailabilityService(repo, nil)

	if _, err := service.Update(context.Background(), 8, models.RoleTeacher, 3, AvailabilityInput{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := service.Delete(context.Background(), 7, models.RoleTeacher, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestAvailabilityServiceCheck(t *testing.T) {
	repo := &stubAvailabilityRepo{windows: []models.TeacherAvailability{
		{ID: 1, TeacherID: 7, DayOfWeek: 3, StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
	}}
	booked := models.Class{
		ID:              4,
		TeacherID:       7,
		ClassDate:       time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 50,
		Status:          models.ClassStatusScheduled,
	}
	service := newTestAvailabilityService(repo, []models.Class{booked})
	ctx := context.Background()

	cases := []struct {
		start  time.Time
		reason string
	}{
		{start: time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC), reason: ""},
		{start: time.Date(2030, 1, 2, 10, 30, 0, 0, time.UTC), reason: scheduling.ReasonOverlapsClass},
		{start: time.Date(2030, 1, 2, 11, 30, 0, 0, time.UTC), reason: ""},
		{start: time.Date(2030, 1, 2, 11, 45, 0, 0, time.UTC), reason: scheduling.ReasonOutsideAvailability},
	}
	for _, tc := range cases {
		result, err := service.Check(ctx, 7, tc.start, 30)
		if err != nil {
			t.Fatalf("Check(%s): %v", tc.start, err)
		}
		if result.Available != (tc.reason == "") || result.Reason != tc.reason {
			t.Fatalf("Check(%s) = %+v, want reason %q", tc.start, result, tc.reason)
		}
	}

	if _, err := service.Check(ctx, 0, time.Time{}, 30); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAvailabilityServiceDayAndList(t *testing.T) {
	service := newTestAvailabilityService(&stubAvailabilityRepo{}, nil)
	ctx := context.Background()

	day, err := service.Day(ctx, 7, "2030-01-02")
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if day.TeacherID != 7 || day.Date != "2030-01-02" || len(day.Slots) == 0 {
		t.Fatalf("unexpected day schedule %+v", day)
	}
	if _, err := service.Day(ctx, 7, "02/01/2030"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad date, got %v", err)
	}

	if _, err := service.List(ctx, 42); !errors.Is(err, ErrTeacherNotFound) {
		t.Fatalf("expected ErrTeacherNotFound for a student id, got %v", err)
	}
}
