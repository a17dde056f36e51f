package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
	"github.com/tutordesk/backend/internal/services"
)

type stubClassRequestService struct {
	createInput services.CreateClassRequestInput
	createCalls int
	approveErr  error
	respondArg  *bool
	rejectArg   *string
	getErr      error
}

func (s *stubClassRequestService) Create(_ context.Context, studentID int64, _ string, input services.CreateClassRequestInput) (*models.ClassRequest, error) {
	s.createCalls++
	s.createInput = input
	return &models.ClassRequest{ID: 7, StudentID: studentID, TeacherID: input.TeacherID, Status: models.RequestStatusPending}, nil
}

func (s *stubClassRequestService) List(context.Context, int64, string, string) ([]models.ClassRequest, error) {
	return []models.ClassRequest{{ID: 1}, {ID: 2}}, nil
}

func (s *stubClassRequestService) Get(_ context.Context, _ int64, _ string, requestID int64) (*models.ClassRequestDetail, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &models.ClassRequestDetail{ClassRequest: models.ClassRequest{ID: requestID}}, nil
}

func (s *stubClassRequestService) Approve(_ context.Context, _ int64, _ string, requestID int64) (*models.ClassRequestDetail, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return &models.ClassRequestDetail{ClassRequest: models.ClassRequest{ID: requestID, Status: models.RequestStatusAwaitingPayment}}, nil
}

func (s *stubClassRequestService) Reject(_ context.Context, _ int64, _ string, requestID int64, reason *string) (*models.ClassRequest, error) {
	s.rejectArg = reason
	return &models.ClassRequest{ID: requestID, Status: models.RequestStatusRejected}, nil
}

func (s *stubClassRequestService) Edit(_ context.Context, _ int64, _ string, requestID int64, _ services.TeacherEditsInput) (*models.ClassRequest, error) {
	return &models.ClassRequest{ID: requestID}, nil
}

func (s *stubClassRequestService) Respond(_ context.Context, _ int64, _ string, requestID int64, accept bool) (*models.ClassRequest, error) {
	s.respondArg = &accept
	return &models.ClassRequest{ID: requestID}, nil
}

func TestClassRequestCreateValidatesBody(t *testing.T) {
	service := &stubClassRequestService{}
	handler := NewClassRequestHandler(service)
	app := newTestApp(3, models.RoleStudent)
	app.Post("/class-requests", handler.Create)

	resp := doJSON(t, app, http.MethodPost, "/class-requests", map[string]any{
		"teacher_id":       1,
		"lessons_per_week": 2,
	})
	expectStatus(t, resp, http.StatusBadRequest)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, resp, &body)
	if _, ok := body.Fields["weekly_schedule"]; !ok {
		t.Fatalf("expected weekly_schedule in fields, got %v", body.Fields)
	}
	if _, ok := body.Fields["total_lessons"]; !ok {
		t.Fatalf("expected total_lessons in fields, got %v", body.Fields)
	}
	if service.createCalls != 0 {
		t.Fatal("service must not be called for an invalid body")
	}
}

func TestClassRequestCreatePassesInput(t *testing.T) {
	service := &stubClassRequestService{}
	handler := NewClassRequestHandler(service)
	app := newTestApp(3, models.RoleStudent)
	app.Post("/class-requests", handler.Create)

	resp := doJSON(t, app, http.MethodPost, "/class-requests", map[string]any{
		"teacher_id":       1,
		"weekly_schedule":  []map[string]any{{"day_of_week": 1, "time": "10:00"}, {"day_of_week": 3, "time": "16:30"}},
		"lessons_per_week": 2,
		"total_lessons":    8,
	})
	expectStatus(t, resp, http.StatusCreated)

	if len(service.createInput.WeeklySchedule) != 2 || service.createInput.TotalLessons != 8 {
		t.Fatalf("unexpected input: %+v", service.createInput)
	}
	if service.createInput.FirstClassFree != nil {
		t.Fatal("first_class_free should stay unset when omitted")
	}
}

func TestClassRequestCreateRequiresSession(t *testing.T) {
	handler := NewClassRequestHandler(&stubClassRequestService{})
	app := newTestApp(0, "")
	app.Post("/class-requests", handler.Create)

	resp := doJSON(t, app, http.MethodPost, "/class-requests", map[string]any{})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestClassRequestApproveConflict(t *testing.T) {
	conflictDate := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	service := &stubClassRequestService{
		approveErr: fmt.Errorf("approve: %w", &scheduling.SlotConflict{
			DayOfWeek: 1,
			Time:      "10:00",
			Date:      conflictDate,
			Reason:    "already booked",
		}),
	}
	handler := NewClassRequestHandler(service)
	app := newTestApp(1, models.RoleTeacher)
	app.Post("/class-requests/:id/approve", handler.Approve)

	resp := doJSON(t, app, http.MethodPost, "/class-requests/5/approve", nil)
	expectStatus(t, resp, http.StatusConflict)

	var body struct {
		Conflict scheduling.SlotConflict `json:"conflict"`
	}
	decodeBody(t, resp, &body)
	if body.Conflict.Time != "10:00" || body.Conflict.DayOfWeek != 1 || body.Conflict.Reason != "already booked" {
		t.Fatalf("unexpected conflict body: %+v", body.Conflict)
	}
	if !body.Conflict.Date.Equal(conflictDate) {
		t.Fatalf("expected conflict date %s, got %s", conflictDate, body.Conflict.Date)
	}
}

func TestClassRequestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: repository.ErrNotFound, want: http.StatusNotFound},
		{name: "forbidden", err: services.ErrForbidden, want: http.StatusForbidden},
		{name: "state", err: services.ErrInvalidStateTransition, want: http.StatusConflict},
		{name: "teacher", err: services.ErrTeacherNotFound, want: http.StatusNotFound},
		{name: "internal", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewClassRequestHandler(&stubClassRequestService{getErr: tc.err})
			app := newTestApp(1, models.RoleTeacher)
			app.Get("/class-requests/:id", handler.Get)

			resp := doJSON(t, app, http.MethodGet, "/class-requests/5", nil)
			expectStatus(t, resp, tc.want)
		})
	}
}

func TestClassRequestInvalidID(t *testing.T) {
	handler := NewClassRequestHandler(&stubClassRequestService{})
	app := newTestApp(1, models.RoleTeacher)
	app.Get("/class-requests/:id", handler.Get)

	resp := doJSON(t, app, http.MethodGet, "/class-requests/abc", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestClassRequestRejectWithoutBody(t *testing.T) {
	service := &stubClassRequestService{}
	handler := NewClassRequestHandler(service)
	app := newTestApp(1, models.RoleTeacher)
	app.Post("/class-requests/:id/reject", handler.Reject)

	resp := doJSON(t, app, http.MethodPost, "/class-requests/5/reject", nil)
	expectStatus(t, resp, http.StatusOK)
	if service.rejectArg != nil {
		t.Fatalf("expected no reason, got %q", *service.rejectArg)
	}
}

func TestClassRequestRespondRequiresAccept(t *testing.T) {
	service := &stubClassRequestService{}
	handler := NewClassRequestHandler(service)
	app := newTestApp(3, models.RoleStudent)
	app.Post("/class-requests/:id/respond", handler.Respond)

	resp := doJSON(t, app, http.MethodPost, "/class-requests/5/respond", map[string]any{})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, app, http.MethodPost, "/class-requests/5/respond", map[string]any{"accept": false})
	expectStatus(t, resp, http.StatusOK)
	if service.respondArg == nil || *service.respondArg {
		t.Fatal("expected accept=false to reach the service")
	}
}
