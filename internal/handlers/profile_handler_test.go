package handlers

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
)

type stubProfileService struct {
	uploadedName string
	uploadErr    error
	updated      *repository.UpdateUserProfileInput
}

func (s *stubProfileService) Get(_ context.Context, userID int64) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (s *stubProfileService) Update(_ context.Context, userID int64, input repository.UpdateUserProfileInput) (*models.User, error) {
	s.updated = &input
	return &models.User{ID: userID}, nil
}

func (s *stubProfileService) UploadAvatar(_ context.Context, userID int64, _ io.Reader, filename string) (*models.User, error) {
	s.uploadedName = filename
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	avatarURL := "https://storage.example/avatars/" + filename
	return &models.User{ID: userID, AvatarURL: &avatarURL}, nil
}

func (s *stubProfileService) ListTeachers(context.Context) ([]models.User, error) {
	return []models.User{{ID: 1, Role: models.RoleTeacher}}, nil
}

func (s *stubProfileService) ListStudents(context.Context, string) ([]models.User, error) {
	return nil, services.ErrForbidden
}

func TestUploadAvatar(t *testing.T) {
	tests := []struct {
		name      string
		fileField string
		filename  string
		err       error
		want      int
	}{
		{name: "png", fileField: "avatar", filename: "me.png", want: http.StatusOK},
		{name: "missing file", want: http.StatusBadRequest},
		{name: "wrong extension", fileField: "avatar", filename: "me.gif", want: http.StatusBadRequest},
		{name: "storage off", fileField: "avatar", filename: "me.jpg", err: services.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubProfileService{uploadErr: tc.err}
			handler := NewProfileHandler(service)
			app := newTestApp(5, models.RoleStudent)
			app.Post("/profile/avatar", handler.UploadAvatar)

			resp := doMultipart(t, app, "/profile/avatar", nil, tc.fileField, tc.filename, []byte("image"))
			expectStatus(t, resp, tc.want)
			if tc.want == http.StatusOK && service.uploadedName != tc.filename {
				t.Fatalf("expected %q forwarded, got %q", tc.filename, service.uploadedName)
			}
		})
	}
}

func TestUpdateProfileForwardsTelegramChat(t *testing.T) {
	service := &stubProfileService{}
	handler := NewProfileHandler(service)
	app := newTestApp(5, models.RoleStudent)
	app.Put("/profile", handler.UpdateProfile)

	resp := doJSON(t, app, http.MethodPut, "/profile", map[string]any{"full_name": "Ana", "telegram_chat_id": 123456})
	expectStatus(t, resp, http.StatusOK)
	if service.updated == nil || service.updated.TelegramChatID == nil || *service.updated.TelegramChatID != 123456 {
		t.Fatalf("unexpected update %+v", service.updated)
	}
}

func TestListStudentsForbidden(t *testing.T) {
	handler := NewProfileHandler(&stubProfileService{})
	app := newTestApp(5, models.RoleStudent)
	app.Get("/students", handler.ListStudents)

	expectStatus(t, doJSON(t, app, http.MethodGet, "/students", nil), http.StatusForbidden)
}
