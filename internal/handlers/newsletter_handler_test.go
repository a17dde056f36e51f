package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
)

type stubNewsletterService struct {
	subscribed     string
	unsubscribeErr error
	notifyErr      error
	notifyResult   models.NotifyResult
	announced      *services.PostAnnouncement
}

func (s *stubNewsletterService) Subscribe(_ context.Context, email string) (*models.Subscriber, error) {
	s.subscribed = email
	return &models.Subscriber{Email: email}, nil
}

func (s *stubNewsletterService) Unsubscribe(context.Context, string) error {
	return s.unsubscribeErr
}

func (s *stubNewsletterService) NotifySubscribers(_ context.Context, _ string, post services.PostAnnouncement) (models.NotifyResult, error) {
	s.announced = &post
	return s.notifyResult, s.notifyErr
}

func TestNewsletterSubscribe(t *testing.T) {
	service := &stubNewsletterService{}
	handler := NewNewsletterHandler(service)
	app := newTestApp(0, "")
	app.Post("/subscribe", handler.Subscribe)

	resp := doJSON(t, app, http.MethodPost, "/subscribe", map[string]any{"email": "not-an-email"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, app, http.MethodPost, "/subscribe", map[string]any{"email": "reader@example.com"})
	expectStatus(t, resp, http.StatusCreated)
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if service.subscribed != "reader@example.com" {
		t.Fatalf("unexpected email %q", service.subscribed)
	}
}

func TestNewsletterUnsubscribe(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{name: "missing token", query: "", want: http.StatusBadRequest},
		{name: "unknown token", query: "?token=abc", err: repository.ErrNotFound, want: http.StatusNotFound},
		{name: "ok", query: "?token=abc", want: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewNewsletterHandler(&stubNewsletterService{unsubscribeErr: tc.err})
			app := newTestApp(0, "")
			app.Get("/unsubscribe", handler.Unsubscribe)

			resp := doJSON(t, app, http.MethodGet, "/unsubscribe"+tc.query, nil)
			expectStatus(t, resp, tc.want)
		})
	}
}

func TestNotifySubscribersValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing id", body: map[string]any{"postTitle": "Hello", "postSlug": "hello"}},
		{name: "missing title", body: map[string]any{"postId": 3, "postSlug": "hello"}},
		{name: "missing slug", body: map[string]any{"postId": 3, "postTitle": "Hello"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubNewsletterService{}
			handler := NewNewsletterHandler(service)
			app := newTestApp(1, models.RoleTeacher)
			app.Post("/notify", handler.NotifySubscribers)

			resp := doJSON(t, app, http.MethodPost, "/notify", tc.body)
			expectStatus(t, resp, http.StatusBadRequest)
			if service.announced != nil {
				t.Fatal("service must not be called without required fields")
			}
		})
	}
}

func TestNotifySubscribersOutcomes(t *testing.T) {
	validBody := map[string]any{"postId": 3, "postTitle": "Hello", "postSlug": "hello", "postExcerpt": "Short"}

	t.Run("email not configured", func(t *testing.T) {
		handler := NewNewsletterHandler(&stubNewsletterService{notifyErr: services.ErrEmailUnavailable})
		app := newTestApp(1, models.RoleTeacher)
		app.Post("/notify", handler.NotifySubscribers)

		resp := doJSON(t, app, http.MethodPost, "/notify", validBody)
		expectStatus(t, resp, http.StatusInternalServerError)
	})

	t.Run("subscriber fetch fails", func(t *testing.T) {
		handler := NewNewsletterHandler(&stubNewsletterService{notifyErr: errors.New("db down")})
		app := newTestApp(1, models.RoleTeacher)
		app.Post("/notify", handler.NotifySubscribers)

		resp := doJSON(t, app, http.MethodPost, "/notify", validBody)
		expectStatus(t, resp, http.StatusInternalServerError)
	})

	t.Run("sent", func(t *testing.T) {
		service := &stubNewsletterService{notifyResult: models.NotifyResult{Success: true, Count: 2, Failed: 1, Total: 3}}
		handler := NewNewsletterHandler(service)
		app := newTestApp(1, models.RoleTeacher)
		app.Post("/notify", handler.NotifySubscribers)

		resp := doJSON(t, app, http.MethodPost, "/notify", validBody)
		expectStatus(t, resp, http.StatusOK)

		var result models.NotifyResult
		decodeBody(t, resp, &result)
		if result != service.notifyResult {
			t.Fatalf("expected %+v, got %+v", service.notifyResult, result)
		}
		if service.announced == nil || service.announced.PostSlug != "hello" || service.announced.PostExcerpt != "Short" {
			t.Fatalf("unexpected announcement %+v", service.announced)
		}
	})
}
