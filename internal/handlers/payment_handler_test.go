package handlers

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/services"
)

type stubPaymentService struct {
	submitted   *services.SubmitPaymentInput
	fileContent string
	reviewErr   error
	confirmed   int64
	rejected    int64
}

func (s *stubPaymentService) Submit(_ context.Context, studentID int64, _ string, input services.SubmitPaymentInput) (*models.PaymentNotification, error) {
	s.submitted = &input
	if input.File != nil {
		content, err := io.ReadAll(input.File)
		if err != nil {
			return nil, err
		}
		s.fileContent = string(content)
	}
	return &models.PaymentNotification{ID: 1, StudentID: studentID, Amount: input.Amount}, nil
}

func (s *stubPaymentService) List(context.Context, int64, string, string) ([]models.PaymentNotification, error) {
	return nil, nil
}

func (s *stubPaymentService) Confirm(_ context.Context, _ int64, _ string, notificationID int64) (*models.PaymentNotification, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	s.confirmed = notificationID
	return &models.PaymentNotification{ID: notificationID, Status: models.PaymentNotificationConfirmed}, nil
}

func (s *stubPaymentService) Reject(_ context.Context, _ int64, _ string, notificationID int64) (*models.PaymentNotification, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	s.rejected = notificationID
	return &models.PaymentNotification{ID: notificationID, Status: models.PaymentNotificationRejected}, nil
}

func (s *stubPaymentService) ReceiptURL(context.Context, int64, string, int64) (string, error) {
	return "https://storage.example/signed", nil
}

func TestPaymentSubmitJSON(t *testing.T) {
	service := &stubPaymentService{}
	handler := NewPaymentHandler(service)
	app := newTestApp(3, models.RoleStudent)
	app.Post("/payments", handler.Submit)

	resp := doJSON(t, app, http.MethodPost, "/payments", map[string]any{
		"class_id": 8,
		"amount":   25.5,
		"method":   "bank_transfer",
	})
	expectStatus(t, resp, http.StatusCreated)

	if service.submitted == nil || service.submitted.ClassID == nil || *service.submitted.ClassID != 8 {
		t.Fatalf("unexpected input: %+v", service.submitted)
	}
	if service.submitted.File != nil {
		t.Fatal("JSON submissions carry no receipt")
	}
}

func TestPaymentSubmitMultipartWithReceipt(t *testing.T) {
	service := &stubPaymentService{}
	handler := NewPaymentHandler(service)
	app := newTestApp(3, models.RoleStudent)
	app.Post("/payments", handler.Submit)

	resp := doMultipart(t, app, "/payments", map[string]string{
		"class_request_id": "4",
		"amount":           "120",
		"method":           "cash",
	}, "receipt", "receipt.png", []byte("png-bytes"))
	expectStatus(t, resp, http.StatusCreated)

	if service.submitted.ClassRequestID == nil || *service.submitted.ClassRequestID != 4 {
		t.Fatalf("unexpected class request id: %+v", service.submitted.ClassRequestID)
	}
	if service.submitted.Filename != "receipt.png" || service.fileContent != "png-bytes" {
		t.Fatalf("receipt not forwarded: %q %q", service.submitted.Filename, service.fileContent)
	}
}

func TestPaymentSubmitValidation(t *testing.T) {
	service := &stubPaymentService{}
	handler := NewPaymentHandler(service)
	app := newTestApp(3, models.RoleStudent)
	app.Post("/payments", handler.Submit)

	resp := doJSON(t, app, http.MethodPost, "/payments", map[string]any{"class_id": 8, "amount": 0})
	expectStatus(t, resp, http.StatusBadRequest)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, resp, &body)
	if _, ok := body.Fields["amount"]; !ok {
		t.Fatalf("expected amount error, got %v", body.Fields)
	}
	if _, ok := body.Fields["method"]; !ok {
		t.Fatalf("expected method error, got %v", body.Fields)
	}
	if service.submitted != nil {
		t.Fatal("service must not be called")
	}
}

func TestPaymentReviewRoutes(t *testing.T) {
	service := &stubPaymentService{}
	handler := NewPaymentHandler(service)
	app := newTestApp(1, models.RoleTeacher)
	app.Post("/payments/:id/confirm", handler.Confirm)
	app.Post("/payments/:id/reject", handler.Reject)

	expectStatus(t, doJSON(t, app, http.MethodPost, "/payments/5/confirm", nil), http.StatusOK)
	expectStatus(t, doJSON(t, app, http.MethodPost, "/payments/6/reject", nil), http.StatusOK)
	if service.confirmed != 5 || service.rejected != 6 {
		t.Fatalf("unexpected review ids: confirmed=%d rejected=%d", service.confirmed, service.rejected)
	}
}

func TestPaymentReviewErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "already reviewed", err: services.ErrInvalidStateTransition, want: http.StatusConflict},
		{name: "not the teacher", err: services.ErrForbidden, want: http.StatusForbidden},
		{name: "storage off", err: services.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewPaymentHandler(&stubPaymentService{reviewErr: tc.err})
			app := newTestApp(1, models.RoleTeacher)
			app.Post("/payments/:id/confirm", handler.Confirm)

			expectStatus(t, doJSON(t, app, http.MethodPost, "/payments/5/confirm", nil), tc.want)
		})
	}
}

func TestPaymentReceiptURL(t *testing.T) {
	handler := NewPaymentHandler(&stubPaymentService{})
	app := newTestApp(1, models.RoleTeacher)
	app.Get("/payments/:id/receipt", handler.Receipt)

	resp := doJSON(t, app, http.MethodGet, "/payments/5/receipt", nil)
	expectStatus(t, resp, http.StatusOK)
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["url"] != "https://storage.example/signed" {
		t.Fatalf("unexpected body %v", body)
	}
}
