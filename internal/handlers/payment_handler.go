package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
)

type paymentApplicationService interface {
	Submit(ctx context.Context, studentID int64, role string, input services.SubmitPaymentInput) (*models.PaymentNotification, error)
	List(ctx context.Context, actorID int64, role string, status string) ([]models.PaymentNotification, error)
	Confirm(ctx context.Context, actorID int64, role string, notificationID int64) (*models.PaymentNotification, error)
	Reject(ctx context.Context, actorID int64, role string, notificationID int64) (*models.PaymentNotification, error)
	ReceiptURL(ctx context.Context, actorID int64, role string, notificationID int64) (string, error)
}

type PaymentHandler struct {
	service paymentApplicationService
}

// submitPaymentRequest is read from JSON or from multipart form fields next to the receipt file.
type submitPaymentRequest struct {
	ClassID        *int64  `json:"class_id" form:"class_id" validate:"omitempty,gt=0"`
	ClassRequestID *int64  `json:"class_request_id" form:"class_request_id" validate:"omitempty,gt=0"`
	Amount         float64 `json:"amount" form:"amount" validate:"gt=0"`
	Method         string  `json:"method" form:"method" validate:"required,max=50"`
	Reference      *string `json:"reference" form:"reference" validate:"omitempty,max=200"`
	Note           *string `json:"note" form:"note" validate:"omitempty,max=1000"`
}

func NewPaymentHandler(service paymentApplicationService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Submit(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req submitPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	file, filename, err := optionalUpload(c, "receipt")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if file != nil {
		defer file.Close()
	}

	input := services.SubmitPaymentInput{
		ClassID:        req.ClassID,
		ClassRequestID: req.ClassRequestID,
		Amount:         req.Amount,
		Method:         req.Method,
		Reference:      req.Reference,
		Note:           req.Note,
		Filename:       filename,
	}
	if file != nil {
		input.File = file
	}

	notification, err := h.service.Submit(c.Context(), session.UserID, session.Role, input)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment_notification": notification})
}

func (h *PaymentHandler) List(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	notifications, err := h.service.List(c.Context(), session.UserID, session.Role, strings.TrimSpace(c.Query("status")))
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment_notifications": notifications})
}

func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	return h.review(c, h.service.Confirm)
}

func (h *PaymentHandler) Reject(c *fiber.Ctx) error {
	return h.review(c, h.service.Reject)
}

func (h *PaymentHandler) review(
	c *fiber.Ctx,
	action func(ctx context.Context, actorID int64, role string, notificationID int64) (*models.PaymentNotification, error),
) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment notification id"})
	}

	notification, err := action(c.Context(), session.UserID, session.Role, notificationID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment_notification": notification})
}

func (h *PaymentHandler) Receipt(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment notification id"})
	}

	signedURL, err := h.service.ReceiptURL(c.Context(), session.UserID, session.Role, notificationID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"url": signedURL})
}

func mapPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Payment notification was already reviewed"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A payment for this item is already pending"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment notification not found"})
	default:
		return respondInternal(c, "Failed to process payment request", err)
	}
}
