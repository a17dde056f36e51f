package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
	"github.com/tutordesk/backend/internal/services"
)

type classRequestApplicationService interface {
	Create(ctx context.Context, studentID int64, role string, input services.CreateClassRequestInput) (*models.ClassRequest, error)
	List(ctx context.Context, actorID int64, role string, status string) ([]models.ClassRequest, error)
	Get(ctx context.Context, actorID int64, role string, requestID int64) (*models.ClassRequestDetail, error)
	Approve(ctx context.Context, actorID int64, role string, requestID int64) (*models.ClassRequestDetail, error)
	Reject(ctx context.Context, actorID int64, role string, requestID int64, reason *string) (*models.ClassRequest, error)
	Edit(ctx context.Context, actorID int64, role string, requestID int64, input services.TeacherEditsInput) (*models.ClassRequest, error)
	Respond(ctx context.Context, actorID int64, role string, requestID int64, accept bool) (*models.ClassRequest, error)
}

type ClassRequestHandler struct {
	service classRequestApplicationService
}

type createClassRequestRequest struct {
	TeacherID         int64               `json:"teacher_id" validate:"required,gt=0"`
	WeeklySchedule    []models.WeeklySlot `json:"weekly_schedule" validate:"required,min=1,max=14"`
	LessonsPerWeek    int                 `json:"lessons_per_week" validate:"required,gt=0,max=14"`
	TotalLessons      int                 `json:"total_lessons" validate:"required,gt=0,max=200"`
	FirstClassFree    *bool               `json:"first_class_free"`
	PaymentPreference string              `json:"payment_preference" validate:"omitempty,oneof=per_class package"`
	Notes             *string             `json:"notes" validate:"omitempty,max=2000"`
}

type rejectClassRequestRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

type editClassRequestRequest struct {
	WeeklySchedule []models.WeeklySlot `json:"weekly_schedule" validate:"omitempty,max=14"`
	LessonsPerWeek *int                `json:"lessons_per_week" validate:"omitempty,gt=0,max=14"`
	TotalLessons   *int                `json:"total_lessons" validate:"omitempty,gt=0,max=200"`
	Message        *string             `json:"message" validate:"omitempty,max=2000"`
}

type respondClassRequestRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

func NewClassRequestHandler(service classRequestApplicationService) *ClassRequestHandler {
	return &ClassRequestHandler{service: service}
}

func (h *ClassRequestHandler) Create(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req createClassRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	request, err := h.service.Create(c.Context(), session.UserID, session.Role, services.CreateClassRequestInput{
		TeacherID:         req.TeacherID,
		WeeklySchedule:    req.WeeklySchedule,
		LessonsPerWeek:    req.LessonsPerWeek,
		TotalLessons:      req.TotalLessons,
		FirstClassFree:    req.FirstClassFree,
		PaymentPreference: req.PaymentPreference,
		Notes:             req.Notes,
	})
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"class_request": request})
}

func (h *ClassRequestHandler) List(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	requests, err := h.service.List(c.Context(), session.UserID, session.Role, strings.TrimSpace(c.Query("status")))
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.JSON(fiber.Map{"class_requests": requests})
}

func (h *ClassRequestHandler) Get(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class request id"})
	}

	detail, err := h.service.Get(c.Context(), session.UserID, session.Role, requestID)
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.JSON(fiber.Map{"class_request": detail})
}

// Approve creates every class of the request or none; a blocked slot comes back as 409 with its details.
func (h *ClassRequestHandler) Approve(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class request id"})
	}

	detail, err := h.service.Approve(c.Context(), session.UserID, session.Role, requestID)
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.JSON(fiber.Map{"class_request": detail})
}

func (h *ClassRequestHandler) Reject(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class request id"})
	}

	var req rejectClassRequestRequest
	if len(c.Body()) > 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return respondInvalidBody(c, err)
		}
	}

	request, err := h.service.Reject(c.Context(), session.UserID, session.Role, requestID, req.Reason)
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.JSON(fiber.Map{"class_request": request})
}

func (h *ClassRequestHandler) Edit(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class request id"})
	}

	var req editClassRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	request, err := h.service.Edit(c.Context(), session.UserID, session.Role, requestID, services.TeacherEditsInput{
		WeeklySchedule: req.WeeklySchedule,
		LessonsPerWeek: req.LessonsPerWeek,
		TotalLessons:   req.TotalLessons,
		Message:        req.Message,
	})
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.JSON(fiber.Map{"class_request": request})
}

func (h *ClassRequestHandler) Respond(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class request id"})
	}

	var req respondClassRequestRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	request, err := h.service.Respond(c.Context(), session.UserID, session.Role, requestID, *req.Accept)
	if err != nil {
		return mapClassRequestError(c, err)
	}

	return c.JSON(fiber.Map{"class_request": request})
}

func mapClassRequestError(c *fiber.Ctx, err error) error {
	var conflict *scheduling.SlotConflict
	switch {
	case errors.As(err, &conflict):
		return respondSlotConflict(c, conflict)
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Class request is not in a state that allows this action"})
	case errors.Is(err, services.ErrTeacherNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class request not found"})
	default:
		return respondInternal(c, "Failed to process class request", err)
	}
}
