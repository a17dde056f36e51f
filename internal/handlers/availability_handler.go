package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
)

type availabilityApplicationService interface {
	List(ctx context.Context, teacherID int64) ([]models.TeacherAvailability, error)
	Create(ctx context.Context, actorID int64, role string, input services.AvailabilityInput) (*models.TeacherAvailability, error)
	Update(ctx context.Context, actorID int64, role string, windowID int64, input services.AvailabilityInput) (*models.TeacherAvailability, error)
	Delete(ctx context.Context, actorID int64, role string, windowID int64) error
	Check(ctx context.Context, teacherID int64, start time.Time, durationMinutes int) (models.AvailabilityResult, error)
	Day(ctx context.Context, teacherID int64, date string) (*models.DaySchedule, error)
}

type AvailabilityHandler struct {
	service availabilityApplicationService
}

type availabilityRequest struct {
	TeacherID   int64  `json:"teacher_id" validate:"omitempty,gt=0"`
	DayOfWeek   *int   `json:"day_of_week" validate:"required,gte=0,lte=6"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	IsAvailable *bool  `json:"is_available"`
}

func (r availabilityRequest) input() services.AvailabilityInput {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return services.AvailabilityInput{
		TeacherID:   r.TeacherID,
		DayOfWeek:   *r.DayOfWeek,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		IsAvailable: available,
	}
}

func NewAvailabilityHandler(service availabilityApplicationService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// teacherParam reads teacher_id, falling back to the caller when they teach.
func teacherParam(c *fiber.Ctx) (int64, bool) {
	teacherID, ok := parseIDQuery(c, "teacher_id")
	if !ok {
		return 0, false
	}
	if teacherID == 0 {
		if session, err := currentSession(c); err == nil && models.IsStaffRole(session.Role) {
			teacherID = session.UserID
		}
	}
	return teacherID, teacherID > 0
}

func (h *AvailabilityHandler) List(c *fiber.Ctx) error {
	teacherID, ok := teacherParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "teacher_id is required"})
	}

	windows, err := h.service.List(c.Context(), teacherID)
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(fiber.Map{"availability": windows})
}

func (h *AvailabilityHandler) Create(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req availabilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	window, err := h.service.Create(c.Context(), session.UserID, session.Role, req.input())
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"availability": window})
}

func (h *AvailabilityHandler) Update(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	windowID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid availability id"})
	}

	var req availabilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	window, err := h.service.Update(c.Context(), session.UserID, session.Role, windowID, req.input())
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(fiber.Map{"availability": window})
}

func (h *AvailabilityHandler) Delete(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	windowID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid availability id"})
	}

	if err := h.service.Delete(c.Context(), session.UserID, session.Role, windowID); err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Check answers whether start..start+duration is bookable. duration defaults to the class length.
func (h *AvailabilityHandler) Check(c *fiber.Ctx) error {
	teacherID, ok := teacherParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "teacher_id is required"})
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("start")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start must be a valid RFC3339 timestamp"})
	}

	duration := 0
	if raw := strings.TrimSpace(c.Query("duration")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration must be a positive number of minutes"})
		}
	}

	result, err := h.service.Check(c.Context(), teacherID, start, duration)
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(result)
}

func (h *AvailabilityHandler) Day(c *fiber.Ctx) error {
	teacherID, ok := teacherParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "teacher_id is required"})
	}
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date is required"})
	}

	day, err := h.service.Day(c.Context(), teacherID, date)
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(day)
}

func mapAvailabilityError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrTeacherNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Availability window not found"})
	default:
		return respondInternal(c, "Failed to process availability request", err)
	}
}
