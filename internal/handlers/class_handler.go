package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
	"github.com/tutordesk/backend/internal/services"
)

type classApplicationService interface {
	Create(ctx context.Context, actorID int64, role string, input services.CreateClassInput) (*models.Class, error)
	List(ctx context.Context, actorID int64, role string, filter repository.ClassListFilter) ([]models.Class, error)
	Get(ctx context.Context, actorID int64, role string, classID int64) (*models.Class, error)
	Update(ctx context.Context, actorID int64, role string, classID int64, input services.UpdateClassInput) (*models.Class, error)
	UpdateStatus(ctx context.Context, actorID int64, role string, classID int64, requestedStatus string) (*models.Class, error)
	Delete(ctx context.Context, actorID int64, role string, classID int64) error
}

type ClassHandler struct {
	service  classApplicationService
	location *time.Location
}

type createClassRequest struct {
	StudentID       int64     `json:"student_id" validate:"required,gt=0"`
	TeacherID       int64     `json:"teacher_id" validate:"omitempty,gt=0"`
	ClassDate       time.Time `json:"class_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,gte=15,lte=240"`
	Title           string    `json:"title" validate:"omitempty,max=200"`
	Notes           *string   `json:"notes" validate:"omitempty,max=2000"`
	MeetingURL      *string   `json:"meeting_url" validate:"omitempty,url"`
	IsFree          bool      `json:"is_free"`
}

type updateClassRequest struct {
	ClassDate       *time.Time `json:"class_date"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=15,lte=240"`
	Title           *string    `json:"title" validate:"omitempty,max=200"`
	Notes           *string    `json:"notes" validate:"omitempty,max=2000"`
	MeetingURL      *string    `json:"meeting_url" validate:"omitempty,url"`
}

type updateClassStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func NewClassHandler(service classApplicationService, location *time.Location) *ClassHandler {
	return &ClassHandler{service: service, location: location}
}

func (h *ClassHandler) Create(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req createClassRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	class, err := h.service.Create(c.Context(), session.UserID, session.Role, services.CreateClassInput{
		StudentID:       req.StudentID,
		TeacherID:       req.TeacherID,
		ClassDate:       req.ClassDate,
		DurationMinutes: req.DurationMinutes,
		Title:           req.Title,
		Notes:           req.Notes,
		MeetingURL:      req.MeetingURL,
		IsFree:          req.IsFree,
	})
	if err != nil {
		return mapClassError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"class": class})
}

func (h *ClassHandler) List(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}
	studentID, ok := parseIDQuery(c, "student_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student_id"})
	}

	filter := repository.ClassListFilter{
		StudentID: studentID,
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	}
	for name, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		parsed, err := parseTimestamp(raw, h.location)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": name + " must be RFC3339 or YYYY-MM-DD"})
		}
		*target = &parsed
	}

	classes, err := h.service.List(c.Context(), session.UserID, session.Role, filter)
	if err != nil {
		return mapClassError(c, err)
	}

	return c.JSON(fiber.Map{"classes": classes})
}

func (h *ClassHandler) Get(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	classID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class id"})
	}

	class, err := h.service.Get(c.Context(), session.UserID, session.Role, classID)
	if err != nil {
		return mapClassError(c, err)
	}

	return c.JSON(fiber.Map{"class": class})
}

func (h *ClassHandler) Update(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	classID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class id"})
	}

	var req updateClassRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	class, err := h.service.Update(c.Context(), session.UserID, session.Role, classID, services.UpdateClassInput{
		ClassDate:       req.ClassDate,
		DurationMinutes: req.DurationMinutes,
		Title:           req.Title,
		Notes:           req.Notes,
		MeetingURL:      req.MeetingURL,
	})
	if err != nil {
		return mapClassError(c, err)
	}

	return c.JSON(fiber.Map{"class": class})
}

func (h *ClassHandler) UpdateStatus(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	classID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class id"})
	}

	var req updateClassStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	class, err := h.service.UpdateStatus(c.Context(), session.UserID, session.Role, classID, req.Status)
	if err != nil {
		return mapClassError(c, err)
	}

	return c.JSON(fiber.Map{"class": class})
}

func (h *ClassHandler) Delete(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	classID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class id"})
	}

	if err := h.service.Delete(c.Context(), session.UserID, session.Role, classID); err != nil {
		return mapClassError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func mapClassError(c *fiber.Ctx, err error) error {
	var conflict *scheduling.SlotConflict
	switch {
	case errors.As(err, &conflict):
		return respondSlotConflict(c, conflict)
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Class was changed by someone else, reload and retry"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrStudentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	case errors.Is(err, services.ErrTeacherNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class not found"})
	default:
		return respondInternal(c, "Failed to process class request", err)
	}
}
