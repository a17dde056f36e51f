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
	"github.com/tutordesk/backend/internal/services"
)

type homeworkApplicationService interface {
	Assign(ctx context.Context, teacherID int64, role string, input services.AssignHomeworkInput) (*models.Homework, error)
	List(ctx context.Context, actorID int64, role string, status string) ([]models.Homework, error)
	Get(ctx context.Context, actorID int64, role string, homeworkID int64) (*models.Homework, error)
	Submit(ctx context.Context, studentID int64, role string, homeworkID int64, input services.SubmitHomeworkInput) (*models.Homework, error)
	Review(ctx context.Context, actorID int64, role string, homeworkID int64, feedback *string, complete bool) (*models.Homework, error)
	Delete(ctx context.Context, actorID int64, role string, homeworkID int64) error
	AttachmentURL(ctx context.Context, actorID int64, role string, homeworkID int64) (string, error)
}

type HomeworkHandler struct {
	service  homeworkApplicationService
	location *time.Location
}

type assignHomeworkRequest struct {
	StudentID   int64   `json:"student_id" form:"student_id" validate:"required,gt=0"`
	ClassID     *int64  `json:"class_id" form:"class_id" validate:"omitempty,gt=0"`
	Title       string  `json:"title" form:"title" validate:"required,max=200"`
	Description *string `json:"description" form:"description" validate:"omitempty,max=5000"`
	DueDate     string  `json:"due_date" form:"due_date" validate:"required"`
}

type submitHomeworkRequest struct {
	Text *string `json:"text" form:"text" validate:"omitempty,max=10000"`
}

type reviewHomeworkRequest struct {
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

func NewHomeworkHandler(service homeworkApplicationService, location *time.Location) *HomeworkHandler {
	return &HomeworkHandler{service: service, location: location}
}

func (h *HomeworkHandler) Assign(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req assignHomeworkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}
	dueDate, err := parseTimestamp(req.DueDate, h.location)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "due_date must be RFC3339 or YYYY-MM-DD"})
	}

	file, filename, err := optionalUpload(c, "attachment")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	input := services.AssignHomeworkInput{
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     dueDate,
		Filename:    filename,
	}
	if file != nil {
		defer file.Close()
		input.File = file
	}

	homework, err := h.service.Assign(c.Context(), session.UserID, session.Role, input)
	if err != nil {
		return mapHomeworkError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"homework": homework})
}

func (h *HomeworkHandler) List(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	items, err := h.service.List(c.Context(), session.UserID, session.Role, strings.TrimSpace(c.Query("status")))
	if err != nil {
		return mapHomeworkError(c, err)
	}

	return c.JSON(fiber.Map{"homework": items})
}

func (h *HomeworkHandler) Get(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	homeworkID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework id"})
	}

	homework, err := h.service.Get(c.Context(), session.UserID, session.Role, homeworkID)
	if err != nil {
		return mapHomeworkError(c, err)
	}

	return c.JSON(fiber.Map{"homework": homework})
}

func (h *HomeworkHandler) Submit(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	homeworkID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework id"})
	}

	var req submitHomeworkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	file, filename, err := optionalUpload(c, "file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	input := services.SubmitHomeworkInput{Text: req.Text, Filename: filename}
	if file != nil {
		defer file.Close()
		input.File = file
	}

	homework, err := h.service.Submit(c.Context(), session.UserID, session.Role, homeworkID, input)
	if err != nil {
		return mapHomeworkError(c, err)
	}

	return c.JSON(fiber.Map{"homework": homework})
}

func (h *HomeworkHandler) Review(c *fiber.Ctx) error {
	return h.review(c, false)
}

func (h *HomeworkHandler) Complete(c *fiber.Ctx) error {
	return h.review(c, true)
}

func (h *HomeworkHandler) review(c *fiber.Ctx, complete bool) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	homeworkID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework id"})
	}

	var req reviewHomeworkRequest
	if len(c.Body()) > 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return respondInvalidBody(c, err)
		}
	}

	homework, err := h.service.Review(c.Context(), session.UserID, session.Role, homeworkID, req.Feedback, complete)
	if err != nil {
		return mapHomeworkError(c, err)
	}

	return c.JSON(fiber.Map{"homework": homework})
}

func (h *HomeworkHandler) Delete(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	homeworkID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework id"})
	}

	if err := h.service.Delete(c.Context(), session.UserID, session.Role, homeworkID); err != nil {
		return mapHomeworkError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HomeworkHandler) Attachment(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	homeworkID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework id"})
	}

	signedURL, err := h.service.AttachmentURL(c.Context(), session.UserID, session.Role, homeworkID)
	if err != nil {
		return mapHomeworkError(c, err)
	}

	return c.JSON(fiber.Map{"url": signedURL})
}

func mapHomeworkError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Homework was changed by someone else, reload and retry"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, services.ErrStudentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	default:
		return respondInternal(c, "Failed to process homework request", err)
	}
}
