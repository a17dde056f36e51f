package handlers

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
)

type profileApplicationService interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
	Update(ctx context.Context, userID int64, input repository.UpdateUserProfileInput) (*models.User, error)
	UploadAvatar(ctx context.Context, userID int64, file io.Reader, filename string) (*models.User, error)
	ListTeachers(ctx context.Context) ([]models.User, error)
	ListStudents(ctx context.Context, role string) ([]models.User, error)
}

type ProfileHandler struct {
	service profileApplicationService
}

type updateProfileRequest struct {
	FullName       *string `json:"full_name" validate:"omitempty,max=120"`
	TelegramChatID *int64  `json:"telegram_chat_id"`
}

func NewProfileHandler(service profileApplicationService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	user, err := h.service.Get(c.Context(), session.UserID)
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"profile": user})
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	user, err := h.service.Update(c.Context(), session.UserID, repository.UpdateUserProfileInput{
		FullName:       req.FullName,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{"profile": user})
}

func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	file, filename, err := optionalUpload(c, "avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if file == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar must be a jpg, jpeg, png, or webp file"})
	}

	user, err := h.service.UploadAvatar(c.Context(), session.UserID, file, filename)
	if err != nil {
		return mapProfileError(c, err)
	}

	return c.JSON(fiber.Map{
		"avatar_url": user.AvatarURL,
		"profile":    user,
	})
}

func (h *ProfileHandler) ListTeachers(c *fiber.Ctx) error {
	teachers, err := h.service.ListTeachers(c.Context())
	if err != nil {
		return mapProfileError(c, err)
	}
	return c.JSON(fiber.Map{"teachers": teachers})
}

func (h *ProfileHandler) ListStudents(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	students, err := h.service.ListStudents(c.Context(), session.Role)
	if err != nil {
		return mapProfileError(c, err)
	}
	return c.JSON(fiber.Map{"students": students})
}

func mapProfileError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid profile data"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	default:
		return respondInternal(c, "Failed to process profile request", err)
	}
}
