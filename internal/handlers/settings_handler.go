package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/services"
)

type settingsApplicationService interface {
	Get(ctx context.Context) (models.BusinessSettings, error)
	Update(ctx context.Context, role string, input models.BusinessSettings) (*models.BusinessSettings, error)
}

type SettingsHandler struct {
	service settingsApplicationService
}

func NewSettingsHandler(service settingsApplicationService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.service.Get(c.Context())
	if err != nil {
		return respondInternal(c, "Failed to load settings", err)
	}
	return c.JSON(fiber.Map{"settings": settings})
}

func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req models.BusinessSettings
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	settings, err := h.service.Update(c.Context(), session.Role, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		case errors.Is(err, services.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return respondInternal(c, "Failed to update settings", err)
		}
	}

	return c.JSON(fiber.Map{"settings": settings})
}
