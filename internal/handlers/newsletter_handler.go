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

type newsletterApplicationService interface {
	Subscribe(ctx context.Context, email string) (*models.Subscriber, error)
	Unsubscribe(ctx context.Context, token string) error
	NotifySubscribers(ctx context.Context, role string, post services.PostAnnouncement) (models.NotifyResult, error)
}

type NewsletterHandler struct {
	service newsletterApplicationService
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// notifySubscribersRequest keeps the camelCase body the blog editor sends.
type notifySubscribersRequest struct {
	PostID      int64  `json:"postId"`
	PostTitle   string `json:"postTitle"`
	PostSlug    string `json:"postSlug"`
	PostExcerpt string `json:"postExcerpt"`
}

func NewNewsletterHandler(service newsletterApplicationService) *NewsletterHandler {
	return &NewsletterHandler{service: service}
}

func (h *NewsletterHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	if _, err := h.service.Subscribe(c.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email"})
		}
		return respondInternal(c, "Failed to subscribe", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

func (h *NewsletterHandler) Unsubscribe(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	if err := h.service.Unsubscribe(c.Context(), token); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid token"})
		case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subscription not found"})
		default:
			return respondInternal(c, "Failed to unsubscribe", err)
		}
	}

	return c.JSON(fiber.Map{"success": true})
}

// NotifySubscribers emails every active subscriber about a published post and reports the tally.
func (h *NewsletterHandler) NotifySubscribers(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req notifySubscribersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.PostID <= 0 || strings.TrimSpace(req.PostTitle) == "" || strings.TrimSpace(req.PostSlug) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "postId, postTitle and postSlug are required"})
	}

	result, err := h.service.NotifySubscribers(c.Context(), session.Role, services.PostAnnouncement{
		PostID:      req.PostID,
		PostTitle:   req.PostTitle,
		PostSlug:    req.PostSlug,
		PostExcerpt: req.PostExcerpt,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		case errors.Is(err, services.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "postId, postTitle and postSlug are required"})
		case errors.Is(err, services.ErrEmailUnavailable):
			return respondInternal(c, "Email service is not configured", err)
		default:
			return respondInternal(c, "Failed to fetch subscribers", err)
		}
	}

	return c.JSON(result)
}
