package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/services"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64, role string) ([]models.ConversationSummary, error)
	CreateConversation(ctx context.Context, actorID int64, role string, otherID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID int64, role string, conversationID int64, page int, limit int) ([]models.ChatMessage, int, error)
	SendMessage(ctx context.Context, actorID int64, role string, conversationID int64, content string) (*models.ChatMessage, error)
}

type ChatHandler struct {
	service chatApplicationService
}

type createConversationRequest struct {
	ParticipantID int64 `json:"participant_id" validate:"required,gt=0"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

func NewChatHandler(service chatApplicationService) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	conversations, err := h.service.ListConversations(c.Context(), session.UserID, session.Role)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req createConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	conversation, err := h.service.CreateConversation(c.Context(), session.UserID, session.Role, req.ParticipantID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}
	page, limit := pageParams(c)

	messages, total, err := h.service.ListMessages(c.Context(), session.UserID, session.Role, conversationID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	message, err := h.service.SendMessage(c.Context(), session.UserID, session.Role, conversationID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrTeacherNotFound), errors.Is(err, services.ErrStudentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Participant not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return respondInternal(c, "Failed to process chat request", err)
	}
}
