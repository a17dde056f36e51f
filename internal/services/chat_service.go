package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
)

const maxMessageLength = 4000

type conversationStore interface {
	CreateOrGet(ctx context.Context, studentID int64, teacherID int64) (*models.Conversation, error)
	GetVisible(ctx context.Context, conversationID, userID int64, role string) (*models.Conversation, error)
	ListVisible(ctx context.Context, userID int64, role string) ([]models.ConversationSummary, error)
}

type ChatService struct {
	db            txBeginner
	conversations conversationStore
	users         userReader
	events        realtime.Publisher
}

func NewChatService(
	db txBeginner,
	conversations *repository.ConversationRepository,
	users userReader,
	events realtime.Publisher,
) *ChatService {
	return &ChatService{
		db:            db,
		conversations: conversations,
		users:         users,
		events:        publisherOrNoop(events),
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.ConversationSummary, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	return s.conversations.ListVisible(ctx, actorID, role)
}

// CreateConversation opens (or returns) the single conversation between a student and a
// teacher. Either side may start it.
func (s *ChatService) CreateConversation(
	ctx context.Context,
	actorID int64,
	role string,
	otherID int64,
) (*models.Conversation, error) {
	if otherID <= 0 || otherID == actorID {
		return nil, ErrInvalidInput
	}

	switch {
	case role == models.RoleStudent:
		if _, err := requireTeacher(ctx, s.users, otherID); err != nil {
			return nil, err
		}
		return s.conversations.CreateOrGet(ctx, actorID, otherID)
	case models.IsStaffRole(role):
		if _, err := requireStudent(ctx, s.users, otherID); err != nil {
			return nil, err
		}
		return s.conversations.CreateOrGet(ctx, otherID, actorID)
	default:
		return nil, ErrForbidden
	}
}

// ListMessages pages a conversation and marks what the reader received as read. Admins
// may read any conversation without changing its read state.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, 0, ErrForbidden
	}
	if conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	conversation, err := s.conversations.GetVisible(ctx, conversationID, actorID, role)
	if err != nil {
		return nil, 0, err
	}
	participant := conversation.HasParticipant(actorID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessages := repository.NewMessageRepository(tx)

	messages, total, err := txMessages.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	if !participant {
		return messages, total, nil
	}
	if err := txMessages.MarkConversationRead(ctx, conversationID, actorID); err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	for i := range messages {
		if messages[i].SenderID != actorID {
			messages[i].IsRead = true
		}
	}
	return messages, total, nil
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	content string,
) (*models.ChatMessage, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" || len(trimmed) > maxMessageLength {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversations.GetVisible(ctx, conversationID, actorID, role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, ErrForbidden
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	message, err := repository.NewMessageRepository(tx).Create(ctx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}
	if err := repository.NewConversationRepository(tx).Touch(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.events.Publish(realtime.Event{
		Entity:    realtime.TopicMessages,
		Action:    realtime.ActionCreated,
		ID:        message.ID,
		StudentID: conversation.StudentID,
		TeacherID: conversation.TeacherID,
		ActorID:   actorID,
	})
	return message, nil
}
