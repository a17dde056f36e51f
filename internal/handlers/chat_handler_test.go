package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/services"
)

type stubChatService struct {
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	createErr           error
	messagesTotal       int
	messagesErr         error
	lastActorID         int64
	lastRole            string
	lastOtherID         int64
	lastConversationID  int64
	lastPage            int
	lastLimit           int
	lastContent         string
}

func (s *stubChatService) ListConversations(_ context.Context, actorID int64, role string) ([]models.ConversationSummary, error) {
	s.lastActorID = actorID
	s.lastRole = role
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) CreateConversation(_ context.Context, actorID int64, role string, otherID int64) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastOtherID = otherID
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Conversation{ID: 17, StudentID: actorID, TeacherID: otherID}, nil
}

func (s *stubChatService) ListMessages(_ context.Context, actorID int64, role string, conversationID int64, page int, limit int) ([]models.ChatMessage, int, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastConversationID = conversationID
	s.lastPage = page
	s.lastLimit = limit
	return []models.ChatMessage{}, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) SendMessage(_ context.Context, actorID int64, _ string, conversationID int64, content string) (*models.ChatMessage, error) {
	s.lastContent = content
	return &models.ChatMessage{ID: 1, ConversationID: conversationID, SenderID: actorID, Content: content}, nil
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: 17, StudentID: 42, TeacherID: 8},
				LastMessage: &models.ChatMessage{
					ID:             3,
					ConversationID: 17,
					SenderID:       8,
					Content:        "See you tomorrow",
					CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
			},
		},
	}
	handler := NewChatHandler(service)
	app := newTestApp(42, models.RoleStudent)
	app.Get("/conversations", handler.ListConversations)

	resp := doJSON(t, app, http.MethodGet, "/conversations", nil)
	expectStatus(t, resp, http.StatusOK)

	var body struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	decodeBody(t, resp, &body)
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected conversations %+v", body.Conversations)
	}
	if body.Conversations[0].LastMessage == nil || body.Conversations[0].LastMessage.Content != "See you tomorrow" {
		t.Fatalf("unexpected last message %+v", body.Conversations[0].LastMessage)
	}
	if service.lastActorID != 42 || service.lastRole != models.RoleStudent {
		t.Fatalf("unexpected actor %d %q", service.lastActorID, service.lastRole)
	}
}

func TestCreateConversation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body map[string]any
		want int
	}{
		{name: "created", body: map[string]any{"participant_id": 8}, want: http.StatusCreated},
		{name: "missing participant", body: map[string]any{}, want: http.StatusBadRequest},
		{name: "unknown teacher", err: services.ErrTeacherNotFound, body: map[string]any{"participant_id": 8}, want: http.StatusNotFound},
		{name: "same role", err: services.ErrForbidden, body: map[string]any{"participant_id": 8}, want: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewChatHandler(&stubChatService{createErr: tc.err})
			app := newTestApp(42, models.RoleStudent)
			app.Post("/conversations", handler.CreateConversation)

			expectStatus(t, doJSON(t, app, http.MethodPost, "/conversations", tc.body), tc.want)
		})
	}
}

func TestGetMessagesUsesPagination(t *testing.T) {
	service := &stubChatService{messagesTotal: 45}
	handler := NewChatHandler(service)
	app := newTestApp(42, models.RoleStudent)
	app.Get("/conversations/:id/messages", handler.GetMessages)

	resp := doJSON(t, app, http.MethodGet, "/conversations/17/messages?page=2&limit=20", nil)
	expectStatus(t, resp, http.StatusOK)

	var body struct {
		Pagination models.PaginationMeta `json:"pagination"`
	}
	decodeBody(t, resp, &body)
	if service.lastConversationID != 17 || service.lastPage != 2 || service.lastLimit != 20 {
		t.Fatalf("unexpected arguments conversation=%d page=%d limit=%d", service.lastConversationID, service.lastPage, service.lastLimit)
	}
	if body.Pagination.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", body.Pagination.TotalPages)
	}
}

func TestGetMessagesNotFound(t *testing.T) {
	handler := NewChatHandler(&stubChatService{messagesErr: pgx.ErrNoRows})
	app := newTestApp(42, models.RoleStudent)
	app.Get("/conversations/:id/messages", handler.GetMessages)

	expectStatus(t, doJSON(t, app, http.MethodGet, "/conversations/17/messages", nil), http.StatusNotFound)
}

func TestSendMessageValidatesContent(t *testing.T) {
	service := &stubChatService{}
	handler := NewChatHandler(service)
	app := newTestApp(42, models.RoleStudent)
	app.Post("/conversations/:id/messages", handler.SendMessage)

	expectStatus(t, doJSON(t, app, http.MethodPost, "/conversations/17/messages", map[string]any{"content": ""}), http.StatusBadRequest)
	expectStatus(t, doJSON(t, app, http.MethodPost, "/conversations/17/messages", map[string]any{"content": "Hello"}), http.StatusCreated)
	if service.lastContent != "Hello" {
		t.Fatalf("unexpected content %q", service.lastContent)
	}
}
