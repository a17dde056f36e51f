package repository

import (
	"context"

	"github.com/tutordesk/backend/internal/models"
)

const conversationColumns = `c.id, c.student_id, c.teacher_id, c.created_at, c.updated_at`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := row.Scan(
		&conversation.ID,
		&conversation.StudentID,
		&conversation.TeacherID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// visibleTo matches conversations user $1 takes part in, or every conversation when
// role $2 is admin.
const visibleTo = `($2::text = 'admin' OR c.student_id = $1 OR c.teacher_id = $1)`

// CreateOrGet returns the conversation of the pair, creating it on first contact.
func (r *ConversationRepository) CreateOrGet(ctx context.Context, studentID, teacherID int64) (*models.Conversation, error) {
	return scanConversation(r.db.QueryRow(ctx, `
		INSERT INTO conversations AS c (student_id, teacher_id)
		VALUES ($1, $2)
		ON CONFLICT (student_id, teacher_id) DO UPDATE SET updated_at = c.updated_at
		RETURNING `+conversationColumns, studentID, teacherID))
}

// GetVisible loads a conversation if userID may read it, ErrNotFound otherwise.
func (r *ConversationRepository) GetVisible(ctx context.Context, conversationID, userID int64, role string) (*models.Conversation, error) {
	return scanConversation(r.db.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE `+visibleTo+` AND c.id = $3`, userID, role, conversationID))
}

// ListVisible returns the conversations userID can see, most recent activity first,
// each with its latest message and the count of unread messages sent by others.
func (r *ConversationRepository) ListVisible(ctx context.Context, userID int64, role string) ([]models.ConversationSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+`, COALESCE(unread.n, 0), last.id
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT m.id, m.created_at FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) last ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS n FROM messages m
			WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND NOT m.is_read
		) unread ON TRUE
		WHERE `+visibleTo+`
		ORDER BY COALESCE(last.created_at, c.updated_at) DESC, c.id DESC`, userID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	lastIDs := make([]int64, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var lastID *int64
		if err := rows.Scan(
			&summary.ID,
			&summary.StudentID,
			&summary.TeacherID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.UnreadCount,
			&lastID,
		); err != nil {
			return nil, err
		}
		if lastID != nil {
			lastIDs = append(lastIDs, *lastID)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lastIDs) == 0 {
		return summaries, nil
	}

	latest, err := NewMessageRepository(r.db).ListByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if message, ok := latest[summaries[i].ID]; ok {
			summaries[i].LastMessage = message
		}
	}
	return summaries, nil
}

func (r *ConversationRepository) Touch(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
	return err
}
