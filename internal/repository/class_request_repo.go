package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tutordesk/backend/internal/models"
)

const classRequestColumns = `id, student_id, teacher_id, weekly_schedule, lessons_per_week, total_lessons,
	first_class_free, payment_preference, notes, status, teacher_edits, rejection_reason, approved_at,
	created_at, updated_at`

type CreateClassRequestInput struct {
	StudentID         int64
	TeacherID         int64
	WeeklySchedule    []models.WeeklySlot
	LessonsPerWeek    int
	TotalLessons      int
	FirstClassFree    bool
	PaymentPreference string
	Notes             *string
}

type ClassRequestListFilter struct {
	ActorID int64
	Role    string
	Status  string
}

type ClassRequestRepository struct {
	db DBTX
}

func NewClassRequestRepository(db DBTX) *ClassRequestRepository {
	return &ClassRequestRepository{db: db}
}

func scanClassRequest(row rowScanner) (*models.ClassRequest, error) {
	var request models.ClassRequest
	err := row.Scan(
		&request.ID,
		&request.StudentID,
		&request.TeacherID,
		&request.WeeklySchedule,
		&request.LessonsPerWeek,
		&request.TotalLessons,
		&request.FirstClassFree,
		&request.PaymentPreference,
		&request.Notes,
		&request.Status,
		&request.TeacherEdits,
		&request.RejectionReason,
		&request.ApprovedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *ClassRequestRepository) Create(ctx context.Context, input CreateClassRequestInput) (*models.ClassRequest, error) {
	query := `
		INSERT INTO class_requests (student_id, teacher_id, weekly_schedule, lessons_per_week, total_lessons,
			first_class_free, payment_preference, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING ` + classRequestColumns

	return scanClassRequest(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TeacherID,
		input.WeeklySchedule,
		input.LessonsPerWeek,
		input.TotalLessons,
		input.FirstClassFree,
		input.PaymentPreference,
		input.Notes,
	))
}

func (r *ClassRequestRepository) GetByID(ctx context.Context, requestID int64) (*models.ClassRequest, error) {
	query := `SELECT ` + classRequestColumns + ` FROM class_requests WHERE id = $1`
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *ClassRequestRepository) GetByIDForUpdate(ctx context.Context, requestID int64) (*models.ClassRequest, error) {
	query := `SELECT ` + classRequestColumns + ` FROM class_requests WHERE id = $1 FOR UPDATE`
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *ClassRequestRepository) List(ctx context.Context, filter ClassRequestListFilter) ([]models.ClassRequest, error) {
	args := []any{}
	whereParts := []string{}

	switch filter.Role {
	case models.RoleStudent:
		args = append(args, filter.ActorID)
		whereParts = append(whereParts, fmt.Sprintf("student_id = $%d", len(args)))
	case models.RoleTeacher:
		args = append(args, filter.ActorID)
		whereParts = append(whereParts, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	where := "TRUE"
	if len(whereParts) > 0 {
		where = strings.Join(whereParts, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM class_requests
		WHERE %s
		ORDER BY created_at DESC, id DESC
	`, classRequestColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.ClassRequest, 0)
	for rows.Next() {
		request, err := scanClassRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *ClassRequestRepository) MarkApproved(ctx context.Context, requestID int64) (*models.ClassRequest, error) {
	query := `
		UPDATE class_requests
		SET status = 'awaiting_payment', approved_at = NOW(), rejection_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + classRequestColumns
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *ClassRequestRepository) Reject(
	ctx context.Context,
	requestID int64,
	currentStatus string,
	reason *string,
) (*models.ClassRequest, error) {
	query := `
		UPDATE class_requests
		SET status = 'rejected', rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + classRequestColumns
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID, currentStatus, reason))
}

func (r *ClassRequestRepository) SaveTeacherEdits(
	ctx context.Context,
	requestID int64,
	edits models.TeacherEdits,
) (*models.ClassRequest, error) {
	query := `
		UPDATE class_requests
		SET status = 'teacher_edited', teacher_edits = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + classRequestColumns
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID, edits))
}

// ApplyTeacherEdits replaces the request terms with the accepted proposal and sends the
// request back to the teacher.
func (r *ClassRequestRepository) ApplyTeacherEdits(
	ctx context.Context,
	requestID int64,
	schedule []models.WeeklySlot,
	lessonsPerWeek int,
	totalLessons int,
) (*models.ClassRequest, error) {
	query := `
		UPDATE class_requests
		SET weekly_schedule = $2, lessons_per_week = $3, total_lessons = $4,
		    teacher_edits = NULL, status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'teacher_edited'
		RETURNING ` + classRequestColumns
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID, schedule, lessonsPerWeek, totalLessons))
}

func (r *ClassRequestRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	requestID int64,
	currentStatus string,
	nextStatus string,
) (*models.ClassRequest, error) {
	query := `
		UPDATE class_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + classRequestColumns
	return scanClassRequest(r.db.QueryRow(ctx, query, requestID, currentStatus, nextStatus))
}
