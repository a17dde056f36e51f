package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tutordesk/backend/internal/models"
)

const homeworkColumns = `id, teacher_id, student_id, class_id, title, description, due_date, attachment_url,
	submission_text, submission_url, feedback, status, submitted_at, reviewed_at, created_at, updated_at`

type CreateHomeworkInput struct {
	TeacherID     int64
	StudentID     int64
	ClassID       *int64
	Title         string
	Description   *string
	DueDate       time.Time
	AttachmentURL *string
}

type HomeworkListFilter struct {
	ActorID int64
	Role    string
	Status  string
}

type HomeworkRepository struct {
	db DBTX
}

func NewHomeworkRepository(db DBTX) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

func scanHomework(row rowScanner) (*models.Homework, error) {
	var homework models.Homework
	err := row.Scan(
		&homework.ID,
		&homework.TeacherID,
		&homework.StudentID,
		&homework.ClassID,
		&homework.Title,
		&homework.Description,
		&homework.DueDate,
		&homework.AttachmentURL,
		&homework.SubmissionText,
		&homework.SubmissionURL,
		&homework.Feedback,
		&homework.Status,
		&homework.SubmittedAt,
		&homework.ReviewedAt,
		&homework.CreatedAt,
		&homework.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &homework, nil
}

func (r *HomeworkRepository) Create(ctx context.Context, input CreateHomeworkInput) (*models.Homework, error) {
	query := `
		INSERT INTO homework (teacher_id, student_id, class_id, title, description, due_date, attachment_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'assigned')
		RETURNING ` + homeworkColumns
	return scanHomework(r.db.QueryRow(
		ctx,
		query,
		input.TeacherID,
		input.StudentID,
		input.ClassID,
		input.Title,
		input.Description,
		input.DueDate.UTC(),
		input.AttachmentURL,
	))
}

func (r *HomeworkRepository) GetByID(ctx context.Context, id int64) (*models.Homework, error) {
	query := `SELECT ` + homeworkColumns + ` FROM homework WHERE id = $1`
	return scanHomework(r.db.QueryRow(ctx, query, id))
}

func (r *HomeworkRepository) List(ctx context.Context, filter HomeworkListFilter) ([]models.Homework, error) {
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
		FROM homework
		WHERE %s
		ORDER BY due_date ASC, id ASC
	`, homeworkColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Homework, 0)
	for rows.Next() {
		homework, err := scanHomework(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *homework)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Submit stores the student's answer. Reviewed homework can be resubmitted.
func (r *HomeworkRepository) Submit(
	ctx context.Context,
	id int64,
	text *string,
	url *string,
) (*models.Homework, error) {
	query := `
		UPDATE homework
		SET submission_text = $2, submission_url = COALESCE($3, submission_url),
		    status = 'submitted', submitted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('assigned', 'submitted', 'reviewed')
		RETURNING ` + homeworkColumns
	return scanHomework(r.db.QueryRow(ctx, query, id, text, url))
}

func (r *HomeworkRepository) Review(ctx context.Context, id int64, feedback *string) (*models.Homework, error) {
	query := `
		UPDATE homework
		SET feedback = $2, status = 'reviewed', reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'submitted'
		RETURNING ` + homeworkColumns
	return scanHomework(r.db.QueryRow(ctx, query, id, feedback))
}

func (r *HomeworkRepository) Complete(ctx context.Context, id int64, feedback *string) (*models.Homework, error) {
	query := `
		UPDATE homework
		SET feedback = COALESCE($2, feedback), status = 'completed',
		    reviewed_at = COALESCE(reviewed_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND status IN ('submitted', 'reviewed')
		RETURNING ` + homeworkColumns
	return scanHomework(r.db.QueryRow(ctx, query, id, feedback))
}

func (r *HomeworkRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM homework WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
