package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tutordesk/backend/internal/models"
)

const classColumns = `id, student_id, teacher_id, class_request_id, class_date, duration_minutes, title, notes,
	meeting_url, is_free, status, payment_status, created_at, updated_at`

type CreateClassInput struct {
	StudentID       int64
	TeacherID       int64
	ClassRequestID  *int64
	ClassDate       time.Time
	DurationMinutes int
	Title           string
	Notes           *string
	MeetingURL      *string
	IsFree          bool
	Status          string
	PaymentStatus   string
}

type UpdateClassInput struct {
	ClassDate       time.Time
	DurationMinutes int
	Title           string
	Notes           *string
	MeetingURL      *string
}

type ClassListFilter struct {
	ActorID   int64
	Role      string
	StudentID int64
	Status    string
	Timeframe string
	From      *time.Time
	To        *time.Time
}

type ClassRepository struct {
	db DBTX
}

func NewClassRepository(db DBTX) *ClassRepository {
	return &ClassRepository{db: db}
}

func scanClass(row rowScanner) (*models.Class, error) {
	var class models.Class
	err := row.Scan(
		&class.ID,
		&class.StudentID,
		&class.TeacherID,
		&class.ClassRequestID,
		&class.ClassDate,
		&class.DurationMinutes,
		&class.Title,
		&class.Notes,
		&class.MeetingURL,
		&class.IsFree,
		&class.Status,
		&class.PaymentStatus,
		&class.CreatedAt,
		&class.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *ClassRepository) queryClasses(ctx context.Context, query string, args ...any) ([]models.Class, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := make([]models.Class, 0)
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *class)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *ClassRepository) Create(ctx context.Context, input CreateClassInput) (*models.Class, error) {
	query := `
		INSERT INTO classes (student_id, teacher_id, class_request_id, class_date, duration_minutes, title,
			notes, meeting_url, is_free, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + classColumns

	return scanClass(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TeacherID,
		input.ClassRequestID,
		input.ClassDate.UTC(),
		input.DurationMinutes,
		input.Title,
		input.Notes,
		input.MeetingURL,
		input.IsFree,
		input.Status,
		input.PaymentStatus,
	))
}

// CreateMany inserts the classes in order. Callers run it inside a transaction so a failed
// insert leaves nothing behind.
func (r *ClassRepository) CreateMany(ctx context.Context, inputs []CreateClassInput) ([]models.Class, error) {
	classes := make([]models.Class, 0, len(inputs))
	for i, input := range inputs {
		class, err := r.Create(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("insert class %d of %d: %w", i+1, len(inputs), err)
		}
		classes = append(classes, *class)
	}
	return classes, nil
}

func (r *ClassRepository) GetByID(ctx context.Context, classID int64) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	return scanClass(r.db.QueryRow(ctx, query, classID))
}

func (r *ClassRepository) GetByIDForUpdate(ctx context.Context, classID int64) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 FOR UPDATE`
	return scanClass(r.db.QueryRow(ctx, query, classID))
}

func (r *ClassRepository) List(ctx context.Context, filter ClassListFilter) ([]models.Class, error) {
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

	if filter.StudentID > 0 {
		args = append(args, filter.StudentID)
		whereParts = append(whereParts, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		whereParts = append(whereParts, fmt.Sprintf("class_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		whereParts = append(whereParts, fmt.Sprintf("class_date < $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "(class_date + (duration_minutes * INTERVAL '1 minute')) > NOW()")
	case "past":
		whereParts = append(whereParts, "(class_date + (duration_minutes * INTERVAL '1 minute')) <= NOW()")
	}

	where := "TRUE"
	if len(whereParts) > 0 {
		where = strings.Join(whereParts, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM classes
		WHERE %s
		ORDER BY class_date ASC, id ASC
	`, classColumns, where)

	return r.queryClasses(ctx, query, args...)
}

// ListActiveForTeacherBetween returns the teacher's non-cancelled classes overlapping [from, to).
func (r *ClassRepository) ListActiveForTeacherBetween(
	ctx context.Context,
	teacherID int64,
	from time.Time,
	to time.Time,
) ([]models.Class, error) {
	query := `
		SELECT ` + classColumns + `
		FROM classes
		WHERE teacher_id = $1
		  AND status <> 'cancelled'
		  AND class_date < $3
		  AND (class_date + (duration_minutes * INTERVAL '1 minute')) > $2
		ORDER BY class_date ASC, id ASC
	`
	return r.queryClasses(ctx, query, teacherID, from.UTC(), to.UTC())
}

func (r *ClassRepository) ListByRequestID(ctx context.Context, requestID int64) ([]models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE class_request_id = $1 ORDER BY class_date ASC, id ASC`
	return r.queryClasses(ctx, query, requestID)
}

func (r *ClassRepository) Update(ctx context.Context, classID int64, input UpdateClassInput) (*models.Class, error) {
	query := `
		UPDATE classes
		SET class_date = $2, duration_minutes = $3, title = $4, notes = $5, meeting_url = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + classColumns
	return scanClass(r.db.QueryRow(
		ctx,
		query,
		classID,
		input.ClassDate.UTC(),
		input.DurationMinutes,
		input.Title,
		input.Notes,
		input.MeetingURL,
	))
}

func (r *ClassRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	classID int64,
	currentStatus string,
	nextStatus string,
) (*models.Class, error) {
	query := `
		UPDATE classes
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + classColumns
	return scanClass(r.db.QueryRow(ctx, query, classID, currentStatus, nextStatus))
}

// MarkPaid settles one class; a class waiting on payment becomes scheduled.
func (r *ClassRepository) MarkPaid(ctx context.Context, classID int64) (*models.Class, error) {
	query := `
		UPDATE classes
		SET payment_status = 'paid',
		    status = CASE WHEN status = 'pending_payment' THEN 'scheduled' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + classColumns
	return scanClass(r.db.QueryRow(ctx, query, classID))
}

// MarkRequestPaid settles every non-cancelled class generated from a request.
func (r *ClassRepository) MarkRequestPaid(ctx context.Context, requestID int64) ([]models.Class, error) {
	query := `
		UPDATE classes
		SET payment_status = 'paid',
		    status = CASE WHEN status = 'pending_payment' THEN 'scheduled' ELSE status END,
		    updated_at = NOW()
		WHERE class_request_id = $1 AND status <> 'cancelled'
		RETURNING ` + classColumns
	return r.queryClasses(ctx, query, requestID)
}

// SetPaymentStatus moves unpaid classes to pending while a payment claim is reviewed, and
// back again when the claim is rejected.
func (r *ClassRepository) SetPaymentStatus(
	ctx context.Context,
	classIDs []int64,
	fromStatus string,
	toStatus string,
) error {
	if len(classIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE classes
		SET payment_status = $3, updated_at = NOW()
		WHERE id = ANY($1) AND payment_status = $2
	`, classIDs, fromStatus, toStatus)
	return err
}

// ReleasePendingPayment returns pending classes to unpaid unless another claim still
// awaiting review covers them, either directly or through their request.
func (r *ClassRepository) ReleasePendingPayment(ctx context.Context, classIDs []int64) error {
	if len(classIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE classes c
		SET payment_status = 'unpaid', updated_at = NOW()
		WHERE c.id = ANY($1)
		  AND c.payment_status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM payment_notifications pn
			WHERE pn.status = 'pending'
			  AND (pn.class_id = c.id OR pn.class_request_id = c.class_request_id)
		  )
	`, classIDs)
	return err
}

// CompleteFinished marks scheduled classes that ended before now as completed.
func (r *ClassRepository) CompleteFinished(ctx context.Context, now time.Time) ([]models.Class, error) {
	query := `
		UPDATE classes
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'scheduled'
		  AND (class_date + (duration_minutes * INTERVAL '1 minute')) <= $1
		RETURNING ` + classColumns
	return r.queryClasses(ctx, query, now.UTC())
}

func (r *ClassRepository) Delete(ctx context.Context, classID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM classes WHERE id = $1`, classID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
