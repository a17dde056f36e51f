package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tutordesk/backend/internal/models"
)

const paymentNotificationColumns = `id, student_id, teacher_id, class_id, class_request_id, amount, method, reference,
	receipt_url, note, status, reviewed_at, created_at`

type CreatePaymentNotificationInput struct {
	StudentID      int64
	TeacherID      int64
	ClassID        *int64
	ClassRequestID *int64
	Amount         float64
	Method         string
	Reference      *string
	ReceiptURL     *string
	Note           *string
}

type PaymentNotificationListFilter struct {
	ActorID int64
	Role    string
	Status  string
}

type PaymentNotificationRepository struct {
	db DBTX
}

func NewPaymentNotificationRepository(db DBTX) *PaymentNotificationRepository {
	return &PaymentNotificationRepository{db: db}
}

func scanPaymentNotification(row rowScanner) (*models.PaymentNotification, error) {
	var payment models.PaymentNotification
	err := row.Scan(
		&payment.ID,
		&payment.StudentID,
		&payment.TeacherID,
		&payment.ClassID,
		&payment.ClassRequestID,
		&payment.Amount,
		&payment.Method,
		&payment.Reference,
		&payment.ReceiptURL,
		&payment.Note,
		&payment.Status,
		&payment.ReviewedAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentNotificationRepository) Create(
	ctx context.Context,
	input CreatePaymentNotificationInput,
) (*models.PaymentNotification, error) {
	query := `
		INSERT INTO payment_notifications (student_id, teacher_id, class_id, class_request_id, amount, method,
			reference, receipt_url, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		RETURNING ` + paymentNotificationColumns
	return scanPaymentNotification(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TeacherID,
		input.ClassID,
		input.ClassRequestID,
		input.Amount,
		input.Method,
		input.Reference,
		input.ReceiptURL,
		input.Note,
	))
}

func (r *PaymentNotificationRepository) GetByID(ctx context.Context, id int64) (*models.PaymentNotification, error) {
	query := `SELECT ` + paymentNotificationColumns + ` FROM payment_notifications WHERE id = $1`
	return scanPaymentNotification(r.db.QueryRow(ctx, query, id))
}

func (r *PaymentNotificationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.PaymentNotification, error) {
	query := `SELECT ` + paymentNotificationColumns + ` FROM payment_notifications WHERE id = $1 FOR UPDATE`
	return scanPaymentNotification(r.db.QueryRow(ctx, query, id))
}

func (r *PaymentNotificationRepository) List(
	ctx context.Context,
	filter PaymentNotificationListFilter,
) ([]models.PaymentNotification, error) {
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
		FROM payment_notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
	`, paymentNotificationColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.PaymentNotification, 0)
	for rows.Next() {
		payment, err := scanPaymentNotification(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// Review records the teacher's decision on a pending notification.
func (r *PaymentNotificationRepository) Review(
	ctx context.Context,
	id int64,
	nextStatus string,
) (*models.PaymentNotification, error) {
	query := `
		UPDATE payment_notifications
		SET status = $2, reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentNotificationColumns
	return scanPaymentNotification(r.db.QueryRow(ctx, query, id, nextStatus))
}
