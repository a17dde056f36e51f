package models

import "time"

const (
	PaymentNotificationPending   = "pending"
	PaymentNotificationConfirmed = "confirmed"
	PaymentNotificationRejected  = "rejected"
)

// PaymentNotification is a student's claim that a class or a whole package was paid.
// Exactly one of ClassID and ClassRequestID is set.
type PaymentNotification struct {
	ID             int64      `json:"id"`
	StudentID      int64      `json:"student_id"`
	TeacherID      int64      `json:"teacher_id"`
	ClassID        *int64     `json:"class_id"`
	ClassRequestID *int64     `json:"class_request_id"`
	Amount         float64    `json:"amount"`
	Method         string     `json:"method"`
	Reference      *string    `json:"reference"`
	ReceiptURL     *string    `json:"receipt_url"`
	Note           *string    `json:"note"`
	Status         string     `json:"status"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}
