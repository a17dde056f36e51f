package models

import "time"

const (
	ClassStatusPendingPayment = "pending_payment"
	ClassStatusScheduled      = "scheduled"
	ClassStatusCompleted      = "completed"
	ClassStatusCancelled      = "cancelled"

	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

type Class struct {
	ID              int64     `json:"id"`
	StudentID       int64     `json:"student_id"`
	TeacherID       int64     `json:"teacher_id"`
	ClassRequestID  *int64    `json:"class_request_id"`
	ClassDate       time.Time `json:"class_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Title           string    `json:"title"`
	Notes           *string   `json:"notes"`
	MeetingURL      *string   `json:"meeting_url"`
	IsFree          bool      `json:"is_free"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c *Class) EndsAt() time.Time {
	return c.ClassDate.Add(time.Duration(c.DurationMinutes) * time.Minute)
}
