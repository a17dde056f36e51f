package models

import "time"

const (
	RequestStatusPending          = "pending"
	RequestStatusAwaitingPayment  = "awaiting_payment"
	RequestStatusPaymentConfirmed = "payment_confirmed"
	RequestStatusTeacherEdited    = "teacher_edited"
	RequestStatusRejected         = "rejected"

	PaymentPreferencePerClass = "per_class"
	PaymentPreferencePackage  = "package"
)

// WeeklySlot is one recurring lesson time: a weekday (0 = Sunday) and a wall clock "HH:MM"
// in the business time zone.
type WeeklySlot struct {
	DayOfWeek int    `json:"day_of_week"`
	Time      string `json:"time"`
}

// TeacherEdits is a teacher's counter proposal awaiting the student's answer.
type TeacherEdits struct {
	WeeklySchedule []WeeklySlot `json:"weekly_schedule,omitempty"`
	LessonsPerWeek *int         `json:"lessons_per_week,omitempty"`
	TotalLessons   *int         `json:"total_lessons,omitempty"`
	Message        *string      `json:"message,omitempty"`
}

type ClassRequest struct {
	ID                int64         `json:"id"`
	StudentID         int64         `json:"student_id"`
	TeacherID         int64         `json:"teacher_id"`
	WeeklySchedule    []WeeklySlot  `json:"weekly_schedule"`
	LessonsPerWeek    int           `json:"lessons_per_week"`
	TotalLessons      int           `json:"total_lessons"`
	FirstClassFree    bool          `json:"first_class_free"`
	PaymentPreference string        `json:"payment_preference"`
	Notes             *string       `json:"notes"`
	Status            string        `json:"status"`
	TeacherEdits      *TeacherEdits `json:"teacher_edits"`
	RejectionReason   *string       `json:"rejection_reason"`
	ApprovedAt        *time.Time    `json:"approved_at"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ClassRequestDetail is a request together with the classes generated from it.
type ClassRequestDetail struct {
	ClassRequest
	Classes []Class `json:"classes,omitempty"`
}
