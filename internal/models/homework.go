package models

import "time"

const (
	HomeworkAssigned  = "assigned"
	HomeworkSubmitted = "submitted"
	HomeworkReviewed  = "reviewed"
	HomeworkCompleted = "completed"
)

type Homework struct {
	ID             int64      `json:"id"`
	TeacherID      int64      `json:"teacher_id"`
	StudentID      int64      `json:"student_id"`
	ClassID        *int64     `json:"class_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	DueDate        time.Time  `json:"due_date"`
	AttachmentURL  *string    `json:"attachment_url"`
	SubmissionText *string    `json:"submission_text"`
	SubmissionURL  *string    `json:"submission_url"`
	Feedback       *string    `json:"feedback"`
	Status         string     `json:"status"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
