package models

import "time"

type TeacherAvailability struct {
	ID          int64     `json:"id"`
	TeacherID   int64     `json:"teacher_id"`
	DayOfWeek   int       `json:"day_of_week"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AvailabilityResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

const (
	SlotStatusAvailable   = "available"
	SlotStatusBooked      = "booked"
	SlotStatusUnavailable = "unavailable"
)

// ScheduleSlot is one fixed-length cell of the calendar day view.
type ScheduleSlot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Label   string    `json:"label"`
	Status  string    `json:"status"`
	ClassID *int64    `json:"class_id,omitempty"`
}

type DaySchedule struct {
	TeacherID int64          `json:"teacher_id"`
	Date      string         `json:"date"`
	Slots     []ScheduleSlot `json:"slots"`
}
