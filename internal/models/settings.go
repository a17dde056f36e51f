package models

import "time"

type BusinessSettings struct {
	LessonPrice           float64   `json:"lesson_price"`
	Currency              string    `json:"currency"`
	MinTotalLessons       int       `json:"min_total_lessons"`
	FirstClassFreeDefault bool      `json:"first_class_free_default"`
	ClassDurationMinutes  int       `json:"class_duration_minutes"`
	PaymentInstructions   string    `json:"payment_instructions"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DefaultBusinessSettings mirrors the column defaults of business_settings.
func DefaultBusinessSettings() BusinessSettings {
	return BusinessSettings{
		Currency:              "USD",
		MinTotalLessons:       4,
		FirstClassFreeDefault: true,
		ClassDurationMinutes:  50,
	}
}
