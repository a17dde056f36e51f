package repository

import (
	"context"

	"github.com/tutordesk/backend/internal/models"
)

type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func scanSettings(row rowScanner) (*models.BusinessSettings, error) {
	var settings models.BusinessSettings
	if err := row.Scan(
		&settings.LessonPrice,
		&settings.Currency,
		&settings.MinTotalLessons,
		&settings.FirstClassFreeDefault,
		&settings.ClassDurationMinutes,
		&settings.PaymentInstructions,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepository) Get(ctx context.Context) (*models.BusinessSettings, error) {
	return scanSettings(r.db.QueryRow(ctx, `
		SELECT lesson_price, currency, min_total_lessons, first_class_free_default, class_duration_minutes,
			payment_instructions, updated_at
		FROM business_settings
		WHERE id = 1
	`))
}

func (r *SettingsRepository) Update(ctx context.Context, settings models.BusinessSettings) (*models.BusinessSettings, error) {
	return scanSettings(r.db.QueryRow(ctx, `
		INSERT INTO business_settings (id, lesson_price, currency, min_total_lessons, first_class_free_default,
			class_duration_minutes, payment_instructions, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			lesson_price = EXCLUDED.lesson_price,
			currency = EXCLUDED.currency,
			min_total_lessons = EXCLUDED.min_total_lessons,
			first_class_free_default = EXCLUDED.first_class_free_default,
			class_duration_minutes = EXCLUDED.class_duration_minutes,
			payment_instructions = EXCLUDED.payment_instructions,
			updated_at = NOW()
		RETURNING lesson_price, currency, min_total_lessons, first_class_free_default, class_duration_minutes,
			payment_instructions, updated_at
	`,
		settings.LessonPrice,
		settings.Currency,
		settings.MinTotalLessons,
		settings.FirstClassFreeDefault,
		settings.ClassDurationMinutes,
		settings.PaymentInstructions,
	))
}
