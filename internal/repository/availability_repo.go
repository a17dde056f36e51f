package repository

import (
	"context"

	"github.com/tutordesk/backend/internal/models"
)

const availabilityColumns = `id, teacher_id, day_of_week, start_time, end_time, is_available, created_at, updated_at`

type AvailabilityInput struct {
	DayOfWeek   int
	StartTime   string
	EndTime     string
	IsAvailable bool
}

type AvailabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func scanAvailability(row rowScanner) (*models.TeacherAvailability, error) {
	var slot models.TeacherAvailability
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.DayOfWeek,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsAvailable,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *AvailabilityRepository) Create(
	ctx context.Context,
	teacherID int64,
	input AvailabilityInput,
) (*models.TeacherAvailability, error) {
	query := `
		INSERT INTO teacher_availability (teacher_id, day_of_week, start_time, end_time, is_available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + availabilityColumns
	return scanAvailability(r.db.QueryRow(ctx, query, teacherID, input.DayOfWeek, input.StartTime, input.EndTime, input.IsAvailable))
}

func (r *AvailabilityRepository) GetByID(ctx context.Context, id int64) (*models.TeacherAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM teacher_availability WHERE id = $1`
	return scanAvailability(r.db.QueryRow(ctx, query, id))
}

func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]models.TeacherAvailability, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM teacher_availability
		WHERE teacher_id = $1
		ORDER BY day_of_week ASC, start_time ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.TeacherAvailability, 0)
	for rows.Next() {
		slot, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *AvailabilityRepository) Update(
	ctx context.Context,
	id int64,
	input AvailabilityInput,
) (*models.TeacherAvailability, error) {
	query := `
		UPDATE teacher_availability
		SET day_of_week = $2, start_time = $3, end_time = $4, is_available = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + availabilityColumns
	return scanAvailability(r.db.QueryRow(ctx, query, id, input.DayOfWeek, input.StartTime, input.EndTime, input.IsAvailable))
}

func (r *AvailabilityRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teacher_availability WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
