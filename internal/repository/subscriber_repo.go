package repository

import (
	"context"

	"github.com/tutordesk/backend/internal/models"
)

type SubscriberRepository struct {
	db DBTX
}

func NewSubscriberRepository(db DBTX) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func scanSubscriber(row rowScanner) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	if err := row.Scan(
		&subscriber.ID,
		&subscriber.Email,
		&subscriber.IsActive,
		&subscriber.UnsubscribeToken,
		&subscriber.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &subscriber, nil
}

// Upsert subscribes the address, reactivating it if it had unsubscribed. The existing
// token is kept so earlier unsubscribe links keep working.
func (r *SubscriberRepository) Upsert(ctx context.Context, email string, token string) (*models.Subscriber, error) {
	query := `
		INSERT INTO subscribers (email, is_active, unsubscribe_token)
		VALUES (lower($1), TRUE, $2)
		ON CONFLICT (email)
		DO UPDATE SET is_active = TRUE
		RETURNING id, email, is_active, unsubscribe_token::text, created_at
	`
	return scanSubscriber(r.db.QueryRow(ctx, query, email, token))
}

func (r *SubscriberRepository) ListActive(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, email, is_active, unsubscribe_token::text, created_at
		FROM subscribers
		WHERE is_active = TRUE
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subscribers := make([]models.Subscriber, 0)
	for rows.Next() {
		subscriber, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subscribers = append(subscribers, *subscriber)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subscribers, nil
}

func (r *SubscriberRepository) DeactivateByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	query := `
		UPDATE subscribers
		SET is_active = FALSE
		WHERE unsubscribe_token = $1::uuid
		RETURNING id, email, is_active, unsubscribe_token::text, created_at
	`
	return scanSubscriber(r.db.QueryRow(ctx, query, token))
}
