package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnerRepository resolves tenant owners and their notification
// preferences.
type OwnerRepository struct {
	db dbtx
}

func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{db: pool}
}

func (r *OwnerRepository) Create(ctx context.Context, id, email string, notifyOnMessage bool) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, notify_on_message, created_at) VALUES ($1, $2, $3, $4)`,
		id, email, notifyOnMessage, time.Now().UTC(),
	)
	return err
}

// NotificationEmail returns the owner's email and whether they opted
// into message notifications. An unknown owner reads as opted out
// rather than an error; notifications are best-effort.
func (r *OwnerRepository) NotificationEmail(ctx context.Context, ownerID string) (string, bool, error) {
	var email string
	var enabled bool
	err := r.db.QueryRow(ctx,
		`SELECT email, notify_on_message FROM users WHERE id = $1`,
		ownerID,
	).Scan(&email, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return email, enabled, nil
}
