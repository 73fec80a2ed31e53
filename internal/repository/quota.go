package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
)

// QuotaRepository tracks per-tenant usage counters. Increments are
// store-native atomic updates; reads and writes are intentionally not
// tied to message persistence in one transaction.
type QuotaRepository struct {
	db dbtx
}

func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{db: pool}
}

func NewQuotaRepositoryWithTx(tx pgx.Tx) *QuotaRepository {
	return &QuotaRepository{db: tx}
}

func (r *QuotaRepository) Create(ctx context.Context, q *domain.UsageQuota) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_quotas (owner_id, used, ceiling) VALUES ($1, $2, $3)`,
		q.OwnerID, q.Used, q.Ceiling,
	)
	return err
}

func (r *QuotaRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.UsageQuota, error) {
	var q domain.UsageQuota
	err := r.db.QueryRow(ctx,
		`SELECT owner_id, used, ceiling FROM usage_quotas WHERE owner_id = $1`,
		ownerID,
	).Scan(&q.OwnerID, &q.Used, &q.Ceiling)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuotaNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *QuotaRepository) IncrementUsed(ctx context.Context, ownerID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE usage_quotas SET used = used + 1 WHERE owner_id = $1`,
		ownerID,
	)
	return err
}
