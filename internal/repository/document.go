package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
)

// DocumentRepository resolves uploaded source documents, mainly to map
// citations back to a downloadable object.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, chatbot_id, name, storage_key, mime_type, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.ChatbotID, d.Name, d.StorageKey, nullableString(d.MimeType), d.SizeBytes, d.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var mimeType *string
	err := r.db.QueryRow(ctx,
		`SELECT id, chatbot_id, name, storage_key, mime_type, size_bytes, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.ChatbotID, &d.Name, &d.StorageKey, &mimeType, &d.SizeBytes, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if mimeType != nil {
		d.MimeType = *mimeType
	}
	return &d, nil
}
