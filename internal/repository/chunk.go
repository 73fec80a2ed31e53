package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository searches the pre-embedded document chunk index with
// pgvector cosine distance.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// SearchByEmbedding returns the k nearest chunks for one chatbot, each
// with its cosine similarity against the query embedding. The <=>
// operator is cosine distance, so similarity is its complement.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, chatbotID string, embedding []float32, k int) ([]*domain.DocumentChunk, error) {
	if k <= 0 {
		k = 3
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.document_id, d.name, c.chatbot_id, c.chunk_index, c.content,
		        1 - (c.embedding <=> $1) AS similarity, c.created_at
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.chatbot_id = $2 AND c.embedding IS NOT NULL
		 ORDER BY c.embedding <=> $1
		 LIMIT $3`,
		vec, chatbotID, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.DocumentChunk, 0, k)
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentName, &c.ChatbotID, &c.ChunkIndex, &c.Content, &c.Similarity, &c.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

// InsertChunk stores one embedded chunk. Used by ingestion tooling and
// test fixtures; the answer pipeline only reads.
func (r *ChunkRepository) InsertChunk(ctx context.Context, c *domain.DocumentChunk) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO document_chunks (id, document_id, chatbot_id, chunk_index, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.DocumentID, c.ChatbotID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.CreatedAt,
	)
	return err
}
