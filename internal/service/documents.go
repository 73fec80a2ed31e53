package service

import (
	"context"
	"fmt"

	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/telemetry"
	"github.com/mentora-labs/mentora/internal/vector"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkRepositoryInterface searches the pre-embedded document index.
type ChunkRepositoryInterface interface {
	// SearchByEmbedding returns the k most similar chunks for a chatbot,
	// each with its per-query similarity populated.
	SearchByEmbedding(ctx context.Context, chatbotID string, embedding []float32, k int) ([]*domain.DocumentChunk, error)
}

// DocumentSearchResult holds the top-k chunks and their mean similarity.
type DocumentSearchResult struct {
	Chunks        []*domain.DocumentChunk
	AvgSimilarity float32
}

// DocumentSearcherConfig bounds unstructured retrieval.
type DocumentSearcherConfig struct {
	ChunkLimit int
}

// DefaultDocumentSearcherConfig returns the default chunk cap.
func DefaultDocumentSearcherConfig() DocumentSearcherConfig {
	return DocumentSearcherConfig{ChunkLimit: 3}
}

// DocumentSearcher performs semantic retrieval over a tenant's uploaded
// documents.
type DocumentSearcher struct {
	embedding EmbeddingClient
	chunks    ChunkRepositoryInterface
	cfg       DocumentSearcherConfig
}

// NewDocumentSearcher creates a new DocumentSearcher instance
func NewDocumentSearcher(embedding EmbeddingClient, chunks ChunkRepositoryInterface) *DocumentSearcher {
	return NewDocumentSearcherWithConfig(embedding, chunks, DefaultDocumentSearcherConfig())
}

// NewDocumentSearcherWithConfig creates a DocumentSearcher with explicit bounds.
func NewDocumentSearcherWithConfig(embedding EmbeddingClient, chunks ChunkRepositoryInterface, cfg DocumentSearcherConfig) *DocumentSearcher {
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = DefaultDocumentSearcherConfig().ChunkLimit
	}
	return &DocumentSearcher{
		embedding: embedding,
		chunks:    chunks,
		cfg:       cfg,
	}
}

// Search embeds the query and returns the top chunks with their mean
// similarity. An empty index yields an empty result, not an error.
func (s *DocumentSearcher) Search(ctx context.Context, chatbotID, query string) (*DocumentSearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentSearcher.Search", telemetry.SpanAttributes{
		ChatbotID: chatbotID,
		Operation: "document_search",
	})
	defer span.End()

	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := s.chunks.SearchByEmbedding(ctx, chatbotID, embedding, s.cfg.ChunkLimit)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	scores := make([]float32, len(chunks))
	for i, c := range chunks {
		scores[i] = c.Similarity
	}

	return &DocumentSearchResult{
		Chunks:        chunks,
		AvgSimilarity: vector.Mean(scores),
	}, nil
}

// ConfidenceFromSimilarity maps a retrieval mean similarity into the
// [0, 1] confidence attached to a document-grounded answer.
func ConfidenceFromSimilarity(avgSimilarity float32) float32 {
	if avgSimilarity < 0 {
		return 0
	}
	if avgSimilarity > 1 {
		return 1
	}
	return avgSimilarity
}
