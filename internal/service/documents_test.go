package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) SearchByEmbedding(ctx context.Context, chatbotID string, embedding []float32, k int) ([]*domain.DocumentChunk, error) {
	args := m.Called(ctx, chatbotID, embedding, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DocumentChunk), args.Error(1)
}

func chunkWithSimilarity(id string, similarity float32) *domain.DocumentChunk {
	return &domain.DocumentChunk{
		ID:           id,
		DocumentID:   "doc-1",
		DocumentName: "handbook.pdf",
		ChatbotID:    "bot-1",
		Content:      "chunk content for " + id,
		Similarity:   similarity,
	}
}

func TestDocumentSearcher_Search(t *testing.T) {
	ctx := context.Background()
	queryEmbedding := []float32{0.1, 0.2, 0.3}

	t.Run("returns top chunks with mean similarity", func(t *testing.T) {
		embedding := new(MockEmbeddingClient)
		chunks := new(MockChunkRepository)
		embedding.On("GenerateEmbedding", mock.Anything, "visa question").Return(queryEmbedding, nil)
		chunks.On("SearchByEmbedding", mock.Anything, "bot-1", queryEmbedding, 3).Return([]*domain.DocumentChunk{
			chunkWithSimilarity("c1", 0.80),
			chunkWithSimilarity("c2", 0.72),
			chunkWithSimilarity("c3", 0.69),
		}, nil)

		searcher := NewDocumentSearcher(embedding, chunks)
		result, err := searcher.Search(ctx, "bot-1", "visa question")

		require.NoError(t, err)
		assert.Len(t, result.Chunks, 3)
		assert.InDelta(t, 0.7366, result.AvgSimilarity, 0.001)
	})

	t.Run("empty index yields empty result, not an error", func(t *testing.T) {
		embedding := new(MockEmbeddingClient)
		chunks := new(MockChunkRepository)
		embedding.On("GenerateEmbedding", mock.Anything, "anything").Return(queryEmbedding, nil)
		chunks.On("SearchByEmbedding", mock.Anything, "bot-1", queryEmbedding, 3).Return([]*domain.DocumentChunk{}, nil)

		searcher := NewDocumentSearcher(embedding, chunks)
		result, err := searcher.Search(ctx, "bot-1", "anything")

		require.NoError(t, err)
		assert.Empty(t, result.Chunks)
		assert.Zero(t, result.AvgSimilarity)
	})

	t.Run("embedding failure is wrapped", func(t *testing.T) {
		embedding := new(MockEmbeddingClient)
		chunks := new(MockChunkRepository)
		embedding.On("GenerateEmbedding", mock.Anything, "question").Return(nil, errors.New("rate limited"))

		searcher := NewDocumentSearcher(embedding, chunks)
		_, err := searcher.Search(ctx, "bot-1", "question")

		assert.Error(t, err)
		chunks.AssertNotCalled(t, "SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("chunk limit is configurable", func(t *testing.T) {
		embedding := new(MockEmbeddingClient)
		chunks := new(MockChunkRepository)
		embedding.On("GenerateEmbedding", mock.Anything, "question").Return(queryEmbedding, nil)
		chunks.On("SearchByEmbedding", mock.Anything, "bot-1", queryEmbedding, 5).Return([]*domain.DocumentChunk{}, nil)

		searcher := NewDocumentSearcherWithConfig(embedding, chunks, DocumentSearcherConfig{ChunkLimit: 5})
		_, err := searcher.Search(ctx, "bot-1", "question")

		require.NoError(t, err)
		chunks.AssertExpectations(t)
	})
}

func TestConfidenceFromSimilarity(t *testing.T) {
	assert.Equal(t, float32(0), ConfidenceFromSimilarity(-0.2))
	assert.Equal(t, float32(0.68), ConfidenceFromSimilarity(0.68))
	assert.Equal(t, float32(1), ConfidenceFromSimilarity(1.3))
}
