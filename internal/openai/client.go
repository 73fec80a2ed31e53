package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is used when a chatbot has no model configured
	DefaultChatModel = openai.GPT4oMini
	// DefaultEmbedRatePerSec throttles batch embedding calls. One call per
	// second keeps bulk labeling inside provider quotas; raise it only with
	// a matching quota increase.
	DefaultEmbedRatePerSec = 1
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions, expected 1536")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// CompletionAPI defines the provider surface the client depends on
type CompletionAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateChatStream(ctx context.Context, req ChatRequest) (ChatStream, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// ChatMessage is one turn in a completion request
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest describes a streamed completion call
type ChatRequest struct {
	Model       string
	Temperature float32
	Messages    []ChatMessage
}

// ChatStream yields completion deltas until io.EOF
type ChatStream interface {
	// Recv returns the next content delta, or an error (io.EOF at end).
	Recv() (string, error)
	Close() error
}

// Client wraps the OpenAI API client
type Client struct {
	api        CompletionAPI
	dimensions int
	limiter    *rate.Limiter
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateChatStream opens a streaming chat completion
func (a *OpenAIAdapter) CreateChatStream(ctx context.Context, req ChatRequest) (ChatStream, error) {
	model := req.Model
	if model == "" {
		model = DefaultChatModel
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages:    messages,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	return &openaiStream{stream: stream}, nil
}

// CreateChatCompletion runs a non-streamed chat completion and returns
// the first choice's content. Used for short classification calls.
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultChatModel
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type openaiStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	EmbedRatePerSec     int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	ratePerSec := cfg.EmbedRatePerSec
	if ratePerSec <= 0 {
		ratePerSec = DefaultEmbedRatePerSec
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel),
		dimensions: dimensions,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// NewClientWithAPI creates a Client backed by a custom provider, used by tests.
func NewClientWithAPI(api CompletionAPI, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        api,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// EmbedLabeled maps labeled strings to their embeddings. Calls are rate
// limited rather than fanned out so bulk labeling stays inside provider
// quotas.
func (c *Client) EmbedLabeled(ctx context.Context, texts map[string]string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(texts))
	for label, text := range texts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		embedding, err := c.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %q: %w", label, err)
		}
		result[label] = embedding
	}
	return result, nil
}

// StreamChat opens a streaming completion at the given model and temperature
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("chat request requires at least one message")
	}
	return c.api.CreateChatStream(ctx, req)
}

// CompleteChat runs a non-streamed completion and returns the full text
func (c *Client) CompleteChat(ctx context.Context, req ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", errors.New("chat request requires at least one message")
	}
	return c.api.CreateChatCompletion(ctx, req)
}
