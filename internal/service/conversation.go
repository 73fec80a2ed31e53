package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/telemetry"
)

// ConversationRepositoryInterface defines persistence for conversations
// and their messages.
type ConversationRepositoryInterface interface {
	// GetByID loads a conversation with up to historyLimit most recent
	// messages, ordered oldest-to-newest.
	GetByID(ctx context.Context, id string, historyLimit int) (*domain.Conversation, error)
	Create(ctx context.Context, c *domain.Conversation) error
	// AppendMessage persists one turn. Messages order by completed write,
	// not arrival; there is no per-conversation serialization.
	AppendMessage(ctx context.Context, m *domain.ConversationMessage) error
	Touch(ctx context.Context, id string) error
}

// ConversationConfig bounds history loading and the model prompt window.
type ConversationConfig struct {
	HistoryLimit int
	PromptWindow int
}

// DefaultConversationConfig returns the default bounds.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		HistoryLimit: 10,
		PromptWindow: 5,
	}
}

// ConversationService resumes or creates conversations and persists the
// inbound user turn before any downstream work runs.
type ConversationService struct {
	repo ConversationRepositoryInterface
	cfg  ConversationConfig
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(repo ConversationRepositoryInterface) *ConversationService {
	return NewConversationServiceWithConfig(repo, DefaultConversationConfig())
}

// NewConversationServiceWithConfig creates a ConversationService with explicit bounds.
func NewConversationServiceWithConfig(repo ConversationRepositoryInterface, cfg ConversationConfig) *ConversationService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConversationConfig().HistoryLimit
	}
	if cfg.PromptWindow <= 0 {
		cfg.PromptWindow = DefaultConversationConfig().PromptWindow
	}
	return &ConversationService{repo: repo, cfg: cfg}
}

// ResumeOrCreate loads the conversation when an id is supplied, found,
// and owned by (chatbot, visitor); otherwise it creates a new one. A
// supplied id belonging to another tenant or visitor is treated like an
// unknown id so a guessed id can never resume someone else's window.
func (s *ConversationService) ResumeOrCreate(ctx context.Context, chatbotID, visitorID, conversationID string) (*domain.Conversation, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.ResumeOrCreate", telemetry.SpanAttributes{
		ChatbotID:      chatbotID,
		ConversationID: conversationID,
		VisitorID:      visitorID,
		Operation:      "resume_or_create",
	})
	defer span.End()

	if conversationID != "" {
		conv, err := s.repo.GetByID(ctx, conversationID, s.cfg.HistoryLimit)
		if err == nil {
			if conv.ChatbotID == chatbotID && conv.VisitorID == visitorID {
				return conv, nil
			}
		} else if err != domain.ErrConversationNotFound {
			return nil, err
		}
	}

	conv := domain.NewConversation(uuid.NewString(), chatbotID, visitorID)
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// AppendUserTurn persists the inbound user message immediately, so the
// user's turn survives even if later pipeline stages fail.
func (s *ConversationService) AppendUserTurn(ctx context.Context, conv *domain.Conversation, content string) (*domain.ConversationMessage, error) {
	msg := domain.NewUserMessage(uuid.NewString(), conv.ID, content)
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	conv.Messages = append(conv.Messages, msg)
	return msg, nil
}

// AppendAssistantTurn persists the assistant's answer with its
// provenance metadata.
func (s *ConversationService) AppendAssistantTurn(ctx context.Context, conversationID, content, model string, confidence float32, citations []domain.SourceCitation) (*domain.ConversationMessage, error) {
	msg := domain.NewAssistantMessage(uuid.NewString(), conversationID, content, model, confidence, citations)
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	return msg, nil
}

// Touch bumps the conversation's updated timestamp.
func (s *ConversationService) Touch(ctx context.Context, conversationID string) error {
	return s.repo.Touch(ctx, conversationID)
}

// Window returns the most recent PromptWindow persisted messages, the
// slice used to build the model prompt. This is a fixed bound on prompt
// size, not adaptive.
func (s *ConversationService) Window(conv *domain.Conversation) []*domain.ConversationMessage {
	msgs := conv.Messages
	if len(msgs) <= s.cfg.PromptWindow {
		return msgs
	}
	return msgs[len(msgs)-s.cfg.PromptWindow:]
}
