package domain

import (
	"fmt"
	"time"
)

// MessageRole identifies who produced a conversation turn
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// SourceCitation records which document chunk grounded an answer.
// Citations are written once with the assistant turn and never updated.
type SourceCitation struct {
	DocumentID   string
	DocumentName string
	Similarity   float32
	Excerpt      string
}

// ConversationMessage is one immutable turn in a conversation. Ordering
// is by creation time only; there is no per-conversation write lock, so
// two racing turns for the same visitor may persist out of arrival order.
type ConversationMessage struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Model          string
	Confidence     float32
	Citations      []SourceCitation
	CreatedAt      time.Time
}

// NewUserMessage creates a user turn for the given conversation.
func NewUserMessage(id, conversationID, content string) *ConversationMessage {
	return &ConversationMessage{
		ID:             id,
		ConversationID: conversationID,
		Role:           MessageRoleUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewAssistantMessage creates an assistant turn with provenance metadata.
func NewAssistantMessage(id, conversationID, content, model string, confidence float32, citations []SourceCitation) *ConversationMessage {
	return &ConversationMessage{
		ID:             id,
		ConversationID: conversationID,
		Role:           MessageRoleAssistant,
		Content:        content,
		Model:          model,
		Confidence:     confidence,
		Citations:      citations,
		CreatedAt:      time.Now().UTC(),
	}
}

// ValidateMessage validates a ConversationMessage instance
func ValidateMessage(m *ConversationMessage) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	if m.ConversationID == "" {
		return fmt.Errorf("message conversation ID is required")
	}

	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return ErrInvalidRole
	}

	if m.Content == "" {
		return fmt.Errorf("message content is required")
	}

	if m.Confidence < 0 || m.Confidence > 1 {
		return ErrInvalidConfidence
	}

	return nil
}
