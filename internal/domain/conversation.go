package domain

import (
	"fmt"
	"time"
)

// ConversationStatus represents the lifecycle state of a conversation
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusEscalated ConversationStatus = "escalated"
	ConversationStatusClosed    ConversationStatus = "closed"
)

// Conversation is an append-only exchange between one visitor and one
// chatbot. It is created on the visitor's first message and resumed on
// subsequent ones; the core never deletes it.
type Conversation struct {
	ID        string
	ChatbotID string
	VisitorID string
	Status    ConversationStatus
	Messages  []*ConversationMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversation creates an active conversation bound to (chatbot, visitor).
func NewConversation(id, chatbotID, visitorID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		ChatbotID: chatbotID,
		VisitorID: visitorID,
		Status:    ConversationStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateConversation validates a Conversation instance
func ValidateConversation(c *Conversation) error {
	if c == nil {
		return fmt.Errorf("conversation cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}

	if c.ChatbotID == "" {
		return fmt.Errorf("conversation chatbot ID is required")
	}

	if c.VisitorID == "" {
		return fmt.Errorf("conversation visitor ID is required")
	}

	if !isValidConversationStatus(c.Status) {
		return fmt.Errorf("conversation status is invalid: %s", c.Status)
	}

	return nil
}

func isValidConversationStatus(s ConversationStatus) bool {
	switch s {
	case ConversationStatusActive, ConversationStatusEscalated, ConversationStatusClosed:
		return true
	}
	return false
}
