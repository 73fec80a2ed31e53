package domain

import (
	"fmt"
	"time"
)

// EscalationStatus represents the state of a human hand-off request
type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "pending"
	EscalationStatusAssigned EscalationStatus = "assigned"
	EscalationStatusResolved EscalationStatus = "resolved"
)

// EscalationPriority orders the support queue
type EscalationPriority string

const (
	EscalationPriorityNormal EscalationPriority = "normal"
	EscalationPriorityHigh   EscalationPriority = "high"
)

// EscalationRequest is created when the decision engine routes a
// conversation to a human instead of generating an answer. Rows are read
// by support tooling outside this core.
type EscalationRequest struct {
	ID             string
	ConversationID string
	ChatbotID      string
	VisitorID      string
	Message        string
	Status         EscalationStatus
	Priority       EscalationPriority
	CreatedAt      time.Time
}

// NewEscalationRequest creates a pending, normal-priority escalation.
func NewEscalationRequest(id, conversationID, chatbotID, visitorID, message string) *EscalationRequest {
	return &EscalationRequest{
		ID:             id,
		ConversationID: conversationID,
		ChatbotID:      chatbotID,
		VisitorID:      visitorID,
		Message:        message,
		Status:         EscalationStatusPending,
		Priority:       EscalationPriorityNormal,
		CreatedAt:      time.Now().UTC(),
	}
}

// ValidateEscalationRequest validates an EscalationRequest instance
func ValidateEscalationRequest(e *EscalationRequest) error {
	if e == nil {
		return fmt.Errorf("escalation request cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("escalation request ID is required")
	}

	if e.ConversationID == "" {
		return fmt.Errorf("escalation request conversation ID is required")
	}

	if e.VisitorID == "" {
		return fmt.Errorf("escalation request visitor ID is required")
	}

	if !isValidEscalationStatus(e.Status) {
		return fmt.Errorf("escalation request status is invalid: %s", e.Status)
	}

	return nil
}

func isValidEscalationStatus(s EscalationStatus) bool {
	switch s {
	case EscalationStatusPending, EscalationStatusAssigned, EscalationStatusResolved:
		return true
	}
	return false
}
