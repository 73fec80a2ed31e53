package service

import (
	"context"
	"log"
)

// AnswerNotification describes an answered conversation turn for the
// tenant owner.
type AnswerNotification struct {
	ChatbotName    string
	ConversationID string
	VisitorID      string
	Question       string
	Answer         string
}

// EscalationNotification describes a pending human hand-off.
type EscalationNotification struct {
	ChatbotName    string
	ConversationID string
	VisitorID      string
	Message        string
}

// NotificationSender delivers owner notifications. Fire-and-forget:
// failures are logged by the caller and never retried inline, and they
// must never block or roll back a customer-facing answer.
type NotificationSender interface {
	SendAnswerNotification(ctx context.Context, email string, n AnswerNotification) error
	SendEscalationNotification(ctx context.Context, email string, n EscalationNotification) error
}

// OwnerDirectory resolves a tenant owner's notification preference.
type OwnerDirectory interface {
	// NotificationEmail returns the owner's email and whether they opted
	// into message notifications.
	NotificationEmail(ctx context.Context, ownerID string) (string, bool, error)
}

// LogNotifier is the default sender when no email transport is
// configured; it only logs.
type LogNotifier struct{}

func (LogNotifier) SendAnswerNotification(_ context.Context, email string, n AnswerNotification) error {
	log.Printf("notify %s: chatbot %q answered visitor %s in conversation %s", email, n.ChatbotName, n.VisitorID, n.ConversationID)
	return nil
}

func (LogNotifier) SendEscalationNotification(_ context.Context, email string, n EscalationNotification) error {
	log.Printf("notify %s: chatbot %q escalated conversation %s to a human", email, n.ChatbotName, n.ConversationID)
	return nil
}
