package domain

import (
	"fmt"
	"time"
)

// Industry scopes a chatbot to a vertical. Only some industries opt into
// structured intent routing; the rest answer from documents or fallback.
type Industry string

const (
	IndustryEducation  Industry = "education"
	IndustryEcommerce  Industry = "ecommerce"
	IndustryRealEstate Industry = "real_estate"
	IndustryGeneric    Industry = "generic"
)

// HasStructuredRouting reports whether the industry runs intent extraction
// and structured record retrieval before document search.
func (i Industry) HasStructuredRouting() bool {
	return i == IndustryEducation
}

// EscalationChannels holds the human hand-off contact points a tenant
// configured for their chatbot.
type EscalationChannels struct {
	MessagingNumber string
	SupportEmail    string
	SupportURL      string
}

// Chatbot is a tenant's conversational front-end configuration.
// It is immutable for the duration of a single request.
type Chatbot struct {
	ID              string
	PublicID        string
	OwnerID         string
	Name            string
	Industry        Industry
	Active          bool
	AllowedOrigins  []string
	Language        string
	Model           string
	Temperature     float32
	WelcomeMessage  string
	FallbackMessage string
	Escalation      EscalationChannels
	MessageCount    int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewChatbot creates a Chatbot with the given identity and defaults.
func NewChatbot(id, publicID, ownerID, name string, industry Industry) *Chatbot {
	now := time.Now().UTC()
	return &Chatbot{
		ID:        id,
		PublicID:  publicID,
		OwnerID:   ownerID,
		Name:      name,
		Industry:  industry,
		Active:    true,
		Language:  "en",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateChatbot validates a Chatbot instance
func ValidateChatbot(c *Chatbot) error {
	if c == nil {
		return fmt.Errorf("chatbot cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chatbot ID is required")
	}

	if c.PublicID == "" {
		return fmt.Errorf("chatbot public ID is required")
	}

	if c.OwnerID == "" {
		return fmt.Errorf("chatbot owner ID is required")
	}

	if !isValidIndustry(c.Industry) {
		return ErrInvalidIndustry
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("chatbot temperature must be between 0 and 2")
	}

	return nil
}

func isValidIndustry(i Industry) bool {
	switch i {
	case IndustryEducation, IndustryEcommerce, IndustryRealEstate, IndustryGeneric:
		return true
	}
	return false
}
