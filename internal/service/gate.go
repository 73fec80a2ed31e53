package service

import (
	"context"
	"errors"

	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/telemetry"
)

// GateChatbotRepository resolves chatbots for admission checks
type GateChatbotRepository interface {
	GetByPublicID(ctx context.Context, publicID string) (*domain.Chatbot, error)
}

// GateQuotaRepository reads per-tenant usage counters
type GateQuotaRepository interface {
	GetByOwner(ctx context.Context, ownerID string) (*domain.UsageQuota, error)
}

// GateService runs the admission checks at the entry of the pipeline:
// chatbot resolution, active flag, origin allow-list, and usage quota.
// Any failure short-circuits with no side effects.
type GateService struct {
	chatbots GateChatbotRepository
	quotas   GateQuotaRepository
	devMode  bool
}

// NewGateService creates a new GateService instance
func NewGateService(chatbots GateChatbotRepository, quotas GateQuotaRepository, devMode bool) *GateService {
	return &GateService{
		chatbots: chatbots,
		quotas:   quotas,
		devMode:  devMode,
	}
}

// Admit resolves the chatbot and verifies it may serve this request.
// The tenant's quota is returned alongside so later stages can honor the
// unlimited sentinel without a second lookup.
func (s *GateService) Admit(ctx context.Context, publicID, origin string) (*domain.Chatbot, *domain.UsageQuota, error) {
	ctx, span := telemetry.StartSpan(ctx, "GateService.Admit", telemetry.SpanAttributes{
		ChatbotID: publicID,
		Operation: "admit",
	})
	defer span.End()

	chatbot, err := s.chatbots.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, nil, err
	}

	if !chatbot.Active {
		return nil, nil, domain.ErrChatbotInactive
	}

	if !OriginAllowed(origin, chatbot.AllowedOrigins, s.devMode) {
		return nil, nil, domain.ErrOriginNotAllowed
	}

	quota, err := s.quotas.GetByOwner(ctx, chatbot.OwnerID)
	if errors.Is(err, domain.ErrQuotaNotFound) {
		// No quota row means the tenant is not metered; admit with no
		// quota so usage accounting is skipped downstream.
		return chatbot, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if quota.Exhausted() {
		return nil, nil, domain.ErrQuotaExceeded
	}

	return chatbot, quota, nil
}
