package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mentora-labs/mentora/internal/openai"
	"github.com/mentora-labs/mentora/internal/telemetry"
)

// ChatCompleter runs a non-streamed completion and returns the full text.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, req openai.ChatRequest) (string, error)
}

const extractorSystemPrompt = `You classify a single visitor message from a study-abroad counseling chat.
Respond with a JSON object only, no prose, with these fields:
  "intent": one of "university_recommendation", "scholarship_inquiry", "visa_requirements", "language_programs", "cost_of_living", "application_process", "live_support_request", "general_question"
  "confidence": number between 0 and 1
  "needs_live_support": true only if the visitor explicitly asks for a human
  "entities": {"country": "", "city": "", "field": "", "language": ""} with empty strings for anything not mentioned`

// CompletionIntentExtractor classifies messages with a short non-streamed
// completion. Classification runs at temperature zero regardless of the
// chatbot's answer temperature.
type CompletionIntentExtractor struct {
	completer ChatCompleter
	model     string
}

// NewCompletionIntentExtractor creates an extractor backed by the given
// completion client. An empty model falls back to the provider default.
func NewCompletionIntentExtractor(completer ChatCompleter, model string) *CompletionIntentExtractor {
	return &CompletionIntentExtractor{completer: completer, model: model}
}

type extractionPayload struct {
	Intent           string  `json:"intent"`
	Confidence       float32 `json:"confidence"`
	NeedsLiveSupport bool    `json:"needs_live_support"`
	Entities         struct {
		Country  string `json:"country"`
		City     string `json:"city"`
		Field    string `json:"field"`
		Language string `json:"language"`
	} `json:"entities"`
}

// Extract classifies one raw message into the intent taxonomy.
func (e *CompletionIntentExtractor) Extract(ctx context.Context, text string) (*ExtractionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "CompletionIntentExtractor.Extract", telemetry.SpanAttributes{
		Operation: "extract_intent",
	})
	defer span.End()

	raw, err := e.completer.CompleteChat(ctx, openai.ChatRequest{
		Model: e.model,
		Messages: []openai.ChatMessage{
			{Role: "system", Content: extractorSystemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("intent extraction failed: %w", err)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("intent extraction returned malformed JSON: %w", err)
	}

	return &ExtractionResult{
		Intent:           normalizeIntent(payload.Intent),
		Confidence:       clampConfidence(payload.Confidence),
		NeedsLiveSupport: payload.NeedsLiveSupport,
		Entities: Entities{
			Country:  payload.Entities.Country,
			City:     payload.Entities.City,
			Field:    payload.Entities.Field,
			Language: payload.Entities.Language,
		},
	}, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizeIntent maps anything outside the taxonomy to general_question
// so a creative model answer never routes to a nonexistent table.
func normalizeIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentUniversityRecommendation:
		return IntentUniversityRecommendation
	case IntentScholarshipInquiry:
		return IntentScholarshipInquiry
	case IntentVisaRequirements:
		return IntentVisaRequirements
	case IntentLanguagePrograms:
		return IntentLanguagePrograms
	case IntentCostOfLiving:
		return IntentCostOfLiving
	case IntentApplicationProcess:
		return IntentApplicationProcess
	case IntentLiveSupportRequest:
		return IntentLiveSupportRequest
	default:
		return IntentGeneralQuestion
	}
}

func clampConfidence(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
