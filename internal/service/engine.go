package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/openai"
	"github.com/mentora-labs/mentora/internal/telemetry"
)

// CompletionClient opens streamed completions
type CompletionClient interface {
	StreamChat(ctx context.Context, req openai.ChatRequest) (openai.ChatStream, error)
}

// EscalationRepositoryInterface persists human hand-off requests
type EscalationRepositoryInterface interface {
	Create(ctx context.Context, e *domain.EscalationRequest) error
}

// ChatbotStatsRepository updates per-chatbot counters with store-native
// atomic increments.
type ChatbotStatsRepository interface {
	IncrementMessageCount(ctx context.Context, chatbotID string, delta int64) error
}

// QuotaCounterRepository increments usage atomically in the store.
type QuotaCounterRepository interface {
	IncrementUsed(ctx context.Context, ownerID string) error
}

// ReplyKind names the terminal state the engine reached for a request.
type ReplyKind string

const (
	ReplyEscalated ReplyKind = "escalated"
	ReplyFallback  ReplyKind = "fallback"
	ReplyStreamed  ReplyKind = "streamed"
)

// GroundingKind names which retrieval grounded a streamed reply.
type GroundingKind string

const (
	GroundingStructured GroundingKind = "structured"
	GroundingDocument   GroundingKind = "document"
)

// ChatInput is one inbound visitor message.
type ChatInput struct {
	ChatbotPublicID string
	ConversationID  string
	VisitorID       string
	Message         string
	Origin          string
}

// Validate checks the required fields.
func (in ChatInput) Validate() error {
	if in.ChatbotPublicID == "" {
		return domain.ErrMissingChatbotID
	}
	if strings.TrimSpace(in.Message) == "" {
		return domain.ErrMissingMessage
	}
	if in.VisitorID == "" {
		return domain.ErrMissingVisitorID
	}
	return nil
}

// Reply is the engine's terminal answer for one message. Escalated and
// fallback replies carry the full text immediately; streamed replies
// carry an open completion stream, and Complete must be called with the
// accumulated text once the stream has been fully forwarded. If the
// caller disconnects mid-stream, Complete must not be called, and no
// assistant turn is persisted for the request.
type Reply struct {
	Kind           ReplyKind
	Grounding      GroundingKind
	ConversationID string
	Text           string
	Stream         openai.ChatStream
	Model          string
	Complete       func(fullText string)
}

// EngineConfig holds the decision thresholds. Values come from
// configuration, not literals in the decision path.
type EngineConfig struct {
	// SimilarityFloor is the inclusive mean-similarity threshold for
	// document grounding.
	SimilarityFloor float32
	// EscalationFloor routes low-confidence extractions to a human.
	EscalationFloor float32
}

// DefaultEngineConfig returns the calibrated thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SimilarityFloor: 0.68,
		EscalationFloor: 0.45,
	}
}

// ChatService is the grounding decision engine. For each admitted
// message it evaluates, in strict priority order: escalate, structured
// grounding, document grounding, fallback; only a grounded request
// reaches synthesis. The first matching state is terminal.
type ChatService struct {
	gate          *GateService
	conversations *ConversationService
	extractor     IntentExtractor
	structured    *StructuredRetriever
	documents     *DocumentSearcher
	completion    CompletionClient
	escalations   EscalationRepositoryInterface
	stats         ChatbotStatsRepository
	quotas        QuotaCounterRepository
	owners        OwnerDirectory
	notifier      NotificationSender
	dispatcher    Dispatcher
	cfg           EngineConfig
}

// ChatServiceDeps wires the engine's collaborators.
type ChatServiceDeps struct {
	Gate          *GateService
	Conversations *ConversationService
	Extractor     IntentExtractor
	Structured    *StructuredRetriever
	Documents     *DocumentSearcher
	Completion    CompletionClient
	Escalations   EscalationRepositoryInterface
	Stats         ChatbotStatsRepository
	Quotas        QuotaCounterRepository
	Owners        OwnerDirectory
	Notifier      NotificationSender
	Dispatcher    Dispatcher
}

// NewChatService creates a ChatService with default thresholds.
func NewChatService(deps ChatServiceDeps) *ChatService {
	return NewChatServiceWithConfig(deps, DefaultEngineConfig())
}

// NewChatServiceWithConfig creates a ChatService with explicit thresholds.
func NewChatServiceWithConfig(deps ChatServiceDeps, cfg EngineConfig) *ChatService {
	if cfg.SimilarityFloor <= 0 {
		cfg.SimilarityFloor = DefaultEngineConfig().SimilarityFloor
	}
	if cfg.EscalationFloor <= 0 {
		cfg.EscalationFloor = DefaultEngineConfig().EscalationFloor
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = SyncDispatcher{}
	}
	return &ChatService{
		gate:          deps.Gate,
		conversations: deps.Conversations,
		extractor:     deps.Extractor,
		structured:    deps.Structured,
		documents:     deps.Documents,
		completion:    deps.Completion,
		escalations:   deps.Escalations,
		stats:         deps.Stats,
		quotas:        deps.Quotas,
		owners:        deps.Owners,
		notifier:      notifier,
		dispatcher:    dispatcher,
		cfg:           cfg,
	}
}

// Answer runs the full per-message pipeline: gate, conversation resume,
// extraction, retrieval, grounding decision, and synthesis setup.
func (s *ChatService) Answer(ctx context.Context, input ChatInput) (*Reply, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.Answer", telemetry.SpanAttributes{
		ChatbotID: input.ChatbotPublicID,
		VisitorID: input.VisitorID,
		Operation: "answer",
	})
	defer span.End()

	chatbot, quota, err := s.gate.Admit(ctx, input.ChatbotPublicID, input.Origin)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.ResumeOrCreate(ctx, chatbot.ID, input.VisitorID, input.ConversationID)
	if err != nil {
		return nil, err
	}

	// History snapshot before the new turn: the prompt window is the last
	// persisted messages, then the new user message is appended to it.
	window := s.conversations.Window(conv)

	if _, err := s.conversations.AppendUserTurn(ctx, conv, input.Message); err != nil {
		return nil, err
	}

	extraction := s.extract(ctx, chatbot, input.Message)

	if extraction != nil && s.shouldEscalate(extraction) {
		return s.escalate(ctx, chatbot, quota, conv, input, extraction)
	}

	var structured *StructuredContext
	if extraction != nil && s.structured != nil {
		structured, err = s.structured.Retrieve(ctx, extraction.Intent, extraction.Entities)
		if err != nil {
			log.Printf("structured retrieval failed, continuing without: %v", err)
			structured = nil
		}
	}

	var docResult *DocumentSearchResult
	if structured == nil && s.documents != nil {
		docResult, err = s.documents.Search(ctx, chatbot.ID, input.Message)
		if err != nil {
			// Upstream failure before any partial response degrades to
			// fallback, never a 500.
			log.Printf("document retrieval failed, degrading to fallback: %v", err)
			telemetry.CaptureError(ctx, err)
			docResult = nil
		}
	}

	switch {
	case structured != nil:
		return s.synthesize(ctx, chatbot, quota, conv, input, window, synthesisPlan{
			grounding:  GroundingStructured,
			context:    structured.Prompt,
			confidence: extractionConfidence(extraction),
		})
	case docResult != nil && len(docResult.Chunks) > 0 && docResult.AvgSimilarity >= s.cfg.SimilarityFloor:
		return s.synthesize(ctx, chatbot, quota, conv, input, window, synthesisPlan{
			grounding:  GroundingDocument,
			context:    documentContext(docResult),
			confidence: ConfidenceFromSimilarity(docResult.AvgSimilarity),
			citations:  citationsFromChunks(docResult.Chunks),
		})
	default:
		return s.fallback(ctx, chatbot, quota, conv, input), nil
	}
}

// extract runs intent extraction only for industries that opt into
// structured routing. A nil result means extraction never ran; no later
// branch may read intent or confidence from it.
func (s *ChatService) extract(ctx context.Context, chatbot *domain.Chatbot, message string) *ExtractionResult {
	if s.extractor == nil || !chatbot.Industry.HasStructuredRouting() {
		return nil
	}

	result, err := s.extractor.Extract(ctx, message)
	if err != nil {
		log.Printf("intent extraction failed, continuing unrouted: %v", err)
		return nil
	}
	return result
}

func (s *ChatService) shouldEscalate(extraction *ExtractionResult) bool {
	return extraction.NeedsLiveSupport ||
		extraction.Intent == IntentLiveSupportRequest ||
		extraction.Confidence < s.cfg.EscalationFloor
}

// escalate renders the templated hand-off message, records the
// escalation, and defers persistence and counters to the dispatcher.
// Templated text is returned whole, not streamed.
func (s *ChatService) escalate(ctx context.Context, chatbot *domain.Chatbot, quota *domain.UsageQuota, conv *domain.Conversation, input ChatInput, extraction *ExtractionResult) (*Reply, error) {
	text := renderEscalationMessage(chatbot)

	esc := domain.NewEscalationRequest(uuid.NewString(), conv.ID, chatbot.ID, input.VisitorID, input.Message)
	if err := s.escalations.Create(ctx, esc); err != nil {
		return nil, fmt.Errorf("failed to create escalation request: %w", err)
	}

	s.dispatchAnswerEffects(chatbot, quota, conv, input, text, extraction.Confidence, nil, true)

	return &Reply{
		Kind:           ReplyEscalated,
		ConversationID: conv.ID,
		Text:           text,
	}, nil
}

// fallback returns the tenant's configured text verbatim with confidence
// zero. No completion call is ever issued on this path.
func (s *ChatService) fallback(ctx context.Context, chatbot *domain.Chatbot, quota *domain.UsageQuota, conv *domain.Conversation, input ChatInput) *Reply {
	_, span := telemetry.StartSpan(ctx, "ChatService.fallback", telemetry.SpanAttributes{
		ChatbotID:      chatbot.ID,
		ConversationID: conv.ID,
		Operation:      "fallback",
	})
	defer span.End()

	text := chatbot.FallbackMessage
	if text == "" {
		text = defaultFallbackMessage(chatbot.Language)
	}

	s.dispatchAnswerEffects(chatbot, quota, conv, input, text, 0, nil, false)

	return &Reply{
		Kind:           ReplyFallback,
		ConversationID: conv.ID,
		Text:           text,
	}
}

type synthesisPlan struct {
	grounding  GroundingKind
	context    string
	confidence float32
	citations  []domain.SourceCitation
}

// synthesize opens the completion stream. The Complete callback fires
// the side-effect dispatch only after the caller has forwarded the whole
// stream; a disconnected caller never invokes it, so nothing is
// persisted for the turn.
func (s *ChatService) synthesize(ctx context.Context, chatbot *domain.Chatbot, quota *domain.UsageQuota, conv *domain.Conversation, input ChatInput, window []*domain.ConversationMessage, plan synthesisPlan) (*Reply, error) {
	system := buildSystemPrompt(chatbot, plan)

	messages := make([]openai.ChatMessage, 0, len(window)+2)
	messages = append(messages, openai.ChatMessage{Role: "system", Content: system})
	for _, m := range window {
		messages = append(messages, openai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openai.ChatMessage{Role: "user", Content: input.Message})

	stream, err := s.completion.StreamChat(ctx, openai.ChatRequest{
		Model:       chatbot.Model,
		Temperature: chatbot.Temperature,
		Messages:    messages,
	})
	if err != nil {
		// No bytes have been sent yet: degrade to fallback.
		log.Printf("completion request failed, degrading to fallback: %v", err)
		telemetry.CaptureError(ctx, err)
		return s.fallback(ctx, chatbot, quota, conv, input), nil
	}

	return &Reply{
		Kind:           ReplyStreamed,
		Grounding:      plan.grounding,
		ConversationID: conv.ID,
		Stream:         stream,
		Model:          chatbot.Model,
		Complete: func(fullText string) {
			s.dispatchAnswerEffects(chatbot, quota, conv, input, fullText, plan.confidence, plan.citations, false)
		},
	}, nil
}

// dispatchAnswerEffects hands the three independent post-answer writes
// and the owner notification to the background dispatcher. They are not
// wrapped in one transaction; counters rely on store-native atomic
// increments.
func (s *ChatService) dispatchAnswerEffects(chatbot *domain.Chatbot, quota *domain.UsageQuota, conv *domain.Conversation, input ChatInput, answer string, confidence float32, citations []domain.SourceCitation, escalated bool) {
	// Skipped entirely for the unlimited sentinel.
	skipQuota := s.quotas == nil || quota == nil || quota.Unlimited()

	s.dispatcher.Enqueue("persist_assistant", func(ctx context.Context) error {
		_, err := s.conversations.AppendAssistantTurn(ctx, conv.ID, answer, chatbot.Model, confidence, citations)
		return err
	})

	s.dispatcher.Enqueue("update_usage", func(ctx context.Context) error {
		if err := s.conversations.Touch(ctx, conv.ID); err != nil {
			log.Printf("conversation touch failed: %v", err)
		}
		if !skipQuota {
			if err := s.quotas.IncrementUsed(ctx, chatbot.OwnerID); err != nil {
				log.Printf("quota increment failed: %v", err)
			}
		}
		if s.stats != nil {
			// One user turn plus one assistant turn.
			if err := s.stats.IncrementMessageCount(ctx, chatbot.ID, 2); err != nil {
				log.Printf("message count increment failed: %v", err)
			}
		}
		return nil
	})

	if s.owners == nil {
		return
	}
	s.dispatcher.Enqueue("notify_owner", func(ctx context.Context) error {
		email, enabled, err := s.owners.NotificationEmail(ctx, chatbot.OwnerID)
		if err != nil || !enabled || email == "" {
			return err
		}
		if escalated {
			if err := s.notifier.SendEscalationNotification(ctx, email, EscalationNotification{
				ChatbotName:    chatbot.Name,
				ConversationID: conv.ID,
				VisitorID:      input.VisitorID,
				Message:        input.Message,
			}); err != nil {
				log.Printf("escalation notification failed (ignored): %v", err)
			}
			return nil
		}
		if err := s.notifier.SendAnswerNotification(ctx, email, AnswerNotification{
			ChatbotName:    chatbot.Name,
			ConversationID: conv.ID,
			VisitorID:      input.VisitorID,
			Question:       input.Message,
			Answer:         answer,
		}); err != nil {
			log.Printf("answer notification failed (ignored): %v", err)
		}
		return nil
	})
}

func extractionConfidence(extraction *ExtractionResult) float32 {
	if extraction == nil {
		return 0
	}
	return extraction.Confidence
}

func citationsFromChunks(chunks []*domain.DocumentChunk) []domain.SourceCitation {
	citations := make([]domain.SourceCitation, len(chunks))
	for i, c := range chunks {
		excerpt := truncateExcerpt(c.Content, 200)
		citations[i] = domain.SourceCitation{
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Similarity:   c.Similarity,
			Excerpt:      excerpt,
		}
	}
	return citations
}

// truncateExcerpt caps s at max bytes without splitting a multi-byte
// rune; citations are persisted as JSONB and must stay valid UTF-8.
func truncateExcerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func documentContext(result *DocumentSearchResult) string {
	var b strings.Builder
	b.WriteString("Relevant material from the knowledge base:\n")
	for _, c := range result.Chunks {
		b.WriteString("---\n")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func buildSystemPrompt(chatbot *domain.Chatbot, plan synthesisPlan) string {
	var b strings.Builder

	b.WriteString("You are the assistant for ")
	b.WriteString(chatbot.Name)
	b.WriteString(".")
	if chatbot.Language != "" {
		b.WriteString(" Respond in language: ")
		b.WriteString(chatbot.Language)
		b.WriteString(".")
	}
	if chatbot.WelcomeMessage != "" {
		b.WriteString("\n")
		b.WriteString(chatbot.WelcomeMessage)
	}

	b.WriteString("\n\n")
	b.WriteString(plan.context)

	if plan.grounding == GroundingDocument {
		fallback := chatbot.FallbackMessage
		if fallback == "" {
			fallback = defaultFallbackMessage(chatbot.Language)
		}
		b.WriteString("\nAnswer using only the material above. ")
		b.WriteString("If it does not cover the question, reply exactly with: ")
		b.WriteString(fallback)
		b.WriteString("\nNever answer from general knowledge.")
	}

	return b.String()
}

func renderEscalationMessage(chatbot *domain.Chatbot) string {
	var b strings.Builder

	if chatbot.Language == "tr" {
		b.WriteString("Sizi bir temsilcimize yönlendiriyorum.")
		if chatbot.Escalation.MessagingNumber != "" {
			b.WriteString(" WhatsApp: " + chatbot.Escalation.MessagingNumber + ".")
		}
		if chatbot.Escalation.SupportEmail != "" {
			b.WriteString(" E-posta: " + chatbot.Escalation.SupportEmail + ".")
		}
		if chatbot.Escalation.SupportURL != "" {
			b.WriteString(" Destek: " + chatbot.Escalation.SupportURL)
		}
		return b.String()
	}

	b.WriteString("I'm connecting you with our support team.")
	if chatbot.Escalation.MessagingNumber != "" {
		b.WriteString(" You can reach us on WhatsApp: " + chatbot.Escalation.MessagingNumber + ".")
	}
	if chatbot.Escalation.SupportEmail != "" {
		b.WriteString(" Email: " + chatbot.Escalation.SupportEmail + ".")
	}
	if chatbot.Escalation.SupportURL != "" {
		b.WriteString(" Support portal: " + chatbot.Escalation.SupportURL)
	}
	return b.String()
}

func defaultFallbackMessage(language string) string {
	if language == "tr" {
		return "Üzgünüm, bu konuda elimde bilgi yok. Lütfen destek ekibimizle iletişime geçin."
	}
	return "I'm sorry, I don't have information about that. Please contact our support team."
}
