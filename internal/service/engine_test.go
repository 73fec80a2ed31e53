package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIntentExtractor is a mock implementation of IntentExtractor
type MockIntentExtractor struct {
	mock.Mock
}

func (m *MockIntentExtractor) Extract(ctx context.Context, text string) (*ExtractionResult, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExtractionResult), args.Error(1)
}

// MockCompletionClient is a mock implementation of CompletionClient
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) StreamChat(ctx context.Context, req openai.ChatRequest) (openai.ChatStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(openai.ChatStream), args.Error(1)
}

// MockEscalationRepository is a mock implementation of EscalationRepositoryInterface
type MockEscalationRepository struct {
	mock.Mock
}

func (m *MockEscalationRepository) Create(ctx context.Context, e *domain.EscalationRequest) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockStatsRepository is a mock implementation of ChatbotStatsRepository
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) IncrementMessageCount(ctx context.Context, chatbotID string, delta int64) error {
	args := m.Called(ctx, chatbotID, delta)
	return args.Error(0)
}

// MockQuotaCounterRepository is a mock implementation of QuotaCounterRepository
type MockQuotaCounterRepository struct {
	mock.Mock
}

func (m *MockQuotaCounterRepository) IncrementUsed(ctx context.Context, ownerID string) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

// MockOwnerDirectory is a mock implementation of OwnerDirectory
type MockOwnerDirectory struct {
	mock.Mock
}

func (m *MockOwnerDirectory) NotificationEmail(ctx context.Context, ownerID string) (string, bool, error) {
	args := m.Called(ctx, ownerID)
	return args.String(0), args.Bool(1), args.Error(2)
}

// MockNotificationSender is a mock implementation of NotificationSender
type MockNotificationSender struct {
	mock.Mock
}

func (m *MockNotificationSender) SendAnswerNotification(ctx context.Context, email string, n AnswerNotification) error {
	args := m.Called(ctx, email, n)
	return args.Error(0)
}

func (m *MockNotificationSender) SendEscalationNotification(ctx context.Context, email string, n EscalationNotification) error {
	args := m.Called(ctx, email, n)
	return args.Error(0)
}

// scriptedStream yields fixed deltas and then io.EOF.
type scriptedStream struct {
	deltas []string
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// engineMocks bundles every collaborator behind the ChatService so each
// test can override just the expectations it cares about.
type engineMocks struct {
	chatbots      *MockChatbotRepository
	quotas        *MockQuotaRepository
	conversations *MockConversationRepository
	extractor     *MockIntentExtractor
	records       *MockRecordRepository
	embedding     *MockEmbeddingClient
	chunks        *MockChunkRepository
	completion    *MockCompletionClient
	escalations   *MockEscalationRepository
	stats         *MockStatsRepository
	counter       *MockQuotaCounterRepository

	persisted []*domain.ConversationMessage
}

func newEngineMocks() *engineMocks {
	m := &engineMocks{
		chatbots:      new(MockChatbotRepository),
		quotas:        new(MockQuotaRepository),
		conversations: new(MockConversationRepository),
		extractor:     new(MockIntentExtractor),
		records:       new(MockRecordRepository),
		embedding:     new(MockEmbeddingClient),
		chunks:        new(MockChunkRepository),
		completion:    new(MockCompletionClient),
		escalations:   new(MockEscalationRepository),
		stats:         new(MockStatsRepository),
		counter:       new(MockQuotaCounterRepository),
	}
	m.conversations.On("AppendMessage", mock.Anything, mock.AnythingOfType("*domain.ConversationMessage")).
		Run(func(args mock.Arguments) {
			m.persisted = append(m.persisted, args.Get(1).(*domain.ConversationMessage))
		}).
		Return(nil)
	m.conversations.On("Create", mock.Anything, mock.AnythingOfType("*domain.Conversation")).Return(nil)
	m.conversations.On("Touch", mock.Anything, mock.Anything).Return(nil)
	m.stats.On("IncrementMessageCount", mock.Anything, mock.Anything, int64(2)).Return(nil)
	m.counter.On("IncrementUsed", mock.Anything, mock.Anything).Return(nil)
	return m
}

func (m *engineMocks) admit(bot *domain.Chatbot, quota *domain.UsageQuota) {
	m.chatbots.On("GetByPublicID", mock.Anything, bot.PublicID).Return(bot, nil)
	m.quotas.On("GetByOwner", mock.Anything, bot.OwnerID).Return(quota, nil)
}

func (m *engineMocks) assistantTurns() []*domain.ConversationMessage {
	var turns []*domain.ConversationMessage
	for _, msg := range m.persisted {
		if msg.Role == domain.MessageRoleAssistant {
			turns = append(turns, msg)
		}
	}
	return turns
}

func newEngine(m *engineMocks) *ChatService {
	return NewChatService(ChatServiceDeps{
		Gate:          NewGateService(m.chatbots, m.quotas, false),
		Conversations: NewConversationService(m.conversations),
		Extractor:     m.extractor,
		Structured:    NewStructuredRetriever(m.records),
		Documents:     NewDocumentSearcher(m.embedding, m.chunks),
		Completion:    m.completion,
		Escalations:   m.escalations,
		Stats:         m.stats,
		Quotas:        m.counter,
		Dispatcher:    SyncDispatcher{},
	})
}

func educationChatbot() *domain.Chatbot {
	bot := domain.NewChatbot("bot-1", "pub-1", "owner-1", "Mentora Edu", domain.IndustryEducation)
	bot.AllowedOrigins = []string{"example.com"}
	bot.Model = "gpt-4o-mini"
	bot.FallbackMessage = "I could not find that in our materials. Please contact our advisors."
	bot.Escalation = domain.EscalationChannels{MessagingNumber: "+90 555 000 0000", SupportEmail: "support@mentora.example"}
	return bot
}

func limitedQuota() *domain.UsageQuota {
	return &domain.UsageQuota{OwnerID: "owner-1", Used: 10, Ceiling: 100}
}

func chatInput(message string) ChatInput {
	return ChatInput{
		ChatbotPublicID: "pub-1",
		VisitorID:       "visitor-1",
		Message:         message,
		Origin:          "https://example.com",
	}
}

func drainStream(t *testing.T, reply *Reply) string {
	t.Helper()
	var b strings.Builder
	for {
		delta, err := reply.Stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b.WriteString(delta)
	}
	return b.String()
}

func TestChatService_Answer_Validation(t *testing.T) {
	svc := newEngine(newEngineMocks())
	ctx := context.Background()

	_, err := svc.Answer(ctx, ChatInput{VisitorID: "v", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrMissingChatbotID)

	_, err = svc.Answer(ctx, ChatInput{ChatbotPublicID: "pub-1", VisitorID: "v", Message: "   "})
	assert.ErrorIs(t, err, domain.ErrMissingMessage)

	_, err = svc.Answer(ctx, ChatInput{ChatbotPublicID: "pub-1", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrMissingVisitorID)
}

func TestChatService_Answer_GateFailuresShortCircuit(t *testing.T) {
	m := newEngineMocks()
	m.chatbots.On("GetByPublicID", mock.Anything, "pub-1").Return(nil, domain.ErrChatbotNotFound)
	svc := newEngine(m)

	_, err := svc.Answer(context.Background(), chatInput("hello"))

	assert.ErrorIs(t, err, domain.ErrChatbotNotFound)
	assert.Empty(t, m.persisted)
	m.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestChatService_Answer_Escalation(t *testing.T) {
	t.Run("live support request creates a pending escalation", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(educationChatbot(), limitedQuota())
		m.extractor.On("Extract", mock.Anything, "I want to talk to a human").Return(&ExtractionResult{
			Intent:     IntentLiveSupportRequest,
			Confidence: 0.95,
		}, nil)

		var created *domain.EscalationRequest
		m.escalations.On("Create", mock.Anything, mock.AnythingOfType("*domain.EscalationRequest")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*domain.EscalationRequest) }).
			Return(nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("I want to talk to a human"))

		require.NoError(t, err)
		assert.Equal(t, ReplyEscalated, reply.Kind)
		assert.Contains(t, reply.Text, "+90 555 000 0000")
		require.NotNil(t, created)
		assert.Equal(t, domain.EscalationStatusPending, created.Status)
		assert.Equal(t, "I want to talk to a human", created.Message)
		m.completion.AssertNotCalled(t, "StreamChat", mock.Anything, mock.Anything)
	})

	t.Run("needs-live-support flag escalates regardless of intent", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(educationChatbot(), limitedQuota())
		m.extractor.On("Extract", mock.Anything, mock.Anything).Return(&ExtractionResult{
			Intent:           IntentGeneralQuestion,
			Confidence:       0.9,
			NeedsLiveSupport: true,
		}, nil)
		m.escalations.On("Create", mock.Anything, mock.Anything).Return(nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("this bot is useless, get me a person"))

		require.NoError(t, err)
		assert.Equal(t, ReplyEscalated, reply.Kind)
	})

	t.Run("confidence below the floor escalates", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(educationChatbot(), limitedQuota())
		m.extractor.On("Extract", mock.Anything, mock.Anything).Return(&ExtractionResult{
			Intent:     IntentUniversityRecommendation,
			Confidence: 0.44,
		}, nil)
		m.escalations.On("Create", mock.Anything, mock.Anything).Return(nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("umm maybe university?"))

		require.NoError(t, err)
		assert.Equal(t, ReplyEscalated, reply.Kind)
		m.records.AssertNotCalled(t, "FindInstitutions", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confidence exactly at the floor does not escalate", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(educationChatbot(), limitedQuota())
		m.extractor.On("Extract", mock.Anything, mock.Anything).Return(&ExtractionResult{
			Intent:     IntentGeneralQuestion,
			Confidence: 0.45,
		}, nil)
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{}, nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("so about studying"))

		require.NoError(t, err)
		assert.Equal(t, ReplyFallback, reply.Kind)
		m.escalations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestChatService_Answer_StructuredGrounding(t *testing.T) {
	m := newEngineMocks()
	bot := educationChatbot()
	bot.Language = "tr"
	m.admit(bot, limitedQuota())
	m.extractor.On("Extract", mock.Anything, "Polonya'da mühendislik okumak istiyorum").Return(&ExtractionResult{
		Intent:     IntentUniversityRecommendation,
		Confidence: 0.9,
		Entities:   Entities{Country: "Poland", Field: "Engineering"},
	}, nil)
	m.records.On("FindInstitutions", mock.Anything, RecordFilter{Country: "Poland", Field: "Engineering"}, 5).
		Return([]domain.DomainRecord{
			&domain.Institution{ID: "inst-1", Name: "Warsaw University of Technology", Country: "Poland", City: "Warsaw"},
		}, nil)

	var sentReq openai.ChatRequest
	m.completion.On("StreamChat", mock.Anything, mock.AnythingOfType("openai.ChatRequest")).
		Run(func(args mock.Arguments) { sentReq = args.Get(1).(openai.ChatRequest) }).
		Return(&scriptedStream{deltas: []string{"Warsaw ", "Tech ", "is a great fit."}}, nil)

	svc := newEngine(m)
	reply, err := svc.Answer(context.Background(), chatInput("Polonya'da mühendislik okumak istiyorum"))

	require.NoError(t, err)
	assert.Equal(t, ReplyStreamed, reply.Kind)
	assert.Equal(t, GroundingStructured, reply.Grounding)
	assert.Equal(t, "gpt-4o-mini", reply.Model)

	require.NotEmpty(t, sentReq.Messages)
	system := sentReq.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "Warsaw University of Technology")
	assert.Equal(t, "Polonya'da mühendislik okumak istiyorum", sentReq.Messages[len(sentReq.Messages)-1].Content)

	// Document search never runs once structured retrieval hits.
	m.embedding.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)

	full := drainStream(t, reply)
	assert.Equal(t, "Warsaw Tech is a great fit.", full)
	reply.Complete(full)

	turns := m.assistantTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, full, turns[0].Content)
	assert.Equal(t, float32(0.9), turns[0].Confidence)
	assert.Empty(t, turns[0].Citations)
}

func TestChatService_Answer_DocumentGrounding(t *testing.T) {
	genericBot := func() *domain.Chatbot {
		bot := educationChatbot()
		bot.Industry = domain.IndustryGeneric
		return bot
	}

	t.Run("mean similarity above the floor streams with citations", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(genericBot(), limitedQuota())
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{
			chunkWithSimilarity("c1", 0.80),
			chunkWithSimilarity("c2", 0.72),
			chunkWithSimilarity("c3", 0.69),
		}, nil)
		m.completion.On("StreamChat", mock.Anything, mock.Anything).
			Return(&scriptedStream{deltas: []string{"Answer from the handbook."}}, nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("what does the handbook say?"))

		require.NoError(t, err)
		assert.Equal(t, ReplyStreamed, reply.Kind)
		assert.Equal(t, GroundingDocument, reply.Grounding)

		full := drainStream(t, reply)
		reply.Complete(full)

		turns := m.assistantTurns()
		require.Len(t, turns, 1)
		require.Len(t, turns[0].Citations, 3)
		assert.Equal(t, "handbook.pdf", turns[0].Citations[0].DocumentName)
		assert.Equal(t, float32(0.80), turns[0].Citations[0].Similarity)
		assert.InDelta(t, 0.7366, turns[0].Confidence, 0.001)
	})

	t.Run("mean similarity exactly at the floor is grounded", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(genericBot(), limitedQuota())
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{
			chunkWithSimilarity("c1", 0.68),
		}, nil)
		m.completion.On("StreamChat", mock.Anything, mock.Anything).
			Return(&scriptedStream{deltas: []string{"Grounded."}}, nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("boundary question"))

		require.NoError(t, err)
		assert.Equal(t, ReplyStreamed, reply.Kind)
	})

	t.Run("mean similarity below the floor falls back verbatim", func(t *testing.T) {
		m := newEngineMocks()
		bot := genericBot()
		m.admit(bot, limitedQuota())
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{
			chunkWithSimilarity("c1", 0.67),
		}, nil)

		svc := newEngine(m)
		reply, err := svc.Answer(context.Background(), chatInput("off-topic question"))

		require.NoError(t, err)
		assert.Equal(t, ReplyFallback, reply.Kind)
		assert.Equal(t, bot.FallbackMessage, reply.Text)
		m.completion.AssertNotCalled(t, "StreamChat", mock.Anything, mock.Anything)

		turns := m.assistantTurns()
		require.Len(t, turns, 1)
		assert.Equal(t, float32(0), turns[0].Confidence)
	})
}

func TestChatService_Answer_NonRoutedIndustrySkipsExtraction(t *testing.T) {
	m := newEngineMocks()
	bot := educationChatbot()
	bot.Industry = domain.IndustryEcommerce
	m.admit(bot, limitedQuota())
	m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{}, nil)

	svc := newEngine(m)
	reply, err := svc.Answer(context.Background(), chatInput("where is my order?"))

	require.NoError(t, err)
	assert.Equal(t, ReplyFallback, reply.Kind)
	m.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	m.records.AssertNotCalled(t, "FindInstitutions", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatService_Answer_ExtractionFailureDegradesToDocuments(t *testing.T) {
	m := newEngineMocks()
	m.admit(educationChatbot(), limitedQuota())
	m.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))
	m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{}, nil)

	svc := newEngine(m)
	reply, err := svc.Answer(context.Background(), chatInput("a question"))

	require.NoError(t, err)
	assert.Equal(t, ReplyFallback, reply.Kind)
	m.escalations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestChatService_Answer_CompletionFailureDegradesToFallback(t *testing.T) {
	m := newEngineMocks()
	bot := educationChatbot()
	bot.Industry = domain.IndustryGeneric
	m.admit(bot, limitedQuota())
	m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{
		chunkWithSimilarity("c1", 0.90),
	}, nil)
	m.completion.On("StreamChat", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 500"))

	svc := newEngine(m)
	reply, err := svc.Answer(context.Background(), chatInput("a grounded question"))

	require.NoError(t, err)
	assert.Equal(t, ReplyFallback, reply.Kind)
	assert.Equal(t, bot.FallbackMessage, reply.Text)
}

func TestChatService_Answer_DocumentSearchFailureDegradesToFallback(t *testing.T) {
	m := newEngineMocks()
	bot := educationChatbot()
	bot.Industry = domain.IndustryGeneric
	m.admit(bot, limitedQuota())
	m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("embeddings down"))

	svc := newEngine(m)
	reply, err := svc.Answer(context.Background(), chatInput("a question"))

	require.NoError(t, err)
	assert.Equal(t, ReplyFallback, reply.Kind)
}

func TestChatService_Answer_DisconnectedClientPersistsNothing(t *testing.T) {
	m := newEngineMocks()
	bot := educationChatbot()
	bot.Industry = domain.IndustryGeneric
	m.admit(bot, limitedQuota())
	m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{
		chunkWithSimilarity("c1", 0.90),
	}, nil)
	m.completion.On("StreamChat", mock.Anything, mock.Anything).
		Return(&scriptedStream{deltas: []string{"partial ", "answer"}}, nil)

	svc := newEngine(m)
	reply, err := svc.Answer(context.Background(), chatInput("a question"))
	require.NoError(t, err)

	// Caller disconnects mid-stream: Complete is never invoked.
	_, _ = reply.Stream.Recv()
	_ = reply.Stream.Close()

	assert.Empty(t, m.assistantTurns())
	m.counter.AssertNotCalled(t, "IncrementUsed", mock.Anything, mock.Anything)
	m.stats.AssertNotCalled(t, "IncrementMessageCount", mock.Anything, mock.Anything, mock.Anything)
	// The user turn survives regardless.
	require.Len(t, m.persisted, 1)
	assert.Equal(t, domain.MessageRoleUser, m.persisted[0].Role)
}

func TestChatService_Answer_UsageEffects(t *testing.T) {
	t.Run("limited tenant increments usage and message count", func(t *testing.T) {
		m := newEngineMocks()
		bot := educationChatbot()
		bot.Industry = domain.IndustryGeneric
		m.admit(bot, limitedQuota())
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{}, nil)

		svc := newEngine(m)
		_, err := svc.Answer(context.Background(), chatInput("a question"))

		require.NoError(t, err)
		m.counter.AssertCalled(t, "IncrementUsed", mock.Anything, "owner-1")
		m.stats.AssertCalled(t, "IncrementMessageCount", mock.Anything, "bot-1", int64(2))
		m.conversations.AssertCalled(t, "Touch", mock.Anything, mock.Anything)
	})

	t.Run("unlimited tenant skips the usage increment", func(t *testing.T) {
		m := newEngineMocks()
		bot := educationChatbot()
		bot.Industry = domain.IndustryGeneric
		m.admit(bot, &domain.UsageQuota{OwnerID: "owner-1", Used: 5000, Ceiling: domain.UnlimitedQuota})
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{}, nil)

		svc := newEngine(m)
		_, err := svc.Answer(context.Background(), chatInput("a question"))

		require.NoError(t, err)
		m.counter.AssertNotCalled(t, "IncrementUsed", mock.Anything, mock.Anything)
		m.stats.AssertCalled(t, "IncrementMessageCount", mock.Anything, "bot-1", int64(2))
	})
}

func TestChatService_Answer_OwnerNotifications(t *testing.T) {
	t.Run("answered turn notifies an opted-in owner", func(t *testing.T) {
		m := newEngineMocks()
		bot := educationChatbot()
		bot.Industry = domain.IndustryGeneric
		m.admit(bot, limitedQuota())
		m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
		m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{}, nil)

		owners := new(MockOwnerDirectory)
		notifier := new(MockNotificationSender)
		owners.On("NotificationEmail", mock.Anything, "owner-1").Return("owner@mentora.example", true, nil)
		notifier.On("SendAnswerNotification", mock.Anything, "owner@mentora.example", mock.AnythingOfType("service.AnswerNotification")).Return(nil)

		svc := NewChatService(ChatServiceDeps{
			Gate:          NewGateService(m.chatbots, m.quotas, false),
			Conversations: NewConversationService(m.conversations),
			Documents:     NewDocumentSearcher(m.embedding, m.chunks),
			Completion:    m.completion,
			Escalations:   m.escalations,
			Stats:         m.stats,
			Quotas:        m.counter,
			Owners:        owners,
			Notifier:      notifier,
			Dispatcher:    SyncDispatcher{},
		})

		_, err := svc.Answer(context.Background(), chatInput("a question"))

		require.NoError(t, err)
		notifier.AssertExpectations(t)
	})

	t.Run("escalation notifies with the hand-off template", func(t *testing.T) {
		m := newEngineMocks()
		m.admit(educationChatbot(), limitedQuota())
		m.extractor.On("Extract", mock.Anything, mock.Anything).Return(&ExtractionResult{
			Intent:     IntentLiveSupportRequest,
			Confidence: 0.9,
		}, nil)
		m.escalations.On("Create", mock.Anything, mock.Anything).Return(nil)

		owners := new(MockOwnerDirectory)
		notifier := new(MockNotificationSender)
		owners.On("NotificationEmail", mock.Anything, "owner-1").Return("owner@mentora.example", true, nil)
		notifier.On("SendEscalationNotification", mock.Anything, "owner@mentora.example", mock.AnythingOfType("service.EscalationNotification")).Return(nil)

		svc := NewChatService(ChatServiceDeps{
			Gate:          NewGateService(m.chatbots, m.quotas, false),
			Conversations: NewConversationService(m.conversations),
			Extractor:     m.extractor,
			Escalations:   m.escalations,
			Stats:         m.stats,
			Quotas:        m.counter,
			Owners:        owners,
			Notifier:      notifier,
			Dispatcher:    SyncDispatcher{},
		})

		_, err := svc.Answer(context.Background(), chatInput("human please"))

		require.NoError(t, err)
		notifier.AssertExpectations(t)
		notifier.AssertNotCalled(t, "SendAnswerNotification", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestChatService_Answer_ResumedConversationWindow(t *testing.T) {
	m := newEngineMocks()
	bot := educationChatbot()
	bot.Industry = domain.IndustryGeneric
	m.admit(bot, limitedQuota())

	resumed := domain.NewConversation("conv-9", "bot-1", "visitor-1")
	for i := 0; i < 7; i++ {
		resumed.Messages = append(resumed.Messages, domain.NewUserMessage("old", "conv-9", "older turn"))
	}
	m.conversations.On("GetByID", mock.Anything, "conv-9", 10).Return(resumed, nil)

	m.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.chunks.On("SearchByEmbedding", mock.Anything, "bot-1", mock.Anything, 3).Return([]*domain.DocumentChunk{
		chunkWithSimilarity("c1", 0.90),
	}, nil)

	var sentReq openai.ChatRequest
	m.completion.On("StreamChat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sentReq = args.Get(1).(openai.ChatRequest) }).
		Return(&scriptedStream{deltas: []string{"ok"}}, nil)

	svc := newEngine(m)
	input := chatInput("new question")
	input.ConversationID = "conv-9"
	reply, err := svc.Answer(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "conv-9", reply.ConversationID)

	// System prompt, five window turns, then the new user message.
	require.Len(t, sentReq.Messages, 7)
	assert.Equal(t, "system", sentReq.Messages[0].Role)
	for _, msg := range sentReq.Messages[1:6] {
		assert.Equal(t, "older turn", msg.Content)
	}
	assert.Equal(t, "new question", sentReq.Messages[6].Content)
}

func TestCitationExcerptKeepsRuneBoundaries(t *testing.T) {
	// 199 ASCII bytes followed by multi-byte Turkish runes; a byte-wise
	// cut at 200 would land inside the first rune.
	content := strings.Repeat("a", 199) + "ğüş"
	citations := citationsFromChunks([]*domain.DocumentChunk{{
		DocumentID:   "doc-1",
		DocumentName: "el kitabı.pdf",
		Content:      content,
		Similarity:   0.8,
	}})

	require.Len(t, citations, 1)
	excerpt := citations[0].Excerpt
	assert.True(t, utf8.ValidString(excerpt))
	assert.LessOrEqual(t, len(excerpt), 200)
	assert.Equal(t, strings.Repeat("a", 199), excerpt)

	short := citationsFromChunks([]*domain.DocumentChunk{{Content: "kısa özet"}})
	assert.Equal(t, "kısa özet", short[0].Excerpt)
}
