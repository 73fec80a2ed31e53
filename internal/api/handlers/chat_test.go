package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatEngine is a mock implementation of ChatEngine
type MockChatEngine struct {
	mock.Mock
}

func (m *MockChatEngine) Answer(ctx context.Context, input service.ChatInput) (*service.Reply, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Reply), args.Error(1)
}

type fakeStream struct {
	deltas []string
	pos    int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *fakeStream) Close() error { return nil }

func postChat(t *testing.T, handler *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.Answer(rec, req)
	return rec
}

func TestChatHandler_Answer_Streamed(t *testing.T) {
	engine := new(MockChatEngine)

	var completedWith string
	engine.On("Answer", mock.Anything, mock.MatchedBy(func(in service.ChatInput) bool {
		return in.ChatbotPublicID == "pub-1" && in.Message == "hello" && in.Origin == "https://example.com"
	})).Return(&service.Reply{
		Kind:           service.ReplyStreamed,
		Grounding:      service.GroundingDocument,
		ConversationID: "conv-1",
		Stream:         &fakeStream{deltas: []string{"Hello ", "from ", "the docs."}},
		Model:          "gpt-4o-mini",
		Complete:       func(fullText string) { completedWith = fullText },
	}, nil)

	handler := NewChatHandler(engine)
	rec := postChat(t, handler, `{"chatbotId":"pub-1","visitorId":"v-1","message":"hello"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "conv-1", rec.Header().Get("X-Conversation-Id"))
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Hello from the docs.", rec.Body.String())
	assert.Equal(t, "Hello from the docs.", completedWith)
}

func TestChatHandler_Answer_TemplatedRepliesAreWrittenWhole(t *testing.T) {
	for _, kind := range []service.ReplyKind{service.ReplyEscalated, service.ReplyFallback} {
		engine := new(MockChatEngine)
		engine.On("Answer", mock.Anything, mock.Anything).Return(&service.Reply{
			Kind:           kind,
			ConversationID: "conv-2",
			Text:           "canned answer",
		}, nil)

		handler := NewChatHandler(engine)
		rec := postChat(t, handler, `{"chatbotId":"pub-1","visitorId":"v-1","message":"hi"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "conv-2", rec.Header().Get("X-Conversation-Id"))
		assert.Equal(t, "canned answer", rec.Body.String())
	}
}

func TestChatHandler_Answer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		cors   bool
	}{
		{"missing message", domain.ErrMissingMessage, http.StatusBadRequest, true},
		{"unknown chatbot", domain.ErrChatbotNotFound, http.StatusNotFound, true},
		{"inactive chatbot", domain.ErrChatbotInactive, http.StatusForbidden, true},
		{"origin not allowed", domain.ErrOriginNotAllowed, http.StatusForbidden, false},
		{"quota exceeded", domain.ErrQuotaExceeded, http.StatusForbidden, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := new(MockChatEngine)
			engine.On("Answer", mock.Anything, mock.Anything).Return(nil, tc.err)

			handler := NewChatHandler(engine)
			rec := postChat(t, handler, `{"chatbotId":"pub-1","visitorId":"v-1","message":"hi"}`)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			if tc.cors {
				assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				// A rejected origin's browser must not be able to read
				// the error body.
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestChatHandler_Answer_InvalidBody(t *testing.T) {
	engine := new(MockChatEngine)
	handler := NewChatHandler(engine)

	rec := postChat(t, handler, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	engine.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestChatHandler_Answer_ClientDisconnectSkipsCompletion(t *testing.T) {
	engine := new(MockChatEngine)

	completed := false
	engine.On("Answer", mock.Anything, mock.Anything).Return(&service.Reply{
		Kind:           service.ReplyStreamed,
		ConversationID: "conv-3",
		Stream:         &fakeStream{deltas: []string{"partial"}},
		Complete:       func(string) { completed = true },
	}, nil)

	handler := NewChatHandler(engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"chatbotId":"pub-1","visitorId":"v-1","message":"hi"}`)).WithContext(ctx)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.Answer(rec, req)

	assert.False(t, completed)
}

func TestChatHandler_Preflight(t *testing.T) {
	handler := NewChatHandler(new(MockChatEngine))

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.Preflight(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
