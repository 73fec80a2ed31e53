package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/mentora-labs/mentora/internal/api"
	"github.com/mentora-labs/mentora/internal/api/middleware"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/service"
)

// ChatEngine answers one visitor message end to end.
type ChatEngine interface {
	Answer(ctx context.Context, input service.ChatInput) (*service.Reply, error)
}

type ChatHandler struct {
	engine ChatEngine
}

func NewChatHandler(engine ChatEngine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

type ChatRequest struct {
	ChatbotID      string `json:"chatbotId"`
	ConversationID string `json:"conversationId,omitempty"`
	VisitorID      string `json:"visitorId"`
	Message        string `json:"message"`
}

// Answer handles POST /chat. The response body is the answer text
// streamed as plain text chunks; the conversation id travels in the
// X-Conversation-Id header so it is available before the first byte.
func (h *ChatHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := r.Header.Get("Origin")

	input := service.ChatInput{
		ChatbotPublicID: req.ChatbotID,
		ConversationID:  req.ConversationID,
		VisitorID:       req.VisitorID,
		Message:         req.Message,
		Origin:          origin,
	}

	middleware.SetChatbotID(r.Context(), req.ChatbotID)
	reply, err := h.engine.Answer(r.Context(), input)
	if err != nil {
		// Echo the origin only when the allow-list did not reject it;
		// a disallowed origin's browser must not read the error body.
		if !errors.Is(err, domain.ErrOriginNotAllowed) {
			writeCORSHeaders(w, origin)
		}
		api.HandleError(w, err)
		return
	}

	writeCORSHeaders(w, origin)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Conversation-Id", reply.ConversationID)

	switch reply.Kind {
	case service.ReplyStreamed:
		h.forwardStream(w, r, reply)
	default:
		// Escalated and fallback answers are templated whole.
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, reply.Text)
	}
}

// forwardStream copies completion deltas to the client as they arrive.
// Persistence fires through reply.Complete only after the full stream
// has been forwarded; a disconnected client aborts without completing.
func (h *ChatHandler) forwardStream(w http.ResponseWriter, r *http.Request, reply *service.Reply) {
	defer reply.Stream.Close()

	flusher, _ := w.(http.Flusher)
	w.WriteHeader(http.StatusOK)

	var full strings.Builder
	for {
		select {
		case <-r.Context().Done():
			log.Printf("client disconnected mid-stream, conversation %s", reply.ConversationID)
			return
		default:
		}

		delta, err := reply.Stream.Recv()
		if errors.Is(err, io.EOF) {
			reply.Complete(full.String())
			return
		}
		if err != nil {
			// Partial bytes are already on the wire; nothing useful to
			// send, and nothing is persisted for the turn.
			log.Printf("completion stream failed mid-answer: %v", err)
			return
		}
		if delta == "" {
			continue
		}

		if _, err := io.WriteString(w, delta); err != nil {
			log.Printf("client write failed mid-stream: %v", err)
			return
		}
		full.WriteString(delta)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Preflight handles OPTIONS /chat for the embedded widget. The gate
// enforces the per-chatbot allow-list on the POST itself; preflight
// only has to echo the origin so the browser proceeds.
func (h *ChatHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	writeCORSHeaders(w, r.Header.Get("Origin"))
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func writeCORSHeaders(w http.ResponseWriter, origin string) {
	if origin == "" {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Vary", "Origin")
}
