package middleware

import (
	"context"
	"net/http"
	"sync"
)

type contextKey string

const chatbotHolderKey contextKey = "chatbot_holder"

// chatbotHolder is a mutable cell shared between the handler and the
// middleware that finish after it. Context values only flow downward,
// so the handler cannot attach the resolved chatbot id for its parents
// to read; it fills the holder installed up front instead.
type chatbotHolder struct {
	mu sync.Mutex
	id string
}

// ChatbotAttribution installs an empty holder that the chat handler
// fills via SetChatbotID once it has decoded the request. Access logs
// and traces read it after the handler returns.
func ChatbotAttribution(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), chatbotHolderKey, &chatbotHolder{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetChatbotID records the chatbot id for this request's logs and
// traces. A no-op when no holder is installed.
func SetChatbotID(ctx context.Context, chatbotID string) {
	holder, ok := ctx.Value(chatbotHolderKey).(*chatbotHolder)
	if !ok {
		return
	}
	holder.mu.Lock()
	holder.id = chatbotID
	holder.mu.Unlock()
}

// GetChatbotID returns the chatbot ID recorded for this request.
func GetChatbotID(ctx context.Context) string {
	holder, ok := ctx.Value(chatbotHolderKey).(*chatbotHolder)
	if !ok {
		return ""
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return holder.id
}
