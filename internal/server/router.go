package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mentora-labs/mentora/internal/api"
	"github.com/mentora-labs/mentora/internal/api/handlers"
	"github.com/mentora-labs/mentora/internal/api/middleware"
)

type RouterConfig struct {
	ChatHandler     *handlers.ChatHandler
	DocumentHandler *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Visitor messages are short; anything larger is abuse.
	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.ChatbotAttribution)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/chat", cfg.ChatHandler.Answer)
	r.Options("/chat", cfg.ChatHandler.Preflight)

	if cfg.DocumentHandler != nil {
		r.Get("/documents/{id}/download", cfg.DocumentHandler.GetDownloadURL)
	}

	return r
}
