package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mentora-labs/mentora/internal/api"
	"github.com/mentora-labs/mentora/internal/domain"
)

// DocumentReader resolves uploaded documents by id.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DownloadURLSigner produces short-lived download links for stored
// objects.
type DownloadURLSigner interface {
	GenerateDownloadURL(ctx context.Context, storageKey string) (string, error)
}

type DocumentHandler struct {
	documents DocumentReader
	signer    DownloadURLSigner
}

func NewDocumentHandler(documents DocumentReader, signer DownloadURLSigner) *DocumentHandler {
	return &DocumentHandler{documents: documents, signer: signer}
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
	Name        string `json:"name"`
}

// GetDownloadURL handles GET /documents/{id}/download, turning a cited
// document into a presigned object URL.
func (h *DocumentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.documents.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	url, err := h.signer.GenerateDownloadURL(r.Context(), doc.StorageKey)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to generate download url")
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{
		DownloadURL: url,
		Name:        doc.Name,
	})
}
