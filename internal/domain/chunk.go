package domain

import "time"

// DocumentChunk is a pre-chunked, pre-embedded slice of an uploaded
// tenant document. Similarity is computed per query and never stored.
type DocumentChunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	ChatbotID    string
	ChunkIndex   int
	Content      string
	Embedding    []float32
	Similarity   float32
	CreatedAt    time.Time
}

// Document is the uploaded source file a chunk belongs to. The core
// reads it only to resolve citations back to the original object.
type Document struct {
	ID         string
	ChatbotID  string
	Name       string
	StorageKey string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
