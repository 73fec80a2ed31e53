package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingChatbotID  = NewDomainError(ErrCodeValidation, "chatbotId is required")
	ErrMissingMessage    = NewDomainError(ErrCodeValidation, "message is required")
	ErrMissingVisitorID  = NewDomainError(ErrCodeValidation, "visitorId is required")
	ErrInvalidIndustry   = NewDomainError(ErrCodeValidation, "invalid industry")
	ErrInvalidRole       = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidConfidence = NewDomainError(ErrCodeValidation, "confidence must be between 0 and 1")
)

// Not found errors
var (
	ErrChatbotNotFound      = NewDomainError(ErrCodeNotFound, "chatbot not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrQuotaNotFound        = NewDomainError(ErrCodeNotFound, "usage quota not found")
)

// Authorization errors
var (
	ErrChatbotInactive  = NewDomainError(ErrCodeForbidden, "chatbot is not active")
	ErrOriginNotAllowed = NewDomainError(ErrCodeForbidden, "origin is not allowed")
	ErrQuotaExceeded    = NewDomainError(ErrCodeForbidden, "conversation quota exceeded")
)

// Upstream errors
var (
	ErrEmbeddingFailed  = NewDomainError(ErrCodeUpstream, "embedding provider request failed")
	ErrCompletionFailed = NewDomainError(ErrCodeUpstream, "completion provider request failed")
)
