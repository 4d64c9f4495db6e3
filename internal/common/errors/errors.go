// Package errors provides standardized error handling for the decision pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors fail fast at startup and are not recoverable at
	// request time.
	ErrCodeConfigInvalid      ErrorCode = "CONFIG_INVALID"
	ErrCodeCredentialsMissing ErrorCode = "CREDENTIALS_MISSING"

	// Extraction errors abort a single document's ingestion.
	ErrCodeUnsupportedFileType ErrorCode = "UNSUPPORTED_FILE_TYPE"
	ErrCodeExtractionFailed    ErrorCode = "EXTRACTION_FAILED"

	// Index errors after a successful init propagate to the caller; an
	// unavailable backend at startup degrades to no-op instead.
	ErrCodeIndexWriteFailed  ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeEmbeddingFailed   ErrorCode = "EMBEDDING_FAILED"

	// Evaluation errors are captured inside the evaluator and surfaced
	// through the decision record, never re-raised.
	ErrCodeLLMCallFailed      ErrorCode = "LLM_CALL_FAILED"
	ErrCodeDecisionParseError ErrorCode = "DECISION_PARSE_ERROR"

	// Validation errors reject a request before pipeline entry.
	ErrCodeEmptyQuery       ErrorCode = "EMPTY_QUERY"
	ErrCodeUploadTooLarge   ErrorCode = "UPLOAD_TOO_LARGE"
	ErrCodeRegistryFailed   ErrorCode = "REGISTRY_FAILED"
	ErrCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewConfigInvalidError creates a non-retryable configuration error.
func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCredentialsMissingError creates a non-retryable startup error.
func NewCredentialsMissingError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialsMissing,
		Message:   "Required credential is not set",
		Details:   name,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedFileTypeError creates a non-retryable extraction error.
func NewUnsupportedFileTypeError(extension string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedFileType,
		Message:   "Unsupported file type",
		Details:   fmt.Sprintf("extension: %s", extension),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError creates a non-retryable per-document error
// carrying the original cause.
func NewExtractionFailedError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Document text extraction failed",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexWriteFailedError creates a retryable index write error.
func NewIndexWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexWriteFailed,
		Message:   "Vector index write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Vector similarity search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding provider error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyQueryError rejects a blank query before pipeline entry.
func NewEmptyQueryError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyQuery,
		Message:   "Query must not be empty",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadTooLargeError rejects an oversized upload before pipeline entry.
func NewUploadTooLargeError(size, limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadTooLarge,
		Message:   "Uploaded file exceeds the size limit",
		Details:   fmt.Sprintf("size: %d, limit: %d", size, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryFailedError creates a retryable document registry error.
func NewRegistryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryFailed,
		Message:   "Document registry operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotFoundError creates a non-retryable lookup error.
func NewDocumentNotFoundError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	if se, ok := err.(*StandardError); ok {
		return se.Retryable
	}
	return false
}
