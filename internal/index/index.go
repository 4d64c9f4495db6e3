// Package index stores document chunks with their embeddings and serves
// similarity search over them. Two backends are supported, Redis with
// RediSearch and Elasticsearch, selected by configuration. When neither
// backend is reachable at startup the pipeline runs against the Unavailable
// variant, which accepts every call and returns nothing.
package index

import (
	"context"

	"claimsight/internal/common/logger"
	"claimsight/internal/models"
)

// Index is the storage contract for chunk embeddings.
type Index interface {
	// Add embeds and indexes the given chunks. Chunks that already carry an
	// embedding are stored as-is.
	Add(ctx context.Context, chunks []models.DocumentChunk) error

	// Search returns up to topK chunks ranked by similarity to the query,
	// restricted to documentIDs when non-empty. Results below the
	// configured similarity threshold are dropped after retrieval.
	Search(ctx context.Context, query string, topK int, documentIDs []string) ([]models.RetrievalResult, error)

	// Delete removes every chunk belonging to the document.
	Delete(ctx context.Context, documentID string) error

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int64, error)

	// ListDocumentIDs returns the distinct document ids present in the index.
	ListDocumentIDs(ctx context.Context) ([]string, error)

	Close() error
}

// Unavailable is the degraded backend used when no store is reachable. Writes
// are dropped, searches come back empty, and nothing returns an error, so the
// rest of the pipeline keeps working and the evaluator reports insufficient
// information instead of failing requests.
type Unavailable struct {
	logger logger.Logger
}

// NewUnavailable returns the degraded no-op index.
func NewUnavailable(log logger.Logger) *Unavailable {
	log.Warn("vector index unavailable, running in degraded mode", nil)
	return &Unavailable{logger: log}
}

func (u *Unavailable) Add(_ context.Context, chunks []models.DocumentChunk) error {
	u.logger.Warn("dropping chunks, vector index unavailable", map[string]interface{}{
		"chunks": len(chunks),
	})
	return nil
}

func (u *Unavailable) Search(_ context.Context, _ string, _ int, _ []string) ([]models.RetrievalResult, error) {
	return []models.RetrievalResult{}, nil
}

func (u *Unavailable) Delete(_ context.Context, _ string) error { return nil }

func (u *Unavailable) Count(_ context.Context) (int64, error) { return 0, nil }

func (u *Unavailable) ListDocumentIDs(_ context.Context) ([]string, error) {
	return []string{}, nil
}

func (u *Unavailable) Close() error { return nil }
