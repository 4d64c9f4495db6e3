// Package registry keeps the ledger of ingested documents in Postgres. The
// vector index holds the chunks; the registry answers listing and existence
// questions without touching it.
package registry

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"claimsight/internal/common/errors"
	"claimsight/internal/common/logger"
	"claimsight/internal/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	chunk_count INTEGER NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Registry records which documents have been ingested.
type Registry struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "document-registry"}),
	}
}

// Migrate creates the documents table when it does not exist.
func (r *Registry) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return errors.NewRegistryFailedError(err)
	}
	return nil
}

// Save inserts the record, replacing a previous ingestion of the same id.
func (r *Registry) Save(ctx context.Context, record models.DocumentRecord) error {
	query := `
		INSERT INTO documents (id, filename, content_type, chunk_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			content_type = EXCLUDED.content_type,
			chunk_count = EXCLUDED.chunk_count,
			ingested_at = now()`

	if _, err := r.db.ExecContext(ctx, query, record.DocumentID, record.Filename, record.ContentType, record.ChunkCount); err != nil {
		return errors.NewRegistryFailedError(err)
	}
	return nil
}

// Get returns the record for the document id.
func (r *Registry) Get(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	query := `SELECT id, filename, content_type, chunk_count, ingested_at FROM documents WHERE id = $1`

	var record models.DocumentRecord
	var ingestedAt time.Time
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(
		&record.DocumentID, &record.Filename, &record.ContentType, &record.ChunkCount, &ingestedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewDocumentNotFoundError(documentID)
	}
	if err != nil {
		return nil, errors.NewRegistryFailedError(err)
	}

	record.IngestedAt = ingestedAt.UTC().Format(time.RFC3339)
	return &record, nil
}

// List returns every record, newest first.
func (r *Registry) List(ctx context.Context) ([]models.DocumentRecord, error) {
	query := `SELECT id, filename, content_type, chunk_count, ingested_at FROM documents ORDER BY ingested_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewRegistryFailedError(err)
	}
	defer rows.Close()

	records := []models.DocumentRecord{}
	for rows.Next() {
		var record models.DocumentRecord
		var ingestedAt time.Time
		if err := rows.Scan(&record.DocumentID, &record.Filename, &record.ContentType, &record.ChunkCount, &ingestedAt); err != nil {
			return nil, errors.NewRegistryFailedError(err)
		}
		record.IngestedAt = ingestedAt.UTC().Format(time.RFC3339)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewRegistryFailedError(err)
	}
	return records, nil
}

// Delete removes the record. Deleting an unknown id is not an error.
func (r *Registry) Delete(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return errors.NewRegistryFailedError(err)
	}
	return nil
}

// Count returns the number of registered documents.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, errors.NewRegistryFailedError(err)
	}
	return count, nil
}
