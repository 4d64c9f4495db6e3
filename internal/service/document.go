// Package service holds the two pipeline orchestrations: document ingestion
// and query processing.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"claimsight/internal/chunker"
	"claimsight/internal/common/logger"
	"claimsight/internal/common/observability"
	"claimsight/internal/extractor"
	"claimsight/internal/index"
	"claimsight/internal/models"
)

// DocumentRegistry is the subset of the registry the services need.
// Satisfied by registry.Registry; nil-able when Postgres is not configured.
type DocumentRegistry interface {
	Save(ctx context.Context, record models.DocumentRecord) error
	Get(ctx context.Context, documentID string) (*models.DocumentRecord, error)
	List(ctx context.Context) ([]models.DocumentRecord, error)
	Delete(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int64, error)
}

// DocumentService runs the ingestion pipeline: extract, chunk, index,
// record.
type DocumentService struct {
	index        index.Index
	registry     DocumentRegistry
	chunkSize    int
	chunkOverlap int
	metrics      *observability.Observability
	tracing      *observability.Tracing
	logger       logger.Logger
}

type DocumentServiceOptions struct {
	Index        index.Index
	Registry     DocumentRegistry
	ChunkSize    int
	ChunkOverlap int
	Metrics      *observability.Observability
	Tracing      *observability.Tracing
	Logger       logger.Logger
}

func NewDocumentService(opts DocumentServiceOptions) *DocumentService {
	return &DocumentService{
		index:        opts.Index,
		registry:     opts.Registry,
		chunkSize:    opts.ChunkSize,
		chunkOverlap: opts.ChunkOverlap,
		metrics:      opts.Metrics,
		tracing:      opts.Tracing,
		logger:       opts.Logger.WithFields(map[string]interface{}{"component": "document-service"}),
	}
}

// Ingest runs one file through the pipeline and returns its registry record.
// Any stage failure aborts this document; nothing written to the index is
// rolled back.
func (s *DocumentService) Ingest(ctx context.Context, filename string, data []byte) (*models.DocumentRecord, error) {
	start := time.Now()
	if s.tracing != nil {
		var span trace.Span
		ctx, span = s.tracing.StartSpan(ctx, "document.ingest")
		defer span.End()
	}

	ext, err := extractor.ForFile(filename)
	if err != nil {
		s.recordIngest(ctx, start, "rejected", 0)
		return nil, err
	}

	text, err := ext.Extract(ctx, data, filename)
	if err != nil {
		s.recordIngest(ctx, start, "failed", 0)
		return nil, err
	}

	documentID := uuid.New().String()

	chunks, err := chunker.Split(text, documentID, s.chunkSize, s.chunkOverlap)
	if err != nil {
		s.recordIngest(ctx, start, "failed", 0)
		return nil, err
	}

	for i := range chunks {
		chunks[i].Metadata["document_id"] = documentID
		chunks[i].Metadata["original_filename"] = filename
		chunks[i].Metadata["content_type"] = ext.ContentType()
	}

	if err := s.index.Add(ctx, chunks); err != nil {
		s.recordIngest(ctx, start, "failed", 0)
		return nil, err
	}

	record := models.DocumentRecord{
		DocumentID:  documentID,
		Filename:    filename,
		ContentType: ext.ContentType(),
		ChunkCount:  len(chunks),
		IngestedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	// The chunks are already searchable; a ledger failure is logged, not
	// rolled back.
	if s.registry != nil {
		if err := s.registry.Save(ctx, record); err != nil {
			s.logger.Error("registry save failed after index write", map[string]interface{}{
				"documentId": documentID,
				"error":      err.Error(),
			})
		}
	}

	s.recordIngest(ctx, start, "ok", len(chunks))
	s.logger.Info("document ingested", map[string]interface{}{
		"documentId": documentID,
		"filename":   filename,
		"chunks":     len(chunks),
	})
	return &record, nil
}

// List returns the registry view of ingested documents. Without a registry
// it falls back to the distinct ids present in the index.
func (s *DocumentService) List(ctx context.Context) ([]models.DocumentRecord, error) {
	if s.registry != nil {
		return s.registry.List(ctx)
	}

	ids, err := s.index.ListDocumentIDs(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]models.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.DocumentRecord{DocumentID: id})
	}
	return records, nil
}

// Delete removes the document's chunks and its registry record.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if err := s.index.Delete(ctx, documentID); err != nil {
		return err
	}
	if s.registry != nil {
		if err := s.registry.Delete(ctx, documentID); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of ingested documents.
func (s *DocumentService) Count(ctx context.Context) (int64, error) {
	if s.registry != nil {
		return s.registry.Count(ctx)
	}
	ids, err := s.index.ListDocumentIDs(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (s *DocumentService) recordIngest(ctx context.Context, start time.Time, status string, chunks int) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDocumentIngested(ctx, status, chunks)
	s.metrics.RecordIngestDuration(ctx, time.Since(start), status)
}
