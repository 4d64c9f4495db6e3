// Package api exposes the HTTP surface: document upload and management,
// query processing, and the health probe.
package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"claimsight/internal/common/errors"
	"claimsight/internal/common/logger"
	"claimsight/internal/models"
	"claimsight/internal/service"
)

// Server wires the HTTP handlers to the services.
type Server struct {
	documents        *service.DocumentService
	queries          *service.QueryService
	maxUploadBytes   int64
	backendAvailable bool
	logger           logger.Logger
}

type ServerOptions struct {
	Documents        *service.DocumentService
	Queries          *service.QueryService
	MaxUploadBytes   int64
	BackendAvailable bool
	Logger           logger.Logger
}

func NewServer(opts ServerOptions) *Server {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Server{
		documents:        opts.Documents,
		queries:          opts.Queries,
		maxUploadBytes:   maxUpload,
		backendAvailable: opts.BackendAvailable,
		logger:           opts.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Routes returns the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, errors.NewUploadTooLargeError(r.ContentLength, s.maxUploadBytes))
			return
		}
		s.writeStatus(w, http.StatusBadRequest, "multipart file field %q is required", "file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, errors.NewUploadTooLargeError(r.ContentLength, s.maxUploadBytes))
			return
		}
		s.writeStatus(w, http.StatusBadRequest, "read upload: %v", err)
		return
	}

	record, err := s.documents.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	records, err := s.documents.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": records,
		"count":     len(records),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if documentID == "" {
		s.writeStatus(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := s.documents.Delete(r.Context(), documentID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "decode request: %v", err)
		return
	}

	resp, err := s.queries.Process(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.backendAvailable {
		status = "degraded"
	}

	count, err := s.documents.Count(r.Context())
	if err != nil {
		count = 0
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"vector_backend": s.backendAvailable,
		"documents":      count,
	})
}

// statusForCode maps the error taxonomy to HTTP status codes.
func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeEmptyQuery:
		return http.StatusBadRequest
	case errors.ErrCodeUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeExtractionFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeDocumentNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		s.writeJSON(w, statusForCode(stdErr.Code), map[string]interface{}{
			"error":     stdErr.Code,
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		})
		return
	}

	s.logger.Error("request failed", map[string]interface{}{"error": err.Error()})
	s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": err.Error(),
	})
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, format string, args ...interface{}) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": fmt.Sprintf(format, args...),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response failed", map[string]interface{}{"error": err.Error()})
	}
}
