package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"claimsight/internal/common/logger"
	"claimsight/internal/decision"
	"claimsight/internal/index"
	"claimsight/internal/models"
	"claimsight/internal/queryparser"
	"claimsight/internal/service"
)

type memoryIndex struct {
	chunks  []models.DocumentChunk
	results []models.RetrievalResult
}

func (m *memoryIndex) Add(_ context.Context, chunks []models.DocumentChunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memoryIndex) Search(_ context.Context, _ string, _ int, _ []string) ([]models.RetrievalResult, error) {
	return m.results, nil
}

func (m *memoryIndex) Delete(_ context.Context, documentID string) error {
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *memoryIndex) Count(_ context.Context) (int64, error) { return int64(len(m.chunks)), nil }

func (m *memoryIndex) ListDocumentIDs(_ context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, c := range m.chunks {
		if _, ok := seen[c.DocumentID]; !ok {
			seen[c.DocumentID] = struct{}{}
			ids = append(ids, c.DocumentID)
		}
	}
	return ids, nil
}

func (m *memoryIndex) Close() error { return nil }

type stubGenerator struct{ response string }

func (s *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return s.response, nil
}

func newTestServer(t *testing.T, idx index.Index, generatorResponse string) *Server {
	log := logger.NewZapAdapter(zaptest.NewLogger(t))

	documents := service.NewDocumentService(service.DocumentServiceOptions{
		Index:        idx,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Logger:       log,
	})

	evaluator, err := decision.NewEvaluator(&stubGenerator{response: generatorResponse}, log)
	require.NoError(t, err)

	queries := service.NewQueryService(service.QueryServiceOptions{
		Parser:    queryparser.New(nil, log),
		Index:     idx,
		Evaluator: evaluator,
		TopK:      5,
		Logger:    log,
	})

	return NewServer(ServerOptions{
		Documents:        documents,
		Queries:          queries,
		MaxUploadBytes:   1 << 20,
		BackendAvailable: true,
		Logger:           log,
	})
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	idx := &memoryIndex{}
	server := newTestServer(t, idx, "")

	body, contentType := multipartBody(t, "policy.txt", "Knee surgery is covered up to ₹100,000, network hospitals only.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var record models.DocumentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.NotEmpty(t, record.DocumentID)
	assert.Equal(t, "policy.txt", record.Filename)
	assert.Equal(t, 1, record.ChunkCount)
	assert.Len(t, idx.chunks, 1)
}

func TestUploadDocument_UnsupportedType(t *testing.T) {
	server := newTestServer(t, &memoryIndex{}, "")

	body, contentType := multipartBody(t, "image.png", "binary")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_FILE_TYPE")
}

func TestUploadDocument_MissingFileField(t *testing.T) {
	server := newTestServer(t, &memoryIndex{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocument_TooLarge(t *testing.T) {
	server := newTestServer(t, &memoryIndex{}, "")
	server.maxUploadBytes = 64

	body, contentType := multipartBody(t, "policy.txt", strings.Repeat("a", 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPLOAD_TOO_LARGE")
}

func TestQuery(t *testing.T) {
	idx := &memoryIndex{results: []models.RetrievalResult{
		{
			ChunkID:         "doc-1_chunk_0",
			DocumentID:      "doc-1",
			Content:         "Knee surgery is covered up to ₹100,000, network hospitals only.",
			SimilarityScore: 0.82,
		},
	}}
	server := newTestServer(t, idx, `{
		"decision": "approved",
		"payment_mode": "cashless",
		"justification": "Covered at network hospitals.",
		"source_clauses": ["coverage clause"],
		"confidence_score": 0.9
	}`)

	payload := `{"query": "Is knee surgery covered for a 46-year-old man in Pune?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ProcessingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.DecisionApproved, resp.Decision.Decision)
	assert.NotEmpty(t, resp.Decision.SourceClauses)
	assert.Len(t, resp.RetrievedDocuments, 1)
}

func TestQuery_EmptyQuery(t *testing.T) {
	server := newTestServer(t, &memoryIndex{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query": "  "}`))
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMPTY_QUERY")
}

func TestQuery_MalformedBody(t *testing.T) {
	server := newTestServer(t, &memoryIndex{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteDocuments(t *testing.T) {
	idx := &memoryIndex{}
	server := newTestServer(t, idx, "")
	routes := server.Routes()

	body, contentType := multipartBody(t, "policy.txt", "Knee surgery is covered.")
	upload := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	upload.Header.Set("Content-Type", contentType)
	uploadRec := httptest.NewRecorder()
	routes.ServeHTTP(uploadRec, upload)
	require.Equal(t, http.StatusCreated, uploadRec.Code)

	var record models.DocumentRecord
	require.NoError(t, json.Unmarshal(uploadRec.Body.Bytes(), &record))

	listRec := httptest.NewRecorder()
	routes.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), record.DocumentID)

	deleteRec := httptest.NewRecorder()
	routes.ServeHTTP(deleteRec, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+record.DocumentID, nil))
	assert.Equal(t, http.StatusNoContent, deleteRec.Code)

	afterRec := httptest.NewRecorder()
	routes.ServeHTTP(afterRec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	assert.NotContains(t, afterRec.Body.String(), record.DocumentID)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &memoryIndex{}, "")

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["vector_backend"])
}

func TestHealth_Degraded(t *testing.T) {
	log := logger.NewNoOpLogger()
	documents := service.NewDocumentService(service.DocumentServiceOptions{
		Index:        index.NewUnavailable(log),
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Logger:       log,
	})

	server := NewServer(ServerOptions{
		Documents:        documents,
		BackendAvailable: false,
		Logger:           log,
	})

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, float64(0), health["documents"])
}
