package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"claimsight/internal/common/errors"
	"claimsight/internal/common/logger"
	"claimsight/internal/llm"
	"claimsight/internal/models"
)

// ElasticsearchOptions configures the Elasticsearch-backed index.
type ElasticsearchOptions struct {
	IndexName           string
	Dimension           int
	SimilarityThreshold float64
}

// ElasticsearchIndex stores chunks in a dense_vector index and serves kNN
// queries with cosine similarity.
type ElasticsearchIndex struct {
	client   *elasticsearch.Client
	embedder llm.Embedder
	opts     ElasticsearchOptions
	logger   logger.Logger

	mu           sync.Mutex
	indexCreated bool
}

// NewElasticsearchIndex builds the index handle. Mapping creation is
// deferred to the first write.
func NewElasticsearchIndex(client *elasticsearch.Client, embedder llm.Embedder, opts ElasticsearchOptions, log logger.Logger) (*ElasticsearchIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}

	return &ElasticsearchIndex{
		client:   client,
		embedder: embedder,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "elasticsearch-index"}),
	}, nil
}

func (e *ElasticsearchIndex) ensureIndex(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexCreated {
		return nil
	}

	existsReq := esapi.IndicesExistsRequest{Index: []string{e.opts.IndexName}}
	res, err := existsReq.Do(ctx, e.client)
	if err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("check index %s: %v", e.opts.IndexName, err))
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		e.indexCreated = true
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"chunk_id":    map[string]interface{}{"type": "keyword"},
				"document_id": map[string]interface{}{"type": "keyword"},
				"content":     map[string]interface{}{"type": "text"},
				"metadata":    map[string]interface{}{"type": "object", "enabled": false},
				"vector": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       e.opts.Dimension,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, _ := json.Marshal(mapping)

	createReq := esapi.IndicesCreateRequest{
		Index: e.opts.IndexName,
		Body:  bytes.NewReader(body),
	}
	res, err = createReq.Do(ctx, e.client)
	if err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("create index %s: %v", e.opts.IndexName, err))
	}
	defer res.Body.Close()
	if res.IsError() {
		// Another writer can win the create between our exists check and
		// this request; that index is as good as ours.
		raw, _ := io.ReadAll(res.Body)
		if !strings.Contains(string(raw), "resource_already_exists_exception") {
			return errors.NewIndexWriteFailedError(fmt.Errorf("create index %s: %s", e.opts.IndexName, string(raw)))
		}
	}

	e.indexCreated = true
	return nil
}

// Add embeds chunks that lack a vector and bulk-indexes all of them.
func (e *ElasticsearchIndex) Add(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := e.ensureIndex(ctx); err != nil {
		return err
	}

	if err := embedMissing(ctx, e.embedder, chunks); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, chunk := range chunks {
		action := map[string]interface{}{
			"index": map[string]interface{}{"_index": e.opts.IndexName, "_id": chunk.ChunkID},
		}
		doc := map[string]interface{}{
			"chunk_id":    chunk.ChunkID,
			"document_id": chunk.DocumentID,
			"content":     chunk.Content,
			"metadata":    chunk.Metadata,
			"vector":      chunk.Embedding,
		}
		actionLine, _ := json.Marshal(action)
		docLine, err := json.Marshal(doc)
		if err != nil {
			return errors.NewIndexWriteFailedError(fmt.Errorf("encode chunk %s: %v", chunk.ChunkID, err))
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: "true"}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("bulk index %d chunks: %v", len(chunks), err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewIndexWriteFailedError(fmt.Errorf("bulk index: %s", res.String()))
	}

	e.logger.Debug("indexed chunks", map[string]interface{}{"count": len(chunks)})
	return nil
}

// Search runs a kNN query filtered by document id when requested. The
// Elasticsearch cosine score is (1+cos)/2, normalized back to plain cosine
// similarity before the threshold filter so both backends rank on the same
// scale.
func (e *ElasticsearchIndex) Search(ctx context.Context, query string, topK int, documentIDs []string) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewEmptyQueryError()
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	vectors, err := e.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   vectors[0],
		"k":              topK,
		"num_candidates": topK * 10,
	}
	if len(documentIDs) > 0 {
		knn["filter"] = map[string]interface{}{
			"terms": map[string]interface{}{"document_id": documentIDs},
		}
	}

	searchBody := map[string]interface{}{
		"knn":     knn,
		"size":    topK,
		"_source": []string{"chunk_id", "document_id", "content", "metadata"},
	}
	body, _ := json.Marshal(searchBody)

	req := esapi.SearchRequest{
		Index: []string{e.opts.IndexName},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("knn search: %v", err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("knn search: %s", res.String()))
	}

	return e.parseSearchResponse(res.Body)
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				ChunkID    string                 `json:"chunk_id"`
				DocumentID string                 `json:"document_id"`
				Content    string                 `json:"content"`
				Metadata   map[string]interface{} `json:"metadata"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticsearchIndex) parseSearchResponse(body io.Reader) ([]models.RetrievalResult, error) {
	var parsed esSearchResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("decode search response: %v", err))
	}

	results := []models.RetrievalResult{}
	for _, hit := range parsed.Hits.Hits {
		similarity := 2*hit.Score - 1
		if similarity < e.opts.SimilarityThreshold {
			continue
		}
		results = append(results, models.RetrievalResult{
			ChunkID:         hit.Source.ChunkID,
			DocumentID:      hit.Source.DocumentID,
			Content:         hit.Source.Content,
			SimilarityScore: similarity,
			Metadata:        hit.Source.Metadata,
		})
	}
	return results, nil
}

// Delete removes every chunk of the document with a delete-by-query.
func (e *ElasticsearchIndex) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document id cannot be empty")
	}

	body := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:   []string{e.opts.IndexName},
		Body:    strings.NewReader(body),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("delete document %s: %v", documentID, err))
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return errors.NewIndexWriteFailedError(fmt.Errorf("delete document %s: %s", documentID, res.String()))
	}
	return nil
}

// Count returns the number of indexed chunks.
func (e *ElasticsearchIndex) Count(ctx context.Context) (int64, error) {
	req := esapi.CountRequest{Index: []string{e.opts.IndexName}}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return 0, errors.NewSearchQueryFailedError(fmt.Errorf("count: %v", err))
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return 0, nil
	}
	if res.IsError() {
		return 0, errors.NewSearchQueryFailedError(fmt.Errorf("count: %s", res.String()))
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, errors.NewSearchQueryFailedError(fmt.Errorf("decode count response: %v", err))
	}
	return parsed.Count, nil
}

// ListDocumentIDs aggregates distinct document ids.
func (e *ElasticsearchIndex) ListDocumentIDs(ctx context.Context) ([]string, error) {
	body := `{"size":0,"aggs":{"documents":{"terms":{"field":"document_id","size":10000}}}}`
	req := esapi.SearchRequest{
		Index: []string{e.opts.IndexName},
		Body:  strings.NewReader(body),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("list documents: %v", err))
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return []string{}, nil
	}
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("list documents: %s", res.String()))
	}

	var parsed struct {
		Aggregations struct {
			Documents struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"documents"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("decode aggregation response: %v", err))
	}

	ids := make([]string, 0, len(parsed.Aggregations.Documents.Buckets))
	for _, bucket := range parsed.Aggregations.Documents.Buckets {
		ids = append(ids, bucket.Key)
	}
	return ids, nil
}

// Close is a no-op; the underlying HTTP transport needs no teardown.
func (e *ElasticsearchIndex) Close() error { return nil }
