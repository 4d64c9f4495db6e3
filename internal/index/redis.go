package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"claimsight/internal/common/errors"
	"claimsight/internal/common/logger"
	"claimsight/internal/llm"
	"claimsight/internal/models"
)

const (
	fieldChunkID    = "chunk_id"
	fieldDocumentID = "document_id"
	fieldContent    = "content"
	fieldVector     = "vector"
	fieldMetadata   = "metadata"

	scoreAlias = "score"

	maxTopK = 100
)

// RedisOptions configures the RediSearch-backed index.
type RedisOptions struct {
	IndexName           string
	KeyPrefix           string
	Dimension           int
	EFConstruction      int
	M                   int
	SimilarityThreshold float64
}

// RedisIndex stores chunk embeddings as Redis hashes behind a RediSearch
// HNSW index with cosine distance.
type RedisIndex struct {
	client       *redis.Client
	embedder     llm.Embedder
	opts         RedisOptions
	logger       logger.Logger
	indexCreated bool
	mu           sync.Mutex
}

// NewRedisIndex builds the index handle. The FT index itself is created
// lazily on first write so that a read-only deployment never issues
// FT.CREATE.
func NewRedisIndex(client *redis.Client, embedder llm.Embedder, opts RedisOptions, log logger.Logger) (*RedisIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}
	if opts.EFConstruction <= 0 {
		opts.EFConstruction = 200
	}
	if opts.M <= 0 {
		opts.M = 16
	}

	return &RedisIndex{
		client:   client,
		embedder: embedder,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "redis-index"}),
	}, nil
}

// ensureIndex creates the HNSW index if it does not exist yet.
func (r *RedisIndex) ensureIndex(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexCreated {
		return nil
	}

	if _, err := r.client.Do(ctx, "FT.INFO", r.opts.IndexName).Result(); err == nil {
		r.indexCreated = true
		return nil
	}

	_, err := r.client.Do(ctx, "FT.CREATE", r.opts.IndexName,
		"ON", "HASH",
		"PREFIX", "1", r.opts.KeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.opts.Dimension),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(r.opts.EFConstruction),
		"M", strconv.Itoa(r.opts.M),
		fieldChunkID, "TAG",
		fieldDocumentID, "TAG",
		fieldContent, "TEXT",
	).Result()
	if err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("create index %s: %v", r.opts.IndexName, err))
	}

	r.indexCreated = true
	return nil
}

// Add embeds the chunks that lack an embedding and writes all of them in a
// single pipeline.
func (r *RedisIndex) Add(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := r.ensureIndex(ctx); err != nil {
		return err
	}

	if err := embedMissing(ctx, r.embedder, chunks); err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return errors.NewIndexWriteFailedError(fmt.Errorf("encode metadata for %s: %v", chunk.ChunkID, err))
		}

		pipe.HSet(ctx, r.opts.KeyPrefix+chunk.ChunkID,
			fieldChunkID, chunk.ChunkID,
			fieldDocumentID, escapeTag(chunk.DocumentID),
			fieldContent, chunk.Content,
			fieldVector, encodeVector(chunk.Embedding),
			fieldMetadata, metadataJSON,
		)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("write %d chunks: %v", len(chunks), err))
	}

	r.logger.Debug("indexed chunks", map[string]interface{}{"count": len(chunks)})
	return nil
}

// Search runs a KNN query, optionally prefiltered by document id tags, and
// drops results whose cosine similarity falls below the threshold.
func (r *RedisIndex) Search(ctx context.Context, query string, topK int, documentIDs []string) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewEmptyQueryError()
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	prefilter := "*"
	if len(documentIDs) > 0 {
		escaped := make([]string, len(documentIDs))
		for i, id := range documentIDs {
			escaped[i] = escapeTag(id)
		}
		prefilter = fmt.Sprintf("(@%s:{%s})", fieldDocumentID, strings.Join(escaped, "|"))
	}
	queryStr := fmt.Sprintf("%s=>[KNN %d @%s $query_vector AS %s]", prefilter, topK, fieldVector, scoreAlias)

	raw, err := r.client.Do(ctx, "FT.SEARCH", r.opts.IndexName, queryStr,
		"PARAMS", "2", "query_vector", encodeVector(vectors[0]),
		"RETURN", "5", fieldChunkID, fieldDocumentID, fieldContent, fieldMetadata, scoreAlias,
		"SORTBY", scoreAlias,
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("knn search: %v", err))
	}

	return r.parseSearchResults(raw)
}

// parseSearchResults decodes the flat FT.SEARCH reply: a count followed by
// alternating key and field-value pairs.
func (r *RedisIndex) parseSearchResults(raw interface{}) ([]models.RetrievalResult, error) {
	values, ok := raw.([]interface{})
	if !ok {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("unexpected search reply format"))
	}

	results := []models.RetrievalResult{}
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}

		var res models.RetrievalResult
		similarity := -1.0
		for j := 0; j+1 < len(fields); j += 2 {
			name, ok := fields[j].(string)
			if !ok {
				continue
			}
			value, ok := fields[j+1].(string)
			if !ok {
				continue
			}

			switch name {
			case fieldChunkID:
				res.ChunkID = value
			case fieldDocumentID:
				res.DocumentID = unescapeTag(value)
			case fieldContent:
				res.Content = value
			case fieldMetadata:
				_ = json.Unmarshal([]byte(value), &res.Metadata)
			case scoreAlias:
				// RediSearch reports cosine distance; similarity is its
				// complement.
				if dist, err := strconv.ParseFloat(value, 64); err == nil {
					similarity = 1.0 - dist
				}
			}
		}

		if similarity < r.opts.SimilarityThreshold {
			continue
		}
		res.SimilarityScore = similarity
		results = append(results, res)
	}

	return results, nil
}

// Delete removes every chunk keyed under the document.
func (r *RedisIndex) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document id cannot be empty")
	}

	raw, err := r.client.Do(ctx, "FT.SEARCH", r.opts.IndexName,
		fmt.Sprintf("@%s:{%s}", fieldDocumentID, escapeTag(documentID)),
		"NOCONTENT",
		"LIMIT", "0", "10000",
	).Result()
	if err != nil {
		return errors.NewSearchQueryFailedError(fmt.Errorf("find chunks for %s: %v", documentID, err))
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) < 2 {
		return nil
	}

	keys := make([]string, 0, len(values)/2)
	for i := 1; i < len(values); i++ {
		if key, ok := values[i].(string); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.NewIndexWriteFailedError(fmt.Errorf("delete %d chunks: %v", len(keys), err))
	}
	return nil
}

// Count reads num_docs from FT.INFO.
func (r *RedisIndex) Count(ctx context.Context) (int64, error) {
	info, err := r.client.Do(ctx, "FT.INFO", r.opts.IndexName).Result()
	if err != nil {
		// A missing index means nothing has been written yet.
		if isUnknownIndex(err) {
			return 0, nil
		}
		return 0, errors.NewSearchQueryFailedError(fmt.Errorf("read index info: %v", err))
	}

	values, ok := info.([]interface{})
	if !ok {
		return 0, errors.NewSearchQueryFailedError(fmt.Errorf("unexpected FT.INFO reply format"))
	}

	for i := 0; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok || key != "num_docs" {
			continue
		}
		switch v := values[i+1].(type) {
		case int64:
			return v, nil
		case string:
			n, _ := strconv.ParseInt(v, 10, 64)
			return n, nil
		}
	}
	return 0, nil
}

// ListDocumentIDs scans the index and collects distinct document ids.
func (r *RedisIndex) ListDocumentIDs(ctx context.Context) ([]string, error) {
	raw, err := r.client.Do(ctx, "FT.SEARCH", r.opts.IndexName, "*",
		"RETURN", "1", fieldDocumentID,
		"LIMIT", "0", "10000",
	).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return []string{}, nil
		}
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("list documents: %v", err))
	}

	values, ok := raw.([]interface{})
	if !ok {
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	ids := []string{}
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}
		for j := 0; j+1 < len(fields); j += 2 {
			if name, _ := fields[j].(string); name != fieldDocumentID {
				continue
			}
			if id, ok := fields[j+1].(string); ok {
				id = unescapeTag(id)
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

func (r *RedisIndex) Close() error {
	return r.client.Close()
}

// isUnknownIndex matches the RediSearch replies for an index that has not
// been created yet ("Unknown index name" on FT.INFO, "no such index" on
// FT.SEARCH).
func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// embedMissing fills in embeddings for chunks that do not carry one yet.
func embedMissing(ctx context.Context, embedder llm.Embedder, chunks []models.DocumentChunk) error {
	var texts []string
	var positions []int
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			texts = append(texts, chunk.Content)
			positions = append(positions, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return err
	}
	for i, pos := range positions {
		chunks[pos].Embedding = vectors[i]
	}
	return nil
}

// encodeVector packs float32 values as little-endian bytes, the layout
// RediSearch expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeTag escapes the separator characters RediSearch treats specially in
// TAG values.
func escapeTag(s string) string {
	replacer := strings.NewReplacer(",", "\\,", ".", "\\.", " ", "\\ ", "-", "\\-")
	return replacer.Replace(s)
}

func unescapeTag(s string) string {
	replacer := strings.NewReplacer("\\,", ",", "\\.", ".", "\\ ", " ", "\\-", "-")
	return replacer.Replace(s)
}
