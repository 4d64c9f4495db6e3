package models

// DocumentChunk is a bounded slice of a document's extracted text, stored as
// a retrievable unit. Chunks are created during ingestion and are immutable
// once handed to the vector index.
type DocumentChunk struct {
	ChunkID    string                 `json:"chunk_id"`
	DocumentID string                 `json:"document_id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	Embedding  []float32              `json:"embedding,omitempty"`
}

// RetrievalResult is a chunk returned by a similarity search. The similarity
// score is cosine-based and always at or above the configured threshold.
type RetrievalResult struct {
	ChunkID         string                 `json:"chunk_id"`
	DocumentID      string                 `json:"document_id"`
	Content         string                 `json:"content"`
	SimilarityScore float64                `json:"similarity_score"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// DocumentRecord is the registry entry written after a successful ingestion.
type DocumentRecord struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ChunkCount  int    `json:"chunk_count"`
	IngestedAt  string `json:"ingested_at"`
}
