// Package chunker splits extracted document text into overlapping segments,
// preferring sentence and line boundaries over raw character cuts.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"claimsight/internal/models"
)

// ErrChunkGeometry is returned when the overlap does not leave room for
// forward progress. This is a configuration error and must fail fast.
var ErrChunkGeometry = errors.New("chunk overlap must be strictly less than chunk size")

// Split cuts text into ordered, overlapping chunks of at most size
// characters. The window advances by size-overlap, so overlap >= size would
// never terminate and is rejected up front. When a window's right edge falls
// short of the end of text, the cut is moved back to the last sentence
// terminator or line break, but only when that break point lies past the
// midpoint of the window; worst-case chunk length stays bounded by size.
func Split(text, documentID string, size, overlap int) ([]models.DocumentChunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, ErrChunkGeometry)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap %d with chunk size %d: %w", overlap, size, ErrChunkGeometry)
	}

	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return []models.DocumentChunk{}, nil
	}

	var chunks []models.DocumentChunk
	start := 0
	index := 0

	for start < len(runes) {
		end := start + size
		if end < len(runes) {
			// Prefer cutting at the last sentence terminator or line
			// break inside the window, when it sits past the midpoint.
			if cut := lastBreak(runes[start:end]); cut > size/2 && cut >= overlap {
				end = start + cut + 1
			}
		}

		sliceEnd := end
		if sliceEnd > len(runes) {
			sliceEnd = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:sliceEnd]))
		if content != "" {
			chunks = append(chunks, models.DocumentChunk{
				ChunkID:    fmt.Sprintf("%s_chunk_%d", documentID, index),
				DocumentID: documentID,
				Content:    content,
				Metadata: map[string]interface{}{
					"chunk_index":    index,
					"start_position": start,
					"end_position":   sliceEnd,
				},
			})
			index++
		}

		start = end - overlap
	}

	return chunks, nil
}

// lastBreak returns the index of the last sentence terminator or newline in
// window, or -1 if none is present.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}
