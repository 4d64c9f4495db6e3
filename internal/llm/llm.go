// Package llm holds the clients for the external embedding and generation
// services. Both speak the OpenAI-compatible HTTP API so the same clients
// cover OpenAI, Groq and self-hosted gateways.
package llm

import "context"

// Embedder converts texts into fixed-dimension vectors.
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
