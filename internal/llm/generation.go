package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"claimsight/internal/common/config"
)

// ChatClient calls an OpenAI-compatible /chat/completions endpoint. With
// JSONMode enabled the provider is asked for a pure-JSON body via
// response_format, which Groq and OpenAI both honour.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	jsonMode    bool
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewChatClient creates a chat completions client from provider config.
func NewChatClient(cfg config.GenerationProviderConfig) *ChatClient {
	return &ChatClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		jsonMode:    cfg.JSONMode,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate sends the system/user prompt pair and returns the first choice's
// message content. Single-shot, no retry loop.
func (c *ChatClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	requestBody := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
	}
	if c.maxTokens > 0 {
		requestBody["max_tokens"] = c.maxTokens
	}
	if c.temperature > 0 {
		requestBody["temperature"] = c.temperature
	}
	if c.jsonMode {
		requestBody["response_format"] = map[string]string{"type": "json_object"}
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat request failed: status %d: %s", resp.StatusCode, payload)
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	return apiResponse.Choices[0].Message.Content, nil
}
