// Package openai implements a minimal client for the OpenAI embeddings
// and chat completions APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalog-sync-service/internal/clients"
)

// ErrMissingAPIKey is returned when the client is constructed without a
// key. Callers degrade gracefully: products stay searchable by text,
// they just never get embeddings.
var ErrMissingAPIKey = errors.New("openai: API key not configured")

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retrier    *clients.Retrier
}

// NewClient creates a new OpenAI client. baseURL is overridable for
// tests and proxies; empty means the public API.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		retrier:    clients.NewRetrier(clients.DefaultRetryConfig()),
	}
}

// Configured reports whether the client has an API key
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed computes embeddings for the given inputs with the given model.
// The result preserves input order.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	body, err := c.post(ctx, "/embeddings", embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(inputs), len(parsed.Data))
	}

	out := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Message is a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete runs a chat completion and returns the first choice's content
func (c *Client) Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}

	body, err := c.post(ctx, "/chat/completions", completionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, result := c.retrier.DoHTTP(ctx, "openai"+path, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if resp == nil {
		return nil, fmt.Errorf("openai request failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading openai response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
