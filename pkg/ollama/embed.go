// Package ollama provides an Ollama-backed text embedding client.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// Client embeds text via Ollama's HTTP API.
type Client struct {
	baseURL string
	model   string
	dims    int
	http    *http.Client
	limiter *rate.Limiter
}

// New creates an Ollama embedding client. dims is the expected vector
// dimension; responses of a different length are rejected. rps <= 0 disables
// rate limiting.
func New(baseURL, model string, dims int, rps float64) *Client {
	c := &Client{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		http:    &http.Client{},
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

// Dims returns the embedding dimension.
func (c *Client) Dims() int { return c.dims }

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Encode embeds a single text.
func (c *Client) Encode(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if c.dims > 0 && len(result.Embedding) != c.dims {
		return nil, fmt.Errorf("ollama embed: got %d dims, want %d", len(result.Embedding), c.dims)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EncodeBatch embeds each text in order. Ollama's embeddings endpoint takes
// one prompt per request, so the batch is a sequential loop behind the same
// rate limiter.
func (c *Client) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
