// Package clip provides an HTTP client for a CLIP-style multimodal embedding
// service. The same endpoint embeds either a text string or a PNG image into
// one shared vector space, which is what lets a text query match image points.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Client talks to a CLIP inference server exposing POST /embed.
type Client struct {
	baseURL string
	dims    int
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a CLIP client. rps <= 0 disables rate limiting.
func New(baseURL string, dims int, rps float64) *Client {
	c := &Client{
		baseURL: baseURL,
		dims:    dims,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

// Dims returns the embedding dimension.
func (c *Client) Dims() int { return c.dims }

type embedReq struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64-encoded PNG
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// EncodeText embeds a text string into the image space.
func (c *Client) EncodeText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, embedReq{Text: text})
}

// EncodeImage embeds a decoded image.
func (c *Client) EncodeImage(ctx context.Context, img image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("clip: encode png: %w", err)
	}
	return c.embed(ctx, embedReq{Image: base64.StdEncoding.EncodeToString(buf.Bytes())})
}

func (c *Client) embed(ctx context.Context, payload embedReq) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("clip embed decode: %w", err)
	}
	if c.dims > 0 && len(result.Embedding) != c.dims {
		return nil, fmt.Errorf("clip embed: got %d dims, want %d", len(result.Embedding), c.dims)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
