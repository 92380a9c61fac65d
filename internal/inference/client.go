package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scriptcheck/internal/config"
	"scriptcheck/internal/services"
)

// Embedder is the embedding collaborator: given audio clips it returns one
// fixed-dimension speaker-embedding vector per clip, in input order.
type Embedder interface {
	Embed(ctx context.Context, clips [][]byte) ([][]float64, error)
}

// Client calls the embedding service over HTTP. One Embed call is one
// request; callers bound the batch size.
type Client struct {
	endpoint   string
	forceCPU   bool
	httpClient *http.Client
}

var _ Embedder = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds an embedding client from configuration.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Inference.Endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "inference", "connect", "embedding endpoint required", nil)
	}
	client := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		forceCPU:   cfg.Inference.ForceCPU,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Inference.TimeoutSeconds) * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type embedRequest struct {
	Clips    []string `json:"clips"`
	ForceCPU bool     `json:"force_cpu"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed sends one batch of WAV clips and returns their embedding vectors in
// input order.
func (c *Client) Embed(ctx context.Context, clips [][]byte) ([][]float64, error) {
	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrValidation, "inference", "embed", "no clips to embed", nil)
	}

	payload := embedRequest{
		Clips:    make([]string, len(clips)),
		ForceCPU: c.forceCPU,
	}
	for i, clip := range clips {
		payload.Clips[i] = base64.StdEncoding.EncodeToString(clip)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "inference", "embed", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "inference", "embed", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "inference", "embed",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	var decoded embedResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return nil, services.Wrap(services.ErrInference, "inference", "embed", "decode response", decodeErr)
	}

	if resp.StatusCode != http.StatusOK {
		detail := decoded.Error
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		// Both corrupt audio and resource exhaustion surface here; the
		// inference kind keeps them retryable up to the delivery budget.
		return nil, services.Wrap(services.ErrInference, "inference", "embed",
			fmt.Sprintf("embedding service returned %d: %s (latency=%v)", resp.StatusCode, detail, latency), nil)
	}

	if len(decoded.Embeddings) != len(clips) {
		return nil, services.Wrap(services.ErrInference, "inference", "embed",
			fmt.Sprintf("sent %d clips, got %d embeddings", len(clips), len(decoded.Embeddings)), nil)
	}
	return decoded.Embeddings, nil
}
