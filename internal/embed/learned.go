package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// LearnedEmbedder delegates to an external embedding service over HTTP,
// POSTing a batch of texts and expecting back one vector per text. This is
// the "onnx" backend: the name in config and model labels, not a literal
// binding to the ONNX runtime — riftindex never links a model runtime in
// process, it calls out to one.
type LearnedEmbedder struct {
	client *http.Client
	url    string
	model  string
	dim    int

	mu     sync.RWMutex
	closed bool
}

// learnedRequest is the wire shape POSTed to the embedding service.
type learnedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

// learnedResponse is the wire shape expected back.
type learnedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewLearnedEmbedder creates an HTTP-backed embedder. dim is the target
// dimension: vectors returned by the service are truncated or zero-padded
// to it before normalization, so a mismatched model never corrupts the
// store's fixed-width vector columns.
func NewLearnedEmbedder(url, model string, dim int) *LearnedEmbedder {
	return &LearnedEmbedder{
		client: &http.Client{Timeout: 60 * time.Second},
		url:    url,
		model:  model,
		dim:    dim,
	}
}

// Embed embeds a single text via EmbedBatch.
func (e *LearnedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch posts every text in one request and normalizes each returned
// vector to this embedder's configured dimension.
func (e *LearnedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("learned embedder is closed")
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(learnedRequest{Model: e.model, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed learnedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, v := range parsed.Embeddings {
		out[i] = normalizeVector(resizeVector(v, e.dim))
	}
	return out, nil
}

// Dimensions returns the configured target dimension.
func (e *LearnedEmbedder) Dimensions() int { return e.dim }

// ModelName returns the model label persisted with each embedding.
func (e *LearnedEmbedder) ModelName() string { return e.model }

// Close releases the HTTP client's idle connections.
func (e *LearnedEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}

// Ping checks the service is reachable, used by the "auto" backend
// selector to decide whether to prefer the learned embedder.
func (e *LearnedEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader([]byte(`{"model":"","texts":[]}`)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("embedding service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
