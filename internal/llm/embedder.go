// ABOUTME: Embedder Adapter interface (spec.md section 4.3)
// ABOUTME: Dimension is discovered at startup via Probe and pinned for process lifetime
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harper/sekha/internal/apperr"
)

// Embedder produces a fixed-dimension vector for a text, deterministically
// for a given (text, model). The core never assumes a particular
// dimension — see Probe.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
	// Probe discovers D by embedding a short canonical string once at
	// startup; callers pin the result for the process lifetime.
	Probe(ctx context.Context, model string) (dimension int, err error)
}

// HTTPEmbedder talks to an Ollama-compatible embeddings endpoint (the
// default nomic-embed-text model from spec.md section 6's embedder.model
// key runs behind this shape).
type HTTPEmbedder struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEmbedder(baseURL string) *HTTPEmbedder {
	return &HTTPEmbedder{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (h *HTTPEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	buf, err := json.Marshal(embedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api/embeddings", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.ErrEmbeddingTimeout
		}
		return nil, apperr.Wrap(apperr.KindDependencyUnavailable, "embedder unreachable", apperr.ErrEmbeddingUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperr.ErrEmbeddingUnavailable
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.ErrEmbeddingBadInput
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, apperr.ErrEmbeddingBadInput
	}
	return out.Embedding, nil
}

// Probe embeds a short canonical string to discover the backend's
// dimension without any hardcoded assumption (spec.md section 4.3).
func (h *HTTPEmbedder) Probe(ctx context.Context, model string) (int, error) {
	vec, err := h.Embed(ctx, "dimension probe", model)
	if err != nil {
		return 0, fmt.Errorf("probe embedder dimension: %w", err)
	}
	return len(vec), nil
}
