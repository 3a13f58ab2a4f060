// ABOUTME: Summarizer Adapter interface (spec.md section 4.4)
// ABOUTME: Deterministic structured output; never streams into the core
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

type LabelSuggestion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type ImportanceResult struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Summarizer produces the three advisory outputs spec.md section 4.4
// names. All three are advisory: SummarizerBadOutput never becomes a hard
// error to the caller, only a warning (spec.md section 7).
type Summarizer interface {
	Summarize(ctx context.Context, prompt, transcript string) (summary string, err error)
	SuggestLabels(ctx context.Context, transcript string) ([]LabelSuggestion, error)
	ScoreImportance(ctx context.Context, transcript string) (ImportanceResult, error)
}

// HTTPSummarizer talks to an Ollama-compatible chat-completion endpoint,
// grounded on the teacher's structured-JSON-extraction-with-retry pattern
// (internal/llm/openai_client.go ExtractMetadata/ExtractFacts).
type HTTPSummarizer struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPSummarizer(baseURL, model string) *HTTPSummarizer {
	return &HTTPSummarizer{baseURL: baseURL, model: model, client: &http.Client{Timeout: 60 * time.Second}}
}

type chatRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *HTTPSummarizer) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	req := chatRequest{Model: s.model, Prompt: prompt, Stream: false}
	if jsonMode {
		req.Format = "json"
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal summarizer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("build summarizer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", apperr.ErrSummarizerUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", apperr.ErrSummarizerUnavailable
	}
	if resp.StatusCode >= 400 {
		return "", apperr.ErrSummarizerBadOutput
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.ErrSummarizerBadOutput
	}
	return out.Response, nil
}

func (s *HTTPSummarizer) Summarize(ctx context.Context, prompt, transcript string) (string, error) {
	full := fmt.Sprintf("%s\n\nTranscript:\n%s", prompt, transcript)
	return s.generate(ctx, full, false)
}

func (s *HTTPSummarizer) SuggestLabels(ctx context.Context, transcript string) ([]LabelSuggestion, error) {
	prompt := `Suggest up to 5 short topic labels for this conversation, each with a confidence 0-1.
Return ONLY a JSON array of objects with fields "label" and "confidence".

Conversation:
` + transcript

	raw, err := s.generate(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	var labels []LabelSuggestion
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil, apperr.ErrSummarizerBadOutput
	}
	if len(labels) > 5 {
		labels = labels[:5]
	}
	return labels, nil
}

func (s *HTTPSummarizer) ScoreImportance(ctx context.Context, transcript string) (ImportanceResult, error) {
	prompt := `Score this conversation's long-term importance from 1 (forgettable) to 10 (critical), with a one-sentence reason.
Return ONLY a JSON object with fields "score" (integer) and "reason" (string).

Conversation:
` + transcript

	raw, err := s.generate(ctx, prompt, true)
	if err != nil {
		return ImportanceResult{}, err
	}
	var result ImportanceResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return ImportanceResult{}, apperr.ErrSummarizerBadOutput
	}
	if result.Score < 1 {
		result.Score = 1
	}
	if result.Score > 10 {
		result.Score = 10
	}
	return result, nil
}
