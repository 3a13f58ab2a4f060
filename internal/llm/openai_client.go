// ABOUTME: OpenAI-backed Embedder and Summarizer, one of several pluggable backends
// ABOUTME: Used by the RAGAS benchmark runner when OPENAI_API_KEY is set; the servers wire the HTTP adapters
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/sekha/internal/apperr"
	"github.com/harper/sekha/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-backed adapter pair.
type OpenAIConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	MaxRetries     int
	RetryDelay     time.Duration
}

func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:         apiKey,
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: openai.SmallEmbedding3,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

// OpenAIAdapter implements both Embedder and Summarizer against the OpenAI
// API, with the same retry-with-backoff shape the teacher used throughout
// its Scribe/OpenAIClient code.
type OpenAIAdapter struct {
	client     *openai.Client
	cfg        OpenAIConfig
	maxRetries int
	retryDelay time.Duration
}

func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &OpenAIAdapter{
		client:     openai.NewClient(cfg.APIKey),
		cfg:        cfg,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

func (c *OpenAIAdapter) Embed(ctx context.Context, text, model string) ([]float32, error) {
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = c.cfg.EmbeddingModel
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(util.CalculateBackoff(c.retryDelay, attempt))
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: m,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = fmt.Errorf("no embeddings returned")
			continue
		}
		return resp.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingUnavailable, lastErr)
}

func (c *OpenAIAdapter) Probe(ctx context.Context, model string) (int, error) {
	vec, err := c.Embed(ctx, "dimension probe", model)
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}

func (c *OpenAIAdapter) chatJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(util.CalculateBackoff(c.retryDelay, attempt))
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.ChatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: temperature,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no completion choices returned")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("%w: %v", apperr.ErrSummarizerUnavailable, lastErr)
}

func (c *OpenAIAdapter) Summarize(ctx context.Context, prompt, transcript string) (string, error) {
	content, err := c.chatJSON(ctx, prompt, transcript, 0.3)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *OpenAIAdapter) SuggestLabels(ctx context.Context, transcript string) ([]LabelSuggestion, error) {
	system := `You are a labeling assistant. Given a conversation, suggest up to 5 short topic labels with a confidence 0-1 each.
Return ONLY a JSON array of objects with fields "label" and "confidence". No additional text.`

	content, err := c.chatJSON(ctx, system, transcript, 0.3)
	if err != nil {
		return nil, err
	}
	var labels []LabelSuggestion
	if err := json.Unmarshal([]byte(content), &labels); err != nil {
		return nil, apperr.ErrSummarizerBadOutput
	}
	if len(labels) > 5 {
		labels = labels[:5]
	}
	return labels, nil
}

func (c *OpenAIAdapter) ScoreImportance(ctx context.Context, transcript string) (ImportanceResult, error) {
	system := `You are an importance-scoring assistant. Score this conversation's long-term importance from 1 (forgettable) to 10 (critical), with a one-sentence reason.
Return ONLY a JSON object with fields "score" (integer) and "reason" (string).`

	content, err := c.chatJSON(ctx, system, transcript, 0.1)
	if err != nil {
		return ImportanceResult{}, err
	}
	var result ImportanceResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
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
