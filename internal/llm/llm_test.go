package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harper/sekha/internal/apperr"
)

func TestHTTPEmbedderEmbedParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q, want nomic-embed-text", req.Model)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL)
	vec, err := e.Embed(context.Background(), "hello", "nomic-embed-text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len(vec) = %d, want 3", len(vec))
	}
}

func TestHTTPEmbedderEmbedMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL)
	_, err := e.Embed(context.Background(), "hello", "nomic-embed-text")
	if err != apperr.ErrEmbeddingUnavailable {
		t.Errorf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestHTTPEmbedderEmbedMapsBadInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL)
	_, err := e.Embed(context.Background(), "hello", "nomic-embed-text")
	if err != apperr.ErrEmbeddingBadInput {
		t.Errorf("err = %v, want ErrEmbeddingBadInput", err)
	}
}

func TestHTTPEmbedderProbeDiscoversDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0, 0, 0, 0}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL)
	dim, err := e.Probe(context.Background(), "nomic-embed-text")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if dim != 4 {
		t.Errorf("dim = %d, want 4", dim)
	}
}

func TestHTTPSummarizerSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Response: "a concise summary"})
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL, "test-model")
	summary, err := s.Summarize(context.Background(), "Write a summary", "user: hi\nassistant: hello")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "a concise summary" {
		t.Errorf("summary = %q", summary)
	}
}

func TestHTTPSummarizerSuggestLabelsParsesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal([]LabelSuggestion{{Label: "billing", Confidence: 0.9}, {Label: "support", Confidence: 0.5}})
		_ = json.NewEncoder(w).Encode(chatResponse{Response: string(raw)})
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL, "test-model")
	labels, err := s.SuggestLabels(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("suggest labels: %v", err)
	}
	if len(labels) != 2 || labels[0].Label != "billing" {
		t.Errorf("labels = %+v", labels)
	}
}

func TestHTTPSummarizerSuggestLabelsRejectsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Response: "not json"})
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL, "test-model")
	_, err := s.SuggestLabels(context.Background(), "transcript")
	if err != apperr.ErrSummarizerBadOutput {
		t.Errorf("err = %v, want ErrSummarizerBadOutput", err)
	}
}

func TestHTTPSummarizerScoreImportanceClampsRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(ImportanceResult{Score: 99, Reason: "very important"})
		_ = json.NewEncoder(w).Encode(chatResponse{Response: string(raw)})
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL, "test-model")
	result, err := s.ScoreImportance(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("score importance: %v", err)
	}
	if result.Score != 10 {
		t.Errorf("score = %d, want clamped to 10", result.Score)
	}
}
