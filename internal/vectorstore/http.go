// ABOUTME: Default HTTP Vector Store Adapter, grounded on original_source's ChromaDB client
// ABOUTME: Wire shape: parallel ids/embeddings/metadatas/documents arrays, Chroma HTTP v2 style
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harper/sekha/internal/apperr"
)

type HTTPStore struct {
	baseURL    string
	collection string
	client     *http.Client
}

func NewHTTPStore(baseURL, collection string) *HTTPStore {
	return &HTTPStore{
		baseURL:    baseURL,
		collection: collection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
}

func (h *HTTPStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	body := upsertRequest{
		IDs:        []string{id},
		Embeddings: [][]float32{vector},
		Metadatas:  []map[string]any{metadata},
	}
	return h.post(ctx, "/collections/"+h.collection+"/upsert", body, nil)
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

func (h *HTTPStore) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Match, error) {
	req := queryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        k,
		Where:           filterToWhere(filter),
		Include:         []string{"distances", "metadatas"},
	}
	var resp queryResponse
	if err := h.post(ctx, "/collections/"+h.collection+"/query", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		dist := 0.0
		if i < len(resp.Distances[0]) {
			dist = resp.Distances[0][i]
		}
		var meta map[string]any
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta = resp.Metadatas[0][i]
		}
		matches = append(matches, Match{
			ID:         id,
			Distance:   dist,
			Similarity: DistanceToSimilarity(dist),
			Metadata:   meta,
		})
	}
	return matches, nil
}

func (h *HTTPStore) Delete(ctx context.Context, id string) error {
	body := map[string]any{"ids": []string{id}}
	return h.post(ctx, "/collections/"+h.collection+"/delete", body, nil)
}

func (h *HTTPStore) DeleteWhere(ctx context.Context, filter Filter) error {
	body := map[string]any{"where": filterToWhere(filter)}
	return h.post(ctx, "/collections/"+h.collection+"/delete", body, nil)
}

func filterToWhere(f Filter) map[string]any {
	clauses := map[string]any{}
	if f.ConversationID != "" {
		clauses["conversation_id"] = f.ConversationID
	}
	if f.Role != "" {
		clauses["role"] = f.Role
	}
	if f.Label != "" {
		clauses["label"] = f.Label
	}
	if f.Kind != "" {
		clauses["kind"] = f.Kind
	}
	if f.ImportanceMin != nil {
		clauses["importance_score"] = map[string]any{"$gte": *f.ImportanceMin}
	}
	if len(clauses) == 0 {
		return nil
	}
	return clauses
}

func (h *HTTPStore) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindDependencyUnavailable, "vector store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperr.ErrVectorStoreUnavailable
	}
	if resp.StatusCode >= 400 {
		return apperr.ErrVectorStoreRejected
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
