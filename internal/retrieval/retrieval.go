// ABOUTME: Semantic, full-text and hybrid search primitives (spec.md section 4.7)
// ABOUTME: Grounded on the teacher's lattice_crawler.go candidate-gathering idiom
package retrieval

import (
	"context"
	"sort"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/llm"
	"github.com/harper/sekha/internal/storage/sqlite"
	"github.com/harper/sekha/internal/vectorstore"
)

const maxLimit = 100

type Filter struct {
	FolderPrefix    string
	Label           string
	Status          string
	Role            string
	CreatedAfter    *int64
	CreatedBefore   *int64
	ImportanceMin   *int
	ImportanceMax   *int
}

type Result struct {
	Message        *domain.Message
	Score          float64
	SemScore       float64
	BM25Score      float64
	ConversationID string
}

type SearchResponse struct {
	Results  []Result
	Degraded bool
}

type Retrieval struct {
	embedder llm.Embedder
	vectors  vectorstore.Store
	messages *sqlite.MessageStore
	model    string
	cache    *embedCache
}

func New(embedder llm.Embedder, vectors vectorstore.Store, messages *sqlite.MessageStore, model string) *Retrieval {
	return &Retrieval{embedder: embedder, vectors: vectors, messages: messages, model: model, cache: newEmbedCache(4096)}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// Semantic embeds the query, queries the Vector Store, and hydrates ids
// against the Relational Store. On any Vector error it falls back to FTS
// and flags degraded=true (spec.md section 4.7). Paging is (limit, offset)
// with limit hard-capped at 100.
func (r *Retrieval) Semantic(ctx context.Context, query string, limit, offset int, f Filter) (SearchResponse, error) {
	limit = clampLimit(limit)
	offset = clampOffset(offset)

	vec, ok := r.cache.get(query)
	if !ok {
		var err error
		vec, err = r.embedder.Embed(ctx, query, r.model)
		if err != nil {
			return r.fallbackToFTS(query, limit, offset, f)
		}
		r.cache.put(query, vec)
	}

	matches, err := r.vectors.Query(ctx, vec, limit+offset, toVectorFilter(f))
	if err != nil {
		return r.fallbackToFTS(query, limit, offset, f)
	}
	if offset < len(matches) {
		matches = matches[offset:]
	} else {
		matches = nil
	}

	ids := make([]string, 0, len(matches))
	scoreByID := make(map[string]float64, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
		scoreByID[m.ID] = m.Similarity
	}

	msgs, err := r.messages.GetByIDs(ids)
	if err != nil {
		return SearchResponse{}, err
	}

	results := make([]Result, 0, len(msgs))
	for _, m := range msgs {
		results = append(results, Result{Message: m, Score: scoreByID[m.ID], SemScore: scoreByID[m.ID], ConversationID: m.ConversationID})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return SearchResponse{Results: results, Degraded: false}, nil
}

func (r *Retrieval) fallbackToFTS(query string, limit, offset int, f Filter) (SearchResponse, error) {
	resp, err := r.FullText(context.Background(), query, limit, offset, f)
	if err != nil {
		return SearchResponse{}, err
	}
	resp.Degraded = true
	return resp, nil
}

// FullText runs a prefix-and-token query against the FTS virtual table,
// BM25-ordered, narrowed by f and paged by (limit, offset).
func (r *Retrieval) FullText(ctx context.Context, query string, limit, offset int, f Filter) (SearchResponse, error) {
	limit = clampLimit(limit)
	offset = clampOffset(offset)
	hits, err := r.messages.SearchFTS(query, limit, offset, toMessageFilter(f))
	if err != nil {
		return SearchResponse{}, err
	}

	ids := make([]string, 0, len(hits))
	bm25ByID := make(map[string]float64, len(hits))
	for _, h := range hits {
		ids = append(ids, h.MessageID)
		bm25ByID[h.MessageID] = h.BM25
	}

	msgs, err := r.messages.GetByIDs(ids)
	if err != nil {
		return SearchResponse{}, err
	}

	results := make([]Result, 0, len(msgs))
	for _, m := range msgs {
		// bm25() in SQLite returns lower-is-better; normalize to
		// higher-is-better in [0,1] via a simple reciprocal squashing.
		raw := bm25ByID[m.ID]
		norm := 1.0 / (1.0 + negToZero(raw))
		results = append(results, Result{Message: m, Score: norm, BM25Score: norm, ConversationID: m.ConversationID})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return SearchResponse{Results: results}, nil
}

func negToZero(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Hybrid runs both concurrently and merges by message id: score = alpha*sem
// + (1-alpha)*norm_bm25, alpha default 0.7, paged by (limit, offset) applied
// after the merge so paging reflects the combined ranking (spec.md section
// 4.7).
func (r *Retrieval) Hybrid(ctx context.Context, query string, limit, offset int, f Filter, alpha float64) (SearchResponse, error) {
	if alpha <= 0 {
		alpha = 0.7
	}
	limit = clampLimit(limit)
	offset = clampOffset(offset)
	fetch := limit + offset

	type semResult struct {
		resp SearchResponse
		err  error
	}
	type ftsResult struct {
		resp SearchResponse
		err  error
	}

	semCh := make(chan semResult, 1)
	ftsCh := make(chan ftsResult, 1)

	go func() {
		resp, err := r.Semantic(ctx, query, fetch, 0, f)
		semCh <- semResult{resp, err}
	}()
	go func() {
		resp, err := r.FullText(ctx, query, fetch, 0, f)
		ftsCh <- ftsResult{resp, err}
	}()

	sem := <-semCh
	fts := <-ftsCh
	if sem.err != nil {
		return SearchResponse{}, sem.err
	}
	if fts.err != nil {
		return SearchResponse{}, fts.err
	}

	merged := map[string]*Result{}
	for _, res := range sem.resp.Results {
		r := res
		merged[res.Message.ID] = &r
	}
	for _, res := range fts.resp.Results {
		if existing, ok := merged[res.Message.ID]; ok {
			existing.BM25Score = res.BM25Score
		} else {
			r := res
			merged[res.Message.ID] = &r
		}
	}

	out := make([]Result, 0, len(merged))
	for _, res := range merged {
		res.Score = alpha*res.SemScore + (1-alpha)*res.BM25Score
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Message.ID < out[j].Message.ID
	})
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if len(out) > limit {
		out = out[:limit]
	}

	return SearchResponse{Results: out, Degraded: sem.resp.Degraded}, nil
}

func toVectorFilter(f Filter) vectorstore.Filter {
	return vectorstore.Filter{
		Role:          f.Role,
		Label:         f.Label,
		FolderPrefix:  f.FolderPrefix,
		ImportanceMin: f.ImportanceMin,
		ImportanceMax: f.ImportanceMax,
		CreatedAfter:  f.CreatedAfter,
		CreatedBefore: f.CreatedBefore,
	}
}

func toMessageFilter(f Filter) sqlite.MessageFilter {
	return sqlite.MessageFilter{
		FolderPrefix:  f.FolderPrefix,
		Label:         f.Label,
		Status:        f.Status,
		Role:          f.Role,
		CreatedAfter:  f.CreatedAfter,
		CreatedBefore: f.CreatedBefore,
		ImportanceMin: f.ImportanceMin,
		ImportanceMax: f.ImportanceMax,
	}
}
