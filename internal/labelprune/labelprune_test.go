package labelprune

import (
	"context"
	"testing"
	"time"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/llm"
	"github.com/harper/sekha/internal/storage/sqlite"
)

type stubSummarizer struct {
	labels []llm.LabelSuggestion
	score  llm.ImportanceResult
}

func (s stubSummarizer) Summarize(ctx context.Context, prompt, transcript string) (string, error) {
	return "summary", nil
}

func (s stubSummarizer) SuggestLabels(ctx context.Context, transcript string) ([]llm.LabelSuggestion, error) {
	return s.labels, nil
}

func (s stubSummarizer) ScoreImportance(ctx context.Context, transcript string) (llm.ImportanceResult, error) {
	return s.score, nil
}

func newIntelligenceFixture(t *testing.T, summarizer llm.Summarizer) (*Intelligence, *sqlite.DB, *sqlite.ConversationStore) {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	convStore := sqlite.NewConversationStore(db)
	tags := sqlite.NewTagStore(db)
	return New(convStore, tags, summarizer), db, convStore
}

func insertConversation(t *testing.T, db *sqlite.DB, store *sqlite.ConversationStore, conv *domain.Conversation) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.Insert(tx, conv); err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestSuggestLabelsSnapsOntoVocabulary(t *testing.T) {
	intel, db, convStore := newIntelligenceFixture(t, stubSummarizer{
		labels: []llm.LabelSuggestion{{Label: "golang-debuging", Confidence: 0.8}},
	})
	insertConversation(t, db, convStore, &domain.Conversation{ID: "c1", Label: "golang-debugging", Folder: "/", Status: domain.StatusActive, ImportanceScore: 5})

	suggestions, err := intel.SuggestLabels(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("suggest labels: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("len(suggestions) = %d, want 1", len(suggestions))
	}
	if !suggestions[0].Snapped || suggestions[0].Label != "golang-debugging" {
		t.Errorf("suggestion = %+v, want snapped to golang-debugging", suggestions[0])
	}
}

func TestBlendImportanceAppliesPinnedBonus(t *testing.T) {
	intel, db, convStore := newIntelligenceFixture(t, stubSummarizer{})
	conv := &domain.Conversation{ID: "c1", Label: "l", Folder: "/", Status: domain.StatusPinned, ImportanceScore: 5}
	insertConversation(t, db, convStore, conv)

	score, err := intel.BlendImportance(conv)
	if err != nil {
		t.Fatalf("blend importance: %v", err)
	}
	if score != 7 {
		t.Errorf("score = %d, want 7 (5 + pinnedBonus)", score)
	}
}

func TestBlendImportanceClampsToRange(t *testing.T) {
	intel, db, convStore := newIntelligenceFixture(t, stubSummarizer{})
	conv := &domain.Conversation{ID: "c1", Label: "l", Folder: "/", Status: domain.StatusPinned, ImportanceScore: 10}
	insertConversation(t, db, convStore, conv)

	score, err := intel.BlendImportance(conv)
	if err != nil {
		t.Fatalf("blend importance: %v", err)
	}
	if score != 10 {
		t.Errorf("score = %d, want clamped to 10", score)
	}
}

func TestBlendImportanceAppliesStalePenalty(t *testing.T) {
	intel, db, convStore := newIntelligenceFixture(t, stubSummarizer{})
	conv := &domain.Conversation{ID: "c1", Label: "l", Folder: "/", Status: domain.StatusActive, ImportanceScore: 5}
	insertConversation(t, db, convStore, conv)

	if err := convStore.TouchAccess("c1"); err != nil {
		t.Fatalf("touch access: %v", err)
	}
	old := time.Now().UTC().AddDate(0, 0, -200).Format(time.RFC3339Nano)
	if _, err := db.Exec(`UPDATE access_log SET last_accessed_at = ? WHERE conversation_id = 'c1'`, old); err != nil {
		t.Fatalf("backdate access: %v", err)
	}

	score, err := intel.BlendImportance(conv)
	if err != nil {
		t.Fatalf("blend importance: %v", err)
	}
	if score != 4 {
		t.Errorf("score = %d, want 4 (5 + staleAccessPenalty)", score)
	}
}

func TestAutoScoreImportanceCombinesScoreAndHeuristics(t *testing.T) {
	intel, db, convStore := newIntelligenceFixture(t, stubSummarizer{score: llm.ImportanceResult{Score: 3}})
	conv := &domain.Conversation{ID: "c1", Label: "l", Folder: "/", Status: domain.StatusPinned, ImportanceScore: 5}
	insertConversation(t, db, convStore, conv)

	score, err := intel.AutoScoreImportance(context.Background(), conv, "transcript")
	if err != nil {
		t.Fatalf("auto score importance: %v", err)
	}
	if score != 5 {
		t.Errorf("score = %d, want 5 (summarizer's 3 + pinnedBonus 2)", score)
	}
	// the original conversation passed in must not be mutated
	if conv.ImportanceScore != 5 {
		t.Errorf("conv.ImportanceScore mutated to %d", conv.ImportanceScore)
	}
}

func TestPruneCandidatesExcludesPinned(t *testing.T) {
	intel, db, convStore := newIntelligenceFixture(t, stubSummarizer{})
	stale := &domain.Conversation{ID: "stale", Label: "l", Folder: "/", Status: domain.StatusActive, ImportanceScore: 2}
	pinned := &domain.Conversation{ID: "pinned", Label: "l", Folder: "/", Status: domain.StatusPinned, ImportanceScore: 2}
	insertConversation(t, db, convStore, stale)
	insertConversation(t, db, convStore, pinned)

	old := time.Now().UTC().AddDate(0, 0, -200).Format(time.RFC3339Nano)
	if _, err := db.Exec(`UPDATE conversations SET updated_at = ?`, old); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	candidates, err := intel.PruneCandidates(90)
	if err != nil {
		t.Fatalf("prune candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Conversation.ID != "stale" {
		t.Errorf("candidates = %+v, want only stale", candidates)
	}
}
