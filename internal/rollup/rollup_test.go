package rollup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/llm"
	"github.com/harper/sekha/internal/storage/sqlite"
	"github.com/harper/sekha/internal/vectorstore"
)

type fakeSummarizer struct{ calls int }

func (f *fakeSummarizer) Summarize(ctx context.Context, prompt, transcript string) (string, error) {
	f.calls++
	return fmt.Sprintf("summary #%d of: %s", f.calls, transcript), nil
}

func (f *fakeSummarizer) SuggestLabels(ctx context.Context, transcript string) ([]llm.LabelSuggestion, error) {
	return nil, nil
}

func (f *fakeSummarizer) ScoreImportance(ctx context.Context, transcript string) (llm.ImportanceResult, error) {
	return llm.ImportanceResult{Score: 5}, nil
}

type fakeRollupEmbedder struct{}

func (fakeRollupEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}
func (fakeRollupEmbedder) Probe(ctx context.Context, model string) (int, error) { return 3, nil }

func newRollupFixture(t *testing.T) (*Engine, *sqlite.DB, *domain.Conversation) {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	convStore := sqlite.NewConversationStore(db)
	msgStore := sqlite.NewMessageStore(db)
	summaryStore := sqlite.NewSummaryStore(db)

	conv := &domain.Conversation{ID: "c1", Label: "l", Folder: "/", Status: domain.StatusActive, ImportanceScore: 5}
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := convStore.Insert(tx, conv); err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	engine := New(msgStore, summaryStore, &fakeSummarizer{}, fakeRollupEmbedder{}, vectorstore.NewInMemoryStore(), "test-model")
	return engine, db, conv
}

func insertMessageAt(t *testing.T, db *sqlite.DB, convID, id, content string, ts time.Time, insertionID int64) {
	t.Helper()
	msgStore := sqlite.NewMessageStore(db)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	m := &domain.Message{ID: id, ConversationID: convID, Role: domain.RoleUser, Content: content, Timestamp: ts, InsertionID: insertionID}
	if err := msgStore.Insert(tx, m); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestRollupDailySkipsDaysBelowMinimum(t *testing.T) {
	engine, db, conv := newRollupFixture(t)
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	insertMessageAt(t, db, conv.ID, "m1", "one", day, 0)
	insertMessageAt(t, db, conv.ID, "m2", "two", day.Add(time.Hour), 1)

	if err := engine.RollupDaily(context.Background(), conv); err != nil {
		t.Fatalf("rollup daily: %v", err)
	}

	dailies, err := engine.summaries.ListByLevel(conv.ID, domain.LevelDaily)
	if err != nil {
		t.Fatalf("list dailies: %v", err)
	}
	if len(dailies) != 0 {
		t.Errorf("len(dailies) = %d, want 0 (below minDailyMessages)", len(dailies))
	}
}

func TestRollupDailyProducesSummaryAtMinimum(t *testing.T) {
	engine, db, conv := newRollupFixture(t)
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < minDailyMessages; i++ {
		insertMessageAt(t, db, conv.ID, fmt.Sprintf("m%d", i), "content", day.Add(time.Duration(i)*time.Minute), int64(i))
	}

	if err := engine.RollupDaily(context.Background(), conv); err != nil {
		t.Fatalf("rollup daily: %v", err)
	}

	dailies, err := engine.summaries.ListByLevel(conv.ID, domain.LevelDaily)
	if err != nil {
		t.Fatalf("list dailies: %v", err)
	}
	if len(dailies) != 1 {
		t.Fatalf("len(dailies) = %d, want 1", len(dailies))
	}
	if dailies[0].SummaryText == "" {
		t.Error("expected non-empty summary text")
	}
}

func TestRollupDailyIsIdempotent(t *testing.T) {
	engine, db, conv := newRollupFixture(t)
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < minDailyMessages; i++ {
		insertMessageAt(t, db, conv.ID, fmt.Sprintf("m%d", i), "content", day.Add(time.Duration(i)*time.Minute), int64(i))
	}

	if err := engine.RollupDaily(context.Background(), conv); err != nil {
		t.Fatalf("rollup daily (1st): %v", err)
	}
	if err := engine.RollupDaily(context.Background(), conv); err != nil {
		t.Fatalf("rollup daily (2nd): %v", err)
	}

	dailies, err := engine.summaries.ListByLevel(conv.ID, domain.LevelDaily)
	if err != nil {
		t.Fatalf("list dailies: %v", err)
	}
	if len(dailies) != 1 {
		t.Fatalf("len(dailies) = %d, want 1 (regeneration overwrites in place)", len(dailies))
	}
}

func TestRollupWeeklyFallsBackToRawMessagesBelowMinimum(t *testing.T) {
	engine, db, conv := newRollupFixture(t)
	mon := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < minDailyMessages; i++ {
		insertMessageAt(t, db, conv.ID, fmt.Sprintf("m%d", i), "content", mon.Add(time.Duration(i)*time.Minute), int64(i))
	}

	if err := engine.RollupWeekly(context.Background(), conv); err != nil {
		t.Fatalf("rollup weekly: %v", err)
	}

	weeklies, err := engine.summaries.ListByLevel(conv.ID, domain.LevelWeekly)
	if err != nil {
		t.Fatalf("list weeklies: %v", err)
	}
	if len(weeklies) != 1 {
		t.Fatalf("len(weeklies) = %d, want 1 (fallback to raw messages)", len(weeklies))
	}
}

func TestRollupMonthlyFoldsWeeklies(t *testing.T) {
	engine, db, conv := newRollupFixture(t)
	mon := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < minDailyMessages; i++ {
		insertMessageAt(t, db, conv.ID, fmt.Sprintf("m%d", i), "content", mon.Add(time.Duration(i)*time.Minute), int64(i))
	}
	if err := engine.RollupWeekly(context.Background(), conv); err != nil {
		t.Fatalf("rollup weekly: %v", err)
	}
	if err := engine.RollupMonthly(context.Background(), conv); err != nil {
		t.Fatalf("rollup monthly: %v", err)
	}

	monthlies, err := engine.summaries.ListByLevel(conv.ID, domain.LevelMonthly)
	if err != nil {
		t.Fatalf("list monthlies: %v", err)
	}
	if len(monthlies) != 1 {
		t.Fatalf("len(monthlies) = %d, want 1", len(monthlies))
	}
}
