package sqlite

import (
	"testing"
	"time"

	"github.com/harper/sekha/internal/domain"
)

func mkConversation(id, label, folder string, status domain.ConversationStatus) *domain.Conversation {
	return &domain.Conversation{
		ID:              id,
		Label:           label,
		Folder:          folder,
		Status:          status,
		ImportanceScore: 5,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestConversationInsertAndGet(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewConversationStore(db)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	conv := mkConversation("c1", "work", "/work", domain.StatusActive)
	if err := store.Insert(tx, conv); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := store.Get("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected conversation, got nil")
	}
	if got.Label != "work" || got.Folder != "/work" {
		t.Errorf("got = %+v", got)
	}
}

func TestConversationGetMissingReturnsNil(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewConversationStore(db)
	got, err := store.Get("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestConversationSetStatusAndImportance(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewConversationStore(db)
	tx, _ := db.Begin()
	conv := mkConversation("c1", "work", "/work", domain.StatusActive)
	if err := store.Insert(tx, conv); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = tx.Commit()

	tx, _ = db.Begin()
	if err := store.SetStatus(tx, "c1", domain.StatusPinned); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := store.SetImportance(tx, "c1", 9); err != nil {
		t.Fatalf("set importance: %v", err)
	}
	_ = tx.Commit()

	got, err := store.Get("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPinned {
		t.Errorf("status = %q, want pinned", got.Status)
	}
	if got.ImportanceScore != 9 {
		t.Errorf("importance_score = %d, want 9", got.ImportanceScore)
	}
}

func TestConversationListPinned(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewConversationStore(db)
	tx, _ := db.Begin()
	_ = store.Insert(tx, mkConversation("pinned1", "a", "/", domain.StatusPinned))
	_ = store.Insert(tx, mkConversation("active1", "b", "/", domain.StatusActive))
	_ = tx.Commit()

	pinned, err := store.ListPinned()
	if err != nil {
		t.Fatalf("list pinned: %v", err)
	}
	if len(pinned) != 1 || pinned[0].ID != "pinned1" {
		t.Errorf("pinned = %+v, want only pinned1", pinned)
	}
}

func TestConversationListByLabelOrFolder(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewConversationStore(db)
	tx, _ := db.Begin()
	_ = store.Insert(tx, mkConversation("c1", "Project X", "/work/proj", domain.StatusActive))
	_ = store.Insert(tx, mkConversation("c2", "personal", "/home", domain.StatusActive))
	_ = store.Insert(tx, mkConversation("c3", "other", "/misc", domain.StatusActive))
	_ = tx.Commit()

	byLabel, err := store.ListByLabelOrFolder([]string{"project x"}, nil)
	if err != nil {
		t.Fatalf("list by label: %v", err)
	}
	if len(byLabel) != 1 || byLabel[0].ID != "c1" {
		t.Errorf("byLabel = %+v, want only c1", byLabel)
	}

	byFolder, err := store.ListByLabelOrFolder(nil, []string{"/work"})
	if err != nil {
		t.Fatalf("list by folder: %v", err)
	}
	if len(byFolder) != 1 || byFolder[0].ID != "c1" {
		t.Errorf("byFolder = %+v, want only c1", byFolder)
	}

	empty, err := store.ListByLabelOrFolder(nil, nil)
	if err != nil {
		t.Fatalf("list by none: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty = %+v, want none", empty)
	}
}

func TestConversationPruneCandidatesExcludesRecentAndImportant(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewConversationStore(db)
	tx, _ := db.Begin()
	stale := mkConversation("stale", "a", "/", domain.StatusActive)
	stale.ImportanceScore = 2
	if err := store.Insert(tx, stale); err != nil {
		t.Fatalf("insert stale: %v", err)
	}
	important := mkConversation("important", "b", "/", domain.StatusActive)
	important.ImportanceScore = 9
	if err := store.Insert(tx, important); err != nil {
		t.Fatalf("insert important: %v", err)
	}
	_ = tx.Commit()

	// backdate stale's updated_at well past the threshold
	old := time.Now().UTC().AddDate(0, 0, -200).Format(time.RFC3339Nano)
	if _, err := db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = 'stale'`, old); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = 'important'`, old); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	candidates, err := store.PruneCandidates(90)
	if err != nil {
		t.Fatalf("prune candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "stale" {
		t.Errorf("candidates = %+v, want only stale (high-importance excluded)", candidates)
	}
}
