package sqlite

import (
	"testing"
	"time"

	"github.com/harper/sekha/internal/domain"
)

func mkMessage(id, conversationID string, role domain.Role, content string, insertionID int64) *domain.Message {
	return &domain.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now().UTC(),
		InsertionID:    insertionID,
	}
}

func newConversationFixture(t *testing.T, db *DB, id string) {
	t.Helper()
	convStore := NewConversationStore(db)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := convStore.Insert(tx, mkConversation(id, "label", "/", domain.StatusActive)); err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestMessageInsertAndListByConversation(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()
	newConversationFixture(t, db, "c1")

	store := NewMessageStore(db)
	tx, _ := db.Begin()
	if err := store.Insert(tx, mkMessage("m1", "c1", domain.RoleUser, "hello world", 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(tx, mkMessage("m2", "c1", domain.RoleAssistant, "hi there", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	msgs, err := store.ListByConversation("c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("unexpected ordering: %+v", msgs)
	}
}

func TestMessageNextInsertionID(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()
	newConversationFixture(t, db, "c1")

	store := NewMessageStore(db)
	tx, _ := db.Begin()
	next, err := store.NextInsertionID(tx, "c1")
	if err != nil {
		t.Fatalf("next insertion id (empty): %v", err)
	}
	if next != 0 {
		t.Errorf("next = %d, want 0 for empty conversation", next)
	}

	if err := store.Insert(tx, mkMessage("m1", "c1", domain.RoleUser, "x", 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(tx, mkMessage("m2", "c1", domain.RoleUser, "y", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = tx.Commit()

	tx, _ = db.Begin()
	next, err = store.NextInsertionID(tx, "c1")
	if err != nil {
		t.Fatalf("next insertion id: %v", err)
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
	_ = tx.Rollback()
}

func TestMessageGetByIDs(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()
	newConversationFixture(t, db, "c1")

	store := NewMessageStore(db)
	tx, _ := db.Begin()
	_ = store.Insert(tx, mkMessage("m1", "c1", domain.RoleUser, "a", 0))
	_ = store.Insert(tx, mkMessage("m2", "c1", domain.RoleUser, "b", 1))
	_ = store.Insert(tx, mkMessage("m3", "c1", domain.RoleUser, "c", 2))
	_ = tx.Commit()

	got, err := store.GetByIDs([]string{"m1", "m3"})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}

	empty, err := store.GetByIDs(nil)
	if err != nil {
		t.Fatalf("get by ids (empty): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty = %+v, want none", empty)
	}
}

func TestMessageSearchFTSMatchesTokens(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()
	newConversationFixture(t, db, "c1")

	store := NewMessageStore(db)
	tx, _ := db.Begin()
	_ = store.Insert(tx, mkMessage("m1", "c1", domain.RoleUser, "the quick brown fox", 0))
	_ = store.Insert(tx, mkMessage("m2", "c1", domain.RoleUser, "lazy dog sleeps", 1))
	_ = tx.Commit()

	hits, err := store.SearchFTS("quick", 10, 0, MessageFilter{})
	if err != nil {
		t.Fatalf("search fts: %v", err)
	}
	if len(hits) != 1 || hits[0].MessageID != "m1" {
		t.Errorf("hits = %+v, want only m1", hits)
	}
}

func TestMessageSearchFTSAppliesFilters(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()

	convStore := NewConversationStore(db)
	tx, _ := db.Begin()
	_ = convStore.Insert(tx, mkConversation("c1", "work", "/work", domain.StatusActive))
	_ = convStore.Insert(tx, mkConversation("c2", "home", "/home", domain.StatusActive))
	_ = tx.Commit()

	store := NewMessageStore(db)
	tx, _ = db.Begin()
	_ = store.Insert(tx, mkMessage("m1", "c1", domain.RoleUser, "database migration plan", 0))
	_ = store.Insert(tx, mkMessage("m2", "c2", domain.RoleUser, "database migration recipe", 0))
	_ = tx.Commit()

	hits, err := store.SearchFTS("database", 10, 0, MessageFilter{FolderPrefix: "/work"})
	if err != nil {
		t.Fatalf("search fts: %v", err)
	}
	if len(hits) != 1 || hits[0].MessageID != "m1" {
		t.Errorf("hits = %+v, want only m1 scoped to /work", hits)
	}

	hits, err = store.SearchFTS("database", 10, 0, MessageFilter{Label: "home"})
	if err != nil {
		t.Fatalf("search fts: %v", err)
	}
	if len(hits) != 1 || hits[0].MessageID != "m2" {
		t.Errorf("hits = %+v, want only m2 labeled home", hits)
	}
}

func TestMessageSearchFTSPaginatesWithOffset(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()
	newConversationFixture(t, db, "c1")

	store := NewMessageStore(db)
	tx, _ := db.Begin()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		_ = store.Insert(tx, mkMessage("m"+id, "c1", domain.RoleUser, "widget report", int64(i)))
	}
	_ = tx.Commit()

	page1, err := store.SearchFTS("widget", 2, 0, MessageFilter{})
	if err != nil {
		t.Fatalf("search fts page1: %v", err)
	}
	page2, err := store.SearchFTS("widget", 2, 2, MessageFilter{})
	if err != nil {
		t.Fatalf("search fts page2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("page1=%d page2=%d, want 2 and 2", len(page1), len(page2))
	}
	if page1[0].MessageID == page2[0].MessageID {
		t.Error("expected offset pages to return disjoint leading results")
	}
}
