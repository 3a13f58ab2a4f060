// ABOUTME: SemanticTag storage; duplicates within a conversation coalesce to max confidence
package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/harper/sekha/internal/domain"
)

type TagStore struct {
	db *DB
}

func NewTagStore(db *DB) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) Upsert(conversationID, tag string, confidence float64) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	_, err := s.db.Exec(
		`INSERT INTO semantic_tags (conversation_id, tag, confidence, extracted_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(conversation_id, tag) DO UPDATE SET
		   confidence = MAX(confidence, excluded.confidence),
		   extracted_at = excluded.extracted_at`,
		conversationID, tag, confidence, nowISO())
	if err != nil {
		return fmt.Errorf("upsert tag: %w", err)
	}
	return nil
}

func (s *TagStore) ListByConversation(conversationID string) ([]*domain.SemanticTag, error) {
	rows, err := s.db.Query(
		`SELECT conversation_id, tag, confidence, extracted_at FROM semantic_tags WHERE conversation_id = ? ORDER BY confidence DESC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*domain.SemanticTag
	for rows.Next() {
		var t domain.SemanticTag
		var extractedAt string
		if err := rows.Scan(&t.ConversationID, &t.Tag, &t.Confidence, &extractedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		t.ExtractedAt, _ = time.Parse(time.RFC3339Nano, extractedAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// AllLabels returns the distinct vocabulary of known labels, used by the
// Label/Prune Intelligence edit-distance snap (spec.md section 4.10).
func (s *TagStore) AllLabels() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT label FROM conversations WHERE label != ''`)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
