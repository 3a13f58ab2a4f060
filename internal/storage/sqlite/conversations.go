// ABOUTME: Conversation CRUD against the relational store
// ABOUTME: Folder/label/status/importance mutations all bump updated_at (I3)
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harper/sekha/internal/domain"
)

type ConversationStore struct {
	db *DB
}

func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Insert creates a conversation row within an existing transaction.
func (s *ConversationStore) Insert(tx *sql.Tx, c *domain.Conversation) error {
	now := nowISO()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := tx.Exec(
		`INSERT INTO conversations (id, label, folder, status, importance_score, word_count, session_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Label, c.Folder, string(c.Status), c.ImportanceScore, c.WordCount, c.SessionCount,
		c.CreatedAt.UTC().Format(time.RFC3339Nano), now,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) Get(id string) (*domain.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, label, folder, status, importance_score, word_count, session_count, created_at, updated_at
		   FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	var status, createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Label, &c.Folder, &status, &c.ImportanceScore, &c.WordCount, &c.SessionCount, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.Status = domain.ConversationStatus(status)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &c, nil
}

// UpdateLabel sets label and optionally folder, bumping updated_at (I3).
func (s *ConversationStore) UpdateLabel(tx *sql.Tx, id, label string, folder *string) error {
	now := nowISO()
	var err error
	if folder != nil {
		_, err = tx.Exec(`UPDATE conversations SET label = ?, folder = ?, updated_at = ? WHERE id = ?`, label, *folder, now, id)
	} else {
		_, err = tx.Exec(`UPDATE conversations SET label = ?, updated_at = ? WHERE id = ?`, label, now, id)
	}
	if err != nil {
		return fmt.Errorf("update label: %w", err)
	}
	return nil
}

func (s *ConversationStore) SetStatus(tx *sql.Tx, id string, status domain.ConversationStatus) error {
	_, err := tx.Exec(`UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`, string(status), nowISO(), id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// SetImportance clamps to [1,10] is the caller's responsibility (I4
// validated at the Repository boundary); here it is trusted input.
func (s *ConversationStore) SetImportance(tx *sql.Tx, id string, score int) error {
	_, err := tx.Exec(`UPDATE conversations SET importance_score = ?, updated_at = ? WHERE id = ?`, score, nowISO(), id)
	if err != nil {
		return fmt.Errorf("set importance: %w", err)
	}
	return nil
}

func (s *ConversationStore) Delete(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) TouchAccess(id string) error {
	now := nowISO()
	_, err := s.db.Exec(
		`INSERT INTO access_log (conversation_id, last_accessed_at) VALUES (?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("touch access: %w", err)
	}
	return nil
}

func (s *ConversationStore) LastAccessed(id string) (time.Time, bool, error) {
	var ts string
	err := s.db.QueryRow(`SELECT last_accessed_at FROM access_log WHERE conversation_id = ?`, id).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last accessed: %w", err)
	}
	t, _ := time.Parse(time.RFC3339Nano, ts)
	return t, true, nil
}

// Stats returns per-folder conversation/message counts for spec.md's
// GET /api/v1/stats. An empty folder means global.
func (s *ConversationStore) Stats(folder string) (conversations, messages int, err error) {
	q := `SELECT COUNT(*) FROM conversations`
	args := []any{}
	if folder != "" {
		q += ` WHERE folder = ? OR folder LIKE ?`
		args = append(args, folder, folder+"/%")
	}
	if err := s.db.QueryRow(q, args...).Scan(&conversations); err != nil {
		return 0, 0, fmt.Errorf("stats conversations: %w", err)
	}

	mq := `SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id`
	margs := []any{}
	if folder != "" {
		mq += ` WHERE c.folder = ? OR c.folder LIKE ?`
		margs = append(margs, folder, folder+"/%")
	}
	if err := s.db.QueryRow(mq, margs...).Scan(&messages); err != nil {
		return 0, 0, fmt.Errorf("stats messages: %w", err)
	}
	return conversations, messages, nil
}

// ListActive returns every non-archived conversation, used by the reaper
// to schedule hierarchical rollups (spec.md section 4.9).
func (s *ConversationStore) ListActive() ([]*domain.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, label, folder, status, importance_score, word_count, session_count, created_at, updated_at
		   FROM conversations
		  WHERE status != 'archived'
		  ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active conversations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var status, createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Label, &c.Folder, &status, &c.ImportanceScore, &c.WordCount, &c.SessionCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan active conversation: %w", err)
		}
		c.Status = domain.ConversationStatus(status)
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListPinned returns every pinned conversation, used by the Context
// Assembler to union pinned conversations into the candidate pool even
// when the hybrid retrieval pool misses them (spec.md section 4.8).
func (s *ConversationStore) ListPinned() ([]*domain.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, label, folder, status, importance_score, word_count, session_count, created_at, updated_at
		   FROM conversations WHERE status = 'pinned'`)
	if err != nil {
		return nil, fmt.Errorf("list pinned conversations: %w", err)
	}
	defer rows.Close()
	return scanConversationRows(rows)
}

// ListByLabelOrFolder returns conversations whose label case-insensitively
// matches one of labels, or whose folder starts with one of folderPrefixes.
// Used to union preferred-label/folder matches into the candidate pool
// (spec.md section 4.8).
func (s *ConversationStore) ListByLabelOrFolder(labels, folderPrefixes []string) ([]*domain.Conversation, error) {
	if len(labels) == 0 && len(folderPrefixes) == 0 {
		return nil, nil
	}

	var clauses []string
	var args []any
	if len(labels) > 0 {
		placeholders := make([]string, len(labels))
		for i, l := range labels {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(l))
		}
		clauses = append(clauses, "LOWER(label) IN ("+strings.Join(placeholders, ",")+")")
	}
	for _, f := range folderPrefixes {
		clauses = append(clauses, "folder LIKE ?")
		args = append(args, f+"%")
	}

	rows, err := s.db.Query(
		`SELECT id, label, folder, status, importance_score, word_count, session_count, created_at, updated_at
		   FROM conversations WHERE `+strings.Join(clauses, " OR "), args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations by label or folder: %w", err)
	}
	defer rows.Close()
	return scanConversationRows(rows)
}

func scanConversationRows(rows *sql.Rows) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var status, createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Label, &c.Folder, &status, &c.ImportanceScore, &c.WordCount, &c.SessionCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Status = domain.ConversationStatus(status)
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// PruneCandidates implements spec.md section 4.10's prune recommendation
// query: importance <= 3, status=active, updated_at older than the
// threshold, excluding pinned (status!=active already excludes pinned).
func (s *ConversationStore) PruneCandidates(thresholdDays int) ([]*domain.Conversation, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -thresholdDays).Format(time.RFC3339Nano)
	rows, err := s.db.Query(
		`SELECT id, label, folder, status, importance_score, word_count, session_count, created_at, updated_at
		   FROM conversations
		  WHERE importance_score <= 3 AND status = 'active' AND updated_at < ?
		  ORDER BY updated_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune candidates: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var status, createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Label, &c.Folder, &status, &c.ImportanceScore, &c.WordCount, &c.SessionCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan prune candidate: %w", err)
		}
		c.Status = domain.ConversationStatus(status)
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}
