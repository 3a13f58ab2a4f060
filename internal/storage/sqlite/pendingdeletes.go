// ABOUTME: pending_vector_deletes table; Relational delete is the truth, vector side retried here
package sqlite

import "fmt"

type PendingDelete struct {
	ConversationID string
	RequestedAt    string
	Attempts       int
	LastError      string
}

type PendingDeleteStore struct {
	db *DB
}

func NewPendingDeleteStore(db *DB) *PendingDeleteStore {
	return &PendingDeleteStore{db: db}
}

func (s *PendingDeleteStore) Record(conversationID string) error {
	_, err := s.db.Exec(
		`INSERT INTO pending_vector_deletes (conversation_id, requested_at, attempts)
		 VALUES (?, ?, 0)
		 ON CONFLICT(conversation_id) DO NOTHING`,
		conversationID, nowISO())
	if err != nil {
		return fmt.Errorf("record pending delete: %w", err)
	}
	return nil
}

func (s *PendingDeleteStore) MarkFailed(conversationID, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE pending_vector_deletes SET attempts = attempts + 1, last_error = ? WHERE conversation_id = ?`,
		errMsg, conversationID)
	if err != nil {
		return fmt.Errorf("mark pending delete failed: %w", err)
	}
	return nil
}

func (s *PendingDeleteStore) Clear(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_vector_deletes WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("clear pending delete: %w", err)
	}
	return nil
}

func (s *PendingDeleteStore) List() ([]PendingDelete, error) {
	rows, err := s.db.Query(`SELECT conversation_id, requested_at, attempts, COALESCE(last_error, '') FROM pending_vector_deletes`)
	if err != nil {
		return nil, fmt.Errorf("list pending deletes: %w", err)
	}
	defer rows.Close()

	var out []PendingDelete
	for rows.Next() {
		var p PendingDelete
		if err := rows.Scan(&p.ConversationID, &p.RequestedAt, &p.Attempts, &p.LastError); err != nil {
			return nil, fmt.Errorf("scan pending delete: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
