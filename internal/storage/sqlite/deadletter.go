// ABOUTME: failed_embeddings dead-letter table, drained by the embedding reaper
package sqlite

import (
	"fmt"
)

type DeadLetterEntry struct {
	MessageID string
	Reason    string
	FirstSeen string
	LastSeen  string
	Attempts  int
}

type DeadLetterStore struct {
	db *DB
}

func NewDeadLetterStore(db *DB) *DeadLetterStore {
	return &DeadLetterStore{db: db}
}

func (s *DeadLetterStore) Record(messageID, reason string) error {
	now := nowISO()
	_, err := s.db.Exec(
		`INSERT INTO failed_embeddings (message_id, reason, first_seen, last_seen, attempts)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(message_id) DO UPDATE SET
		   reason = excluded.reason,
		   last_seen = excluded.last_seen,
		   attempts = failed_embeddings.attempts + 1`,
		messageID, reason, now, now)
	if err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}
	return nil
}

func (s *DeadLetterStore) List() ([]DeadLetterEntry, error) {
	rows, err := s.db.Query(`SELECT message_id, reason, first_seen, last_seen, attempts FROM failed_embeddings ORDER BY last_seen ASC`)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetterEntry
	for rows.Next() {
		var e DeadLetterEntry
		if err := rows.Scan(&e.MessageID, &e.Reason, &e.FirstSeen, &e.LastSeen, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *DeadLetterStore) Purge(messageID string) error {
	_, err := s.db.Exec(`DELETE FROM failed_embeddings WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("purge dead letter: %w", err)
	}
	return nil
}

func (s *DeadLetterStore) PurgeAll() error {
	_, err := s.db.Exec(`DELETE FROM failed_embeddings`)
	if err != nil {
		return fmt.Errorf("purge all dead letters: %w", err)
	}
	return nil
}

func (s *DeadLetterStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM failed_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}
