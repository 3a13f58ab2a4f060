// ABOUTME: HierarchicalSummary storage, idempotent on (conversation, level, range)
// ABOUTME: regeneration overwrites in place per spec.md section 4.9
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harper/sekha/internal/domain"
)

type SummaryStore struct {
	db *DB
}

func NewSummaryStore(db *DB) *SummaryStore {
	return &SummaryStore{db: db}
}

func (s *SummaryStore) Upsert(sum *domain.HierarchicalSummary) error {
	_, err := s.db.Exec(
		`INSERT INTO hierarchical_summaries (id, conversation_id, level, summary_text, range_start, range_end, generated_at, model_used, token_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, level, range_start, range_end) DO UPDATE SET
		   summary_text = excluded.summary_text,
		   generated_at = excluded.generated_at,
		   model_used = excluded.model_used,
		   token_count = excluded.token_count,
		   id = excluded.id`,
		sum.ID, sum.ConversationID, string(sum.Level), sum.SummaryText,
		sum.RangeStart.UTC().Format(time.RFC3339Nano), sum.RangeEnd.UTC().Format(time.RFC3339Nano),
		sum.GeneratedAt.UTC().Format(time.RFC3339Nano), sum.ModelUsed, sum.TokenCount,
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (s *SummaryStore) ListByLevel(conversationID string, level domain.SummaryLevel) ([]*domain.HierarchicalSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, level, summary_text, range_start, range_end, generated_at, model_used, token_count
		   FROM hierarchical_summaries
		  WHERE conversation_id = ? AND level = ?
		  ORDER BY range_start ASC`, conversationID, string(level))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []*domain.HierarchicalSummary
	for rows.Next() {
		var sum domain.HierarchicalSummary
		var lvl, start, end, gen string
		if err := rows.Scan(&sum.ID, &sum.ConversationID, &lvl, &sum.SummaryText, &start, &end, &gen, &sum.ModelUsed, &sum.TokenCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Level = domain.SummaryLevel(lvl)
		sum.RangeStart, _ = time.Parse(time.RFC3339Nano, start)
		sum.RangeEnd, _ = time.Parse(time.RFC3339Nano, end)
		sum.GeneratedAt, _ = time.Parse(time.RFC3339Nano, gen)
		out = append(out, &sum)
	}
	return out, rows.Err()
}

func (s *SummaryStore) Get(conversationID string, level domain.SummaryLevel, start, end time.Time) (*domain.HierarchicalSummary, error) {
	row := s.db.QueryRow(
		`SELECT id, conversation_id, level, summary_text, range_start, range_end, generated_at, model_used, token_count
		   FROM hierarchical_summaries
		  WHERE conversation_id = ? AND level = ? AND range_start = ? AND range_end = ?`,
		conversationID, string(level), start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))

	var sum domain.HierarchicalSummary
	var lvl, rs, re, gen string
	if err := row.Scan(&sum.ID, &sum.ConversationID, &lvl, &sum.SummaryText, &rs, &re, &gen, &sum.ModelUsed, &sum.TokenCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}
	sum.Level = domain.SummaryLevel(lvl)
	sum.RangeStart, _ = time.Parse(time.RFC3339Nano, rs)
	sum.RangeEnd, _ = time.Parse(time.RFC3339Nano, re)
	sum.GeneratedAt, _ = time.Parse(time.RFC3339Nano, gen)
	return &sum, nil
}
