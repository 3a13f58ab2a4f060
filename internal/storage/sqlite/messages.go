// ABOUTME: Message CRUD, including the FTS5 search path over messages_fts
// ABOUTME: insertion_id gives the (timestamp, insertion_id) ordering spec.md section 3 requires
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harper/sekha/internal/domain"
)

type MessageStore struct {
	db *DB
}

func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Insert(tx *sql.Tx, m *domain.Message) error {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, timestamp, insertion_id, embedding_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.Timestamp.UTC().Format(time.RFC3339Nano), m.InsertionID, m.EmbeddingID, string(meta),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *MessageStore) SetEmbeddingID(tx *sql.Tx, messageID, embeddingID string) error {
	_, err := tx.Exec(`UPDATE messages SET embedding_id = ? WHERE id = ?`, embeddingID, messageID)
	if err != nil {
		return fmt.Errorf("set embedding id: %w", err)
	}
	return nil
}

func (s *MessageStore) NextInsertionID(tx *sql.Tx, conversationID string) (int64, error) {
	var max sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(insertion_id) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&max); err != nil {
		return 0, fmt.Errorf("next insertion id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64 + 1, nil
}

func (s *MessageStore) ListByConversation(conversationID string) ([]*domain.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, timestamp, insertion_id, embedding_id, metadata
		   FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, insertion_id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *MessageStore) Get(id string) (*domain.Message, error) {
	row := s.db.QueryRow(
		`SELECT id, conversation_id, role, content, timestamp, insertion_id, embedding_id, metadata
		   FROM messages WHERE id = ?`, id)
	var m domain.Message
	var role, ts, meta string
	var embID sql.NullString
	if err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &ts, &m.InsertionID, &embID, &meta); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	m.Role = domain.Role(role)
	m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	if embID.Valid {
		m.EmbeddingID = &embID.String
	}
	_ = json.Unmarshal([]byte(meta), &m.Metadata)
	return &m, nil
}

func (s *MessageStore) GetByIDs(ids []string) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, timestamp, insertion_id, embedding_id, metadata
		   FROM messages WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get messages by ids: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var out []*domain.Message
	for rows.Next() {
		var m domain.Message
		var role, ts, meta string
		var embID sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &ts, &m.InsertionID, &embID, &meta); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if embID.Valid {
			m.EmbeddingID = &embID.String
		}
		_ = json.Unmarshal([]byte(meta), &m.Metadata)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// FTSHit is one BM25-ranked full-text result (spec.md section 4.7).
type FTSHit struct {
	MessageID      string
	ConversationID string
	BM25           float64
}

// MessageFilter narrows SearchFTS to messages whose conversation/role
// attributes match, mirroring vectorstore.Filter's fields so the same
// retrieval.Filter can drive both the vector and FTS legs (spec.md
// section 4.7).
type MessageFilter struct {
	FolderPrefix  string
	Label         string
	Status        string
	Role          string
	CreatedAfter  *int64
	CreatedBefore *int64
	ImportanceMin *int
	ImportanceMax *int
}

// SearchFTS runs a prefix-and-token query against messages_fts, joined back
// through message_rowid (not the UUID id, per the Open Question resolution),
// narrowed by f and paged by (limit, offset).
func (s *MessageStore) SearchFTS(query string, limit, offset int, f MessageFilter) ([]FTSHit, error) {
	ftsQuery := buildFTSQuery(query)
	q := `SELECT m.id, m.conversation_id, bm25(messages_fts) AS rank
		   FROM messages_fts
		   JOIN messages m ON m.message_rowid = messages_fts.rowid
		   JOIN conversations c ON c.id = m.conversation_id
		  WHERE messages_fts MATCH ?`
	args := []any{ftsQuery}

	if f.FolderPrefix != "" {
		q += ` AND c.folder LIKE ?`
		args = append(args, f.FolderPrefix+"%")
	}
	if f.Label != "" {
		q += ` AND c.label = ?`
		args = append(args, f.Label)
	}
	if f.Status != "" {
		q += ` AND c.status = ?`
		args = append(args, f.Status)
	}
	if f.Role != "" {
		q += ` AND m.role = ?`
		args = append(args, f.Role)
	}
	if f.CreatedAfter != nil {
		q += ` AND m.timestamp >= ?`
		args = append(args, time.Unix(*f.CreatedAfter, 0).UTC().Format(time.RFC3339Nano))
	}
	if f.CreatedBefore != nil {
		q += ` AND m.timestamp <= ?`
		args = append(args, time.Unix(*f.CreatedBefore, 0).UTC().Format(time.RFC3339Nano))
	}
	if f.ImportanceMin != nil {
		q += ` AND c.importance_score >= ?`
		args = append(args, *f.ImportanceMin)
	}
	if f.ImportanceMax != nil {
		q += ` AND c.importance_score <= ?`
		args = append(args, *f.ImportanceMax)
	}

	q += ` ORDER BY rank ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search fts: %w", err)
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.MessageID, &h.ConversationID, &h.BM25); err != nil {
			return nil, fmt.Errorf("scan fts hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// buildFTSQuery turns free text into an FTS5 MATCH expression: each token
// becomes a prefix match, ORed together so partial queries still hit.
func buildFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return `""`
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(`"%s"*`, f))
	}
	return strings.Join(parts, " OR ")
}
