// ABOUTME: Repository is the sole mutator of the Relational Store and the only enqueuer (spec.md section 4.6)
// ABOUTME: Grounded on the teacher's storage.go facade-over-stores shape, generalized to the new schema
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harper/sekha/internal/apperr"
	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/queue"
	"github.com/harper/sekha/internal/storage/sqlite"
	"github.com/harper/sekha/internal/vectorstore"
)

type Repository struct {
	db           *sqlite.DB
	conversations *sqlite.ConversationStore
	messages     *sqlite.MessageStore
	summaries    *sqlite.SummaryStore
	tags         *sqlite.TagStore
	deadLetters  *sqlite.DeadLetterStore
	pendingDel   *sqlite.PendingDeleteStore
	vectors      vectorstore.Store
	queue        *queue.Queue
}

func New(db *sqlite.DB, vectors vectorstore.Store, q *queue.Queue) *Repository {
	return &Repository{
		db:            db,
		conversations: sqlite.NewConversationStore(db),
		messages:      sqlite.NewMessageStore(db),
		summaries:     sqlite.NewSummaryStore(db),
		tags:          sqlite.NewTagStore(db),
		deadLetters:   sqlite.NewDeadLetterStore(db),
		pendingDel:    sqlite.NewPendingDeleteStore(db),
		vectors:       vectors,
		queue:         q,
	}
}

type MessageInput struct {
	Role    domain.Role
	Content string
}

// ValidateFolder enforces I6: leading slash, no trailing slash except root,
// no empty segments.
func ValidateFolder(folder string) error {
	if folder == "" {
		return apperr.Validation("folder must not be empty")
	}
	if !strings.HasPrefix(folder, "/") {
		return apperr.Validation("folder must start with /")
	}
	if folder != "/" && strings.HasSuffix(folder, "/") {
		return apperr.Validation("folder must not end with / except root")
	}
	for _, seg := range strings.Split(strings.Trim(folder, "/"), "/") {
		if seg == "" && folder != "/" {
			return apperr.Validation("folder must not contain empty segments")
		}
	}
	return nil
}

func ValidateImportance(score int) error {
	if score < 1 || score > 10 {
		return apperr.Validation("importance_score must be between 1 and 10")
	}
	return nil
}

// StoreConversation implements spec.md section 4.6: begins a transaction,
// inserts the conversation row, inserts all messages, commits, then
// enqueues each message for embedding. On any error nothing is enqueued,
// preserving I2's "vector exists implies message exists" direction.
func (r *Repository) StoreConversation(ctx context.Context, label, folder string, msgs []MessageInput) (*domain.Conversation, error) {
	if len(msgs) == 0 {
		return nil, apperr.Validation("message list must not be empty")
	}
	if err := ValidateFolder(folder); err != nil {
		return nil, err
	}

	conv := &domain.Conversation{
		ID:              uuid.NewString(),
		Label:           label,
		Folder:          folder,
		Status:          domain.StatusActive,
		ImportanceScore: 5,
		CreatedAt:       time.Now().UTC(),
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.conversations.Insert(tx, conv); err != nil {
		return nil, err
	}

	stored := make([]*domain.Message, 0, len(msgs))
	for i, mi := range msgs {
		m := &domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           mi.Role,
			Content:        mi.Content,
			Timestamp:      time.Now().UTC(),
			InsertionID:    int64(i),
		}
		if err := r.messages.Insert(tx, m); err != nil {
			return nil, err
		}
		stored = append(stored, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit store_conversation: %w", err)
	}

	for _, m := range stored {
		r.queue.Enqueue(m.ID, conv.ID, m.Content, string(m.Role), conv.Label, conv.Folder, conv.ImportanceScore)
	}

	return conv, nil
}

// AppendMessages follows the identical pattern; updated_at advances via
// the conversations_touch_on_message trigger.
func (r *Repository) AppendMessages(ctx context.Context, conversationID string, msgs []MessageInput) ([]*domain.Message, error) {
	if len(msgs) == 0 {
		return nil, apperr.Validation("message list must not be empty")
	}

	conv, err := r.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation not found")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	next, err := r.messages.NextInsertionID(tx, conversationID)
	if err != nil {
		return nil, err
	}

	stored := make([]*domain.Message, 0, len(msgs))
	for i, mi := range msgs {
		m := &domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           mi.Role,
			Content:        mi.Content,
			Timestamp:      time.Now().UTC(),
			InsertionID:    next + int64(i),
		}
		if err := r.messages.Insert(tx, m); err != nil {
			return nil, err
		}
		stored = append(stored, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append_messages: %w", err)
	}

	for _, m := range stored {
		r.queue.Enqueue(m.ID, conversationID, m.Content, string(m.Role), conv.Label, conv.Folder, conv.ImportanceScore)
	}

	return stored, nil
}

func (r *Repository) UpdateLabel(ctx context.Context, conversationID, label string, folder *string) error {
	if folder != nil {
		if err := ValidateFolder(*folder); err != nil {
			return err
		}
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.conversations.UpdateLabel(tx, conversationID, label, folder); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) SetStatus(ctx context.Context, conversationID string, status domain.ConversationStatus) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.conversations.SetStatus(tx, conversationID, status); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) SetImportance(ctx context.Context, conversationID string, score int) error {
	if err := ValidateImportance(score); err != nil {
		return err
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.conversations.SetImportance(tx, conversationID, score); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteConversation transactionally deletes the conversation (cascade
// handles messages, summaries, tags, FTS); then issues
// vector_store.delete_where. The Relational delete is the truth — if the
// vector delete fails, it is recorded for the reaper (spec.md section 4.6).
func (r *Repository) DeleteConversation(ctx context.Context, conversationID string) error {
	conv, err := r.conversations.Get(conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return apperr.NotFound("conversation not found")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.conversations.Delete(tx, conversationID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete_conversation: %w", err)
	}

	if err := r.vectors.DeleteWhere(ctx, vectorstore.Filter{ConversationID: conversationID}); err != nil {
		if recErr := r.pendingDel.Record(conversationID); recErr != nil {
			return fmt.Errorf("vector delete failed and could not record pending delete: %w", recErr)
		}
	}
	return nil
}

func (r *Repository) GetConversation(conversationID string) (*domain.Conversation, error) {
	conv, err := r.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation not found")
	}
	_ = r.conversations.TouchAccess(conversationID)
	return conv, nil
}

func (r *Repository) GetMessageList(conversationID string) ([]*domain.Message, error) {
	return r.messages.ListByConversation(conversationID)
}

func (r *Repository) GetStats(folder string) (conversations, messages int, err error) {
	return r.conversations.Stats(folder)
}

func (r *Repository) DB() *sqlite.DB                           { return r.db }
func (r *Repository) Messages() *sqlite.MessageStore            { return r.messages }
func (r *Repository) Conversations() *sqlite.ConversationStore  { return r.conversations }
func (r *Repository) Summaries() *sqlite.SummaryStore            { return r.summaries }
func (r *Repository) Tags() *sqlite.TagStore                     { return r.tags }
func (r *Repository) DeadLetters() *sqlite.DeadLetterStore       { return r.deadLetters }
func (r *Repository) PendingDeletes() *sqlite.PendingDeleteStore { return r.pendingDel }
func (r *Repository) Vectors() vectorstore.Store                 { return r.vectors }
func (r *Repository) Queue() *queue.Queue                        { return r.queue }
