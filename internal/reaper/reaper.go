// ABOUTME: Periodic reconciliation: drains failed_embeddings and pending_vector_deletes, schedules rollups
// ABOUTME: Grounded on the teacher's background-goroutine idiom in scribe.go (UpdateProfileAsync)
package reaper

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/sekha/internal/queue"
	"github.com/harper/sekha/internal/rollup"
	"github.com/harper/sekha/internal/storage/sqlite"
	"github.com/harper/sekha/internal/vectorstore"
)

const defaultInterval = 5 * time.Minute

type Reaper struct {
	conversations *sqlite.ConversationStore
	messages      *sqlite.MessageStore
	deadLetters   *sqlite.DeadLetterStore
	pendingDel    *sqlite.PendingDeleteStore
	vectors       vectorstore.Store
	queue         *queue.Queue
	rollup        *rollup.Engine

	interval            time.Duration
	summarizationEnabled bool
}

type Option func(*Reaper)

func WithInterval(d time.Duration) Option {
	return func(r *Reaper) { r.interval = d }
}

func WithSummarization(enabled bool) Option {
	return func(r *Reaper) { r.summarizationEnabled = enabled }
}

func New(conversations *sqlite.ConversationStore, messages *sqlite.MessageStore, deadLetters *sqlite.DeadLetterStore, pendingDel *sqlite.PendingDeleteStore, vectors vectorstore.Store, q *queue.Queue, engine *rollup.Engine, opts ...Option) *Reaper {
	r := &Reaper{
		conversations: conversations,
		messages:      messages,
		deadLetters:   deadLetters,
		pendingDel:    pendingDel,
		vectors:       vectors,
		queue:         q,
		rollup:        engine,
		interval:      defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loops until ctx is cancelled. Only one reaper is expected to run per
// process; no distributed locking is implemented since a single-process
// deployment is spec.md's stated scope.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	r.drainDeadLetters(ctx)
	r.drainPendingDeletes(ctx)
	if r.summarizationEnabled {
		r.runRollups(ctx)
	}
}

func (r *Reaper) drainDeadLetters(ctx context.Context) {
	entries, err := r.deadLetters.List()
	if err != nil {
		log.Warn("reaper: list dead letters failed", "err", err)
		return
	}

	for _, e := range entries {
		m, err := r.messages.Get(e.MessageID)
		if err != nil || m == nil {
			continue
		}
		conv, err := r.conversations.Get(m.ConversationID)
		if err != nil || conv == nil {
			continue
		}
		r.queue.ReEnqueue(m, conv)
		if err := r.deadLetters.Purge(e.MessageID); err != nil {
			log.Warn("reaper: purge dead letter failed", "message_id", e.MessageID, "err", err)
		}
	}
}

func (r *Reaper) drainPendingDeletes(ctx context.Context) {
	pending, err := r.pendingDel.List()
	if err != nil {
		log.Warn("reaper: list pending deletes failed", "err", err)
		return
	}

	for _, p := range pending {
		if err := r.vectors.DeleteWhere(ctx, vectorstore.Filter{ConversationID: p.ConversationID}); err != nil {
			_ = r.pendingDel.MarkFailed(p.ConversationID, err.Error())
			continue
		}
		if err := r.pendingDel.Clear(p.ConversationID); err != nil {
			log.Warn("reaper: clear pending delete failed", "conversation_id", p.ConversationID, "err", err)
		}
	}
}

func (r *Reaper) runRollups(ctx context.Context) {
	active, err := r.conversations.ListActive()
	if err != nil {
		log.Warn("reaper: list conversations for rollup failed", "err", err)
		return
	}
	for _, conv := range active {
		if err := r.rollup.RollupDaily(ctx, conv); err != nil {
			log.Warn("reaper: daily rollup failed", "conversation_id", conv.ID, "err", err)
		}
		if err := r.rollup.RollupWeekly(ctx, conv); err != nil {
			log.Warn("reaper: weekly rollup failed", "conversation_id", conv.ID, "err", err)
		}
		if err := r.rollup.RollupMonthly(ctx, conv); err != nil {
			log.Warn("reaper: monthly rollup failed", "conversation_id", conv.ID, "err", err)
		}
	}
}
