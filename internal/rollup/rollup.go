// ABOUTME: Summarization Engine: daily/weekly/monthly hierarchical rollups (spec.md section 4.9)
// ABOUTME: Grounded on the teacher's chunk_engine.go hierarchy idiom and scribe.go retry-then-persist
package rollup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/llm"
	"github.com/harper/sekha/internal/storage/sqlite"
	"github.com/harper/sekha/internal/vectorstore"
)

const (
	minDailyMessages = 3
	minWeeklyDailies = 2
)

type Engine struct {
	messages  *sqlite.MessageStore
	summaries *sqlite.SummaryStore
	summarizer llm.Summarizer
	embedder  llm.Embedder
	vectors   vectorstore.Store
	model     string
}

func New(messages *sqlite.MessageStore, summaries *sqlite.SummaryStore, summarizer llm.Summarizer, embedder llm.Embedder, vectors vectorstore.Store, model string) *Engine {
	return &Engine{messages: messages, summaries: summaries, summarizer: summarizer, embedder: embedder, vectors: vectors, model: model}
}

// RollupDaily groups a conversation's messages into UTC calendar days and
// upserts a daily summary for each day with at least minDailyMessages
// messages (spec.md section 4.9). Regeneration is idempotent via
// SummaryStore.Upsert's (conversation, level, range) key.
func (e *Engine) RollupDaily(ctx context.Context, conv *domain.Conversation) error {
	msgs, err := e.messages.ListByConversation(conv.ID)
	if err != nil {
		return fmt.Errorf("list messages for daily rollup: %w", err)
	}

	days := groupByDay(msgs)
	for day, dayMsgs := range days {
		if len(dayMsgs) < minDailyMessages {
			continue
		}
		start := day
		end := day.Add(24 * time.Hour)
		if err := e.summarizeRange(ctx, conv, domain.LevelDaily, start, end, transcriptOf(dayMsgs), dayMsgs[len(dayMsgs)-1].InsertionID); err != nil {
			log.Warn("daily rollup failed", "conversation_id", conv.ID, "day", day, "err", err)
		}
	}
	return nil
}

// RollupWeekly folds the conversation's daily summaries (ISO week, UTC)
// into a weekly summary when at least minWeeklyDailies dailies exist; with
// fewer, it falls back to summarizing the raw messages in that week
// directly (spec.md section 4.9).
func (e *Engine) RollupWeekly(ctx context.Context, conv *domain.Conversation) error {
	dailies, err := e.summaries.ListByLevel(conv.ID, domain.LevelDaily)
	if err != nil {
		return fmt.Errorf("list dailies for weekly rollup: %w", err)
	}

	weeks := groupSummariesByWeek(dailies)
	msgs, err := e.messages.ListByConversation(conv.ID)
	if err != nil {
		return fmt.Errorf("list messages for weekly fallback: %w", err)
	}
	for _, m := range msgs {
		k := weekKey(m.Timestamp)
		if _, ok := weeks[k]; !ok {
			weeks[k] = nil
		}
	}
	for week, weekDailies := range weeks {
		start, end := weekBounds(week)

		var transcript string
		var lastRowID int64
		if len(weekDailies) >= minWeeklyDailies {
			transcript = joinSummaries(weekDailies)
			for _, d := range weekDailies {
				if d.MessageRowID > lastRowID {
					lastRowID = d.MessageRowID
				}
			}
		} else {
			inWeek := filterByRange(msgs, start, end)
			if len(inWeek) == 0 {
				continue
			}
			transcript = transcriptOf(inWeek)
			lastRowID = inWeek[len(inWeek)-1].InsertionID
		}

		if err := e.summarizeRange(ctx, conv, domain.LevelWeekly, start, end, transcript, lastRowID); err != nil {
			log.Warn("weekly rollup failed", "conversation_id", conv.ID, "week_start", start, "err", err)
		}
	}
	return nil
}

// RollupMonthly folds the conversation's weekly summaries (calendar month,
// UTC) into a monthly summary (spec.md section 4.9).
func (e *Engine) RollupMonthly(ctx context.Context, conv *domain.Conversation) error {
	weeklies, err := e.summaries.ListByLevel(conv.ID, domain.LevelWeekly)
	if err != nil {
		return fmt.Errorf("list weeklies for monthly rollup: %w", err)
	}

	months := groupSummariesByMonth(weeklies)
	for month, monthWeeklies := range months {
		start, end := monthBounds(month)
		transcript := joinSummaries(monthWeeklies)
		var lastRowID int64
		for _, w := range monthWeeklies {
			if w.MessageRowID > lastRowID {
				lastRowID = w.MessageRowID
			}
		}
		if err := e.summarizeRange(ctx, conv, domain.LevelMonthly, start, end, transcript, lastRowID); err != nil {
			log.Warn("monthly rollup failed", "conversation_id", conv.ID, "month", month, "err", err)
		}
	}
	return nil
}

func (e *Engine) summarizeRange(ctx context.Context, conv *domain.Conversation, level domain.SummaryLevel, start, end time.Time, transcript string, lastRowID int64) error {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	prompt := fmt.Sprintf("Write a concise %s summary of this conversation excerpt, preserving concrete facts, decisions and action items.", level)
	text, err := e.summarizer.Summarize(ctx, prompt, transcript)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	sum := &domain.HierarchicalSummary{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Level:          level,
		SummaryText:    text,
		RangeStart:     start,
		RangeEnd:       end,
		GeneratedAt:    time.Now().UTC(),
		ModelUsed:      e.model,
		MessageRowID:   lastRowID,
	}
	sum.TokenCount = (len(text) + 3) / 4

	if err := e.summaries.Upsert(sum); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	vec, err := e.embedder.Embed(ctx, text, e.model)
	if err != nil {
		log.Warn("summary embedding failed, summary persisted but not indexed", "conversation_id", conv.ID, "level", level, "err", err)
		return nil
	}

	metadata := map[string]any{
		"conversation_id":  conv.ID,
		"label":            conv.Label,
		"folder":           conv.Folder,
		"importance_score": conv.ImportanceScore,
		"created_at_epoch": sum.GeneratedAt.Unix(),
		"kind":             "summary",
		"level":            string(level),
	}
	if err := e.vectors.Upsert(ctx, sum.ID, vec, metadata); err != nil {
		log.Warn("summary vector upsert failed", "conversation_id", conv.ID, "level", level, "err", err)
	}
	return nil
}
