// ABOUTME: Label/Prune Intelligence: label suggestion with vocabulary snapping, importance blending, prune recommendation (spec.md section 4.10)
// ABOUTME: Snap-to-vocabulary adapts the teacher's governor.go keyword-overlap matching primitive
package labelprune

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/llm"
	"github.com/harper/sekha/internal/storage/sqlite"
)

// snapThreshold is the maximum normalized edit distance at which a
// suggested label is folded into an existing vocabulary entry rather than
// creating a near-duplicate (spec.md section 4.10).
const snapThreshold = 0.2

const (
	pinnedBonus        = 2
	recentAccessBonus  = 1
	staleAccessPenalty = -1
	recentWindow       = 7 * 24 * time.Hour
	staleWindow        = 90 * 24 * time.Hour
)

type Suggestion struct {
	Label      string
	Confidence float64
	Snapped    bool
}

type PruneCandidate struct {
	Conversation *domain.Conversation
	LastAccessed time.Time
	HasAccess    bool
}

type Intelligence struct {
	conversations *sqlite.ConversationStore
	tags          *sqlite.TagStore
	summarizer    llm.Summarizer
}

func New(conversations *sqlite.ConversationStore, tags *sqlite.TagStore, summarizer llm.Summarizer) *Intelligence {
	return &Intelligence{conversations: conversations, tags: tags, summarizer: summarizer}
}

// SuggestLabels asks the Summarizer for candidate labels, then snaps each
// one onto the existing vocabulary when a close match exists, to avoid
// accumulating near-duplicate labels across conversations.
func (i *Intelligence) SuggestLabels(ctx context.Context, transcript string) ([]Suggestion, error) {
	raw, err := i.summarizer.SuggestLabels(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("suggest labels: %w", err)
	}

	vocabulary, err := i.tags.AllLabels()
	if err != nil {
		return nil, fmt.Errorf("load label vocabulary: %w", err)
	}

	out := make([]Suggestion, 0, len(raw))
	for _, r := range raw {
		label, snapped := snapToVocabulary(r.Label, vocabulary)
		out = append(out, Suggestion{Label: label, Confidence: r.Confidence, Snapped: snapped})
	}
	return out, nil
}

// snapToVocabulary folds candidate onto the closest existing vocabulary
// entry when their normalized Levenshtein distance is within
// snapThreshold; otherwise the candidate is returned unchanged.
func snapToVocabulary(candidate string, vocabulary []string) (string, bool) {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	best := ""
	bestDist := 1.0
	for _, v := range vocabulary {
		v = strings.ToLower(v)
		d := normalizedEditDistance(candidate, v)
		if d < bestDist {
			bestDist = d
			best = v
		}
	}
	if best != "" && bestDist <= snapThreshold {
		return best, true
	}
	return candidate, false
}

// BlendImportance folds access recency onto the conversation's current
// importance score: +2 pinned, +1 accessed within recentWindow, -1 if not
// accessed within staleWindow, clamped to [1,10] (spec.md section 4.10).
func (i *Intelligence) BlendImportance(conv *domain.Conversation) (int, error) {
	score := conv.ImportanceScore
	if conv.Status == domain.StatusPinned {
		score += pinnedBonus
	}

	lastAccessed, ok, err := i.conversations.LastAccessed(conv.ID)
	if err != nil {
		return 0, fmt.Errorf("load last accessed: %w", err)
	}
	if ok {
		age := time.Since(lastAccessed)
		if age <= recentWindow {
			score += recentAccessBonus
		} else if age >= staleWindow {
			score += staleAccessPenalty
		}
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}

// AutoScoreImportance asks the Summarizer to score transcript 1-10, then
// blends that score with access-recency heuristics via BlendImportance
// (spec.md section 4.10). It does not persist the result; callers apply it
// through Repository.SetImportance.
func (i *Intelligence) AutoScoreImportance(ctx context.Context, conv *domain.Conversation, transcript string) (int, error) {
	scored, err := i.summarizer.ScoreImportance(ctx, transcript)
	if err != nil {
		return 0, fmt.Errorf("score importance: %w", err)
	}

	working := *conv
	working.ImportanceScore = scored.Score
	return i.BlendImportance(&working)
}

// PruneCandidates returns conversations eligible for archival: importance at
// most 3, status active (so never pinned), and not updated within
// thresholdDays. Access recency is reported on each candidate but does not
// affect eligibility.
func (i *Intelligence) PruneCandidates(thresholdDays int) ([]PruneCandidate, error) {
	convs, err := i.conversations.PruneCandidates(thresholdDays)
	if err != nil {
		return nil, fmt.Errorf("list prune candidates: %w", err)
	}

	out := make([]PruneCandidate, 0, len(convs))
	for _, c := range convs {
		if c.Status == domain.StatusPinned {
			continue
		}
		last, ok, err := i.conversations.LastAccessed(c.ID)
		if err != nil {
			return nil, fmt.Errorf("load last accessed: %w", err)
		}
		out = append(out, PruneCandidate{Conversation: c, LastAccessed: last, HasAccess: ok})
	}
	return out, nil
}
