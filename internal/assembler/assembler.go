// ABOUTME: Context Assembler: candidate pool, weighted scoring, dedup, greedy pack (spec.md section 4.8)
// ABOUTME: Packing idiom grounded on the teacher's context_hydrator.go token-budget trimming
package assembler

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/retrieval"
	"github.com/harper/sekha/internal/storage/sqlite"
)

type Weights struct {
	Sem   float64
	BM25  float64
	Rec   float64
	Imp   float64
	Pref  float64
}

func DefaultWeights() Weights {
	return Weights{Sem: 0.45, BM25: 0.15, Rec: 0.20, Imp: 0.15, Pref: 0.05}
}

type Request struct {
	Query                string
	TokenBudget          int
	PreferredLabels      []string
	PreferredFolders     []string
	ExcludeIDs           map[string]bool
	RecencyHalfLifeDays  float64
	PinnedWeight         float64
	Weights              Weights
	TokenEstimator       func(content string) int
}

type Included struct {
	Role           domain.Role
	Content        string
	Timestamp      int64
	ConversationID string
	Label          string
	Score          float64
}

type Response struct {
	Included   []Included
	TokenCount int
}

type candidate struct {
	msg            *domain.Message
	conv           *domain.Conversation
	score          float64
	tokenCost      int
	pinned         bool
}

type Assembler struct {
	hybrid        *retrieval.Retrieval
	conversations *sqlite.ConversationStore
	messages      *sqlite.MessageStore
}

func New(hybrid *retrieval.Retrieval, conversations *sqlite.ConversationStore, messages *sqlite.MessageStore) *Assembler {
	return &Assembler{hybrid: hybrid, conversations: conversations, messages: messages}
}

func defaultTokenEstimate(content string) int {
	return int(math.Ceil(float64(len(content)) / 4))
}

// Assemble runs the deterministic 5-step algorithm of spec.md section 4.8.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Response, error) {
	if req.RecencyHalfLifeDays <= 0 {
		req.RecencyHalfLifeDays = 30
	}
	if req.PinnedWeight <= 0 {
		req.PinnedWeight = 2.0
	}
	w := req.Weights
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	estimate := req.TokenEstimator
	if estimate == nil {
		estimate = defaultTokenEstimate
	}

	// 1. Candidate pool.
	k := req.TokenBudget / 50
	if k > 200 {
		k = 200
	}
	if k < 1 {
		k = 1
	}

	hybridResp, err := a.hybrid.Hybrid(ctx, req.Query, k, 0, retrieval.Filter{}, 0.7)
	if err != nil {
		return Response{}, err
	}

	convCache := map[string]*domain.Conversation{}
	getConv := func(id string) *domain.Conversation {
		if c, ok := convCache[id]; ok {
			return c
		}
		c, _ := a.conversations.Get(id)
		convCache[id] = c
		return c
	}

	candidates := make([]*candidate, 0, len(hybridResp.Results))
	seen := map[string]bool{}
	for _, res := range hybridResp.Results {
		if req.ExcludeIDs[res.Message.ID] {
			continue
		}
		conv := getConv(res.ConversationID)
		if conv == nil {
			continue
		}
		seen[res.Message.ID] = true
		candidates = append(candidates, &candidate{
			msg:    res.Message,
			conv:   conv,
			pinned: conv.Status == domain.StatusPinned,
		})
	}

	// Always union pinned conversations and preferred label/folder matches
	// not already present.
	candidates = append(candidates, a.unionPreferred(req, seen, getConv)...)

	// 2. Scoring.
	now := nowEpoch()
	for _, c := range candidates {
		sem := 0.0
		bm25 := 0.0
		for _, res := range hybridResp.Results {
			if res.Message.ID == c.msg.ID {
				sem = res.SemScore
				bm25 = res.BM25Score
				break
			}
		}
		ageDays := float64(now-c.msg.Timestamp.Unix()) / 86400.0
		recency := math.Pow(2, -ageDays/req.RecencyHalfLifeDays)
		imp := float64(c.conv.ImportanceScore) / 10.0
		pref := 0.0
		if containsFold(req.PreferredLabels, c.conv.Label) || containsFoldPrefix(req.PreferredFolders, c.conv.Folder) {
			pref = 1.0
		}
		pinnedBonus := 0.0
		if c.pinned {
			pinnedBonus = req.PinnedWeight
		}
		c.score = w.Sem*sem + w.BM25*bm25 + w.Rec*recency + w.Imp*imp + w.Pref*pref + pinnedBonus
		c.tokenCost = estimate(c.msg.Content)
	}

	// 3. Deduplication: near-duplicate collapse within a conversation.
	candidates = dedupNearDuplicates(candidates)

	// 4. Pack.
	packed := greedyPack(candidates, req.TokenBudget)

	// 5. Emit: ordered by conversation (highest-scored member), then by
	// intra-conversation timestamp.
	return emit(packed), nil
}

// unionPreferred implements the "always union" half of spec.md section
// 4.8 step 1: pinned conversations and preferred label/folder matches are
// added to the candidate pool even when the k-limited hybrid pool misses
// them, so they can never be silently dropped just for being old.
func (a *Assembler) unionPreferred(req Request, seen map[string]bool, getConv func(string) *domain.Conversation) []*candidate {
	var extra []*domain.Conversation

	pinned, err := a.conversations.ListPinned()
	if err == nil {
		extra = append(extra, pinned...)
	}

	if len(req.PreferredLabels) > 0 || len(req.PreferredFolders) > 0 {
		preferred, err := a.conversations.ListByLabelOrFolder(req.PreferredLabels, req.PreferredFolders)
		if err == nil {
			extra = append(extra, preferred...)
		}
	}

	out := make([]*candidate, 0, len(extra))
	convSeen := map[string]bool{}
	for _, conv := range extra {
		if convSeen[conv.ID] {
			continue
		}
		convSeen[conv.ID] = true

		msgs, err := a.messages.ListByConversation(conv.ID)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if req.ExcludeIDs[m.ID] || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, &candidate{
				msg:    m,
				conv:   conv,
				pinned: conv.Status == domain.StatusPinned,
			})
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func containsFoldPrefix(list []string, v string) bool {
	for _, s := range list {
		if strings.HasPrefix(v, s) {
			return true
		}
	}
	return false
}

func nowEpoch() int64 {
	return time.Now().UTC().Unix()
}
