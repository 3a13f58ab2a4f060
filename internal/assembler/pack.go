// ABOUTME: Near-duplicate dedup (shingle Jaccard) and greedy token-budget packing for the assembler
package assembler

import (
	"sort"
	"strings"
)

func shingles(text string, n int) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[string]bool)
	if len(words) < n {
		out[strings.Join(words, " ")] = true
		return out
	}
	for i := 0; i+n <= len(words); i++ {
		out[strings.Join(words[i:i+n], " ")] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// dedupNearDuplicates collapses candidates whose 5-word shingle Jaccard
// similarity is >= 0.9, keeping the higher-scored member (spec.md section
// 4.8 step 3).
func dedupNearDuplicates(candidates []*candidate) []*candidate {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	kept := make([]*candidate, 0, len(candidates))
	keptShingles := make([]map[string]bool, 0, len(candidates))

	for _, c := range candidates {
		sh := shingles(c.msg.Content, 5)
		dup := false
		for _, existing := range keptShingles {
			if jaccard(sh, existing) >= 0.9 {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
			keptShingles = append(keptShingles, sh)
		}
	}
	return kept
}

// greedyPack adds candidates highest-score-first under the token budget,
// with a +10% cost discount when the candidate is contiguous (same
// conversation, adjacent insertion_id) with an already-packed message.
// Terminates after three consecutive budget-exceeding misses or pool
// exhaustion (spec.md section 4.8 step 4).
func greedyPack(candidates []*candidate, budget int) []*candidate {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	packed := make([]*candidate, 0, len(candidates))
	packedByConv := make(map[string][]*candidate)
	used := 0
	misses := 0

	for _, c := range candidates {
		cost := c.tokenCost
		if isContiguous(c, packedByConv[c.conv.ID]) {
			cost = int(float64(cost) * 0.9)
		}
		if used+cost > budget {
			misses++
			if misses >= 3 {
				break
			}
			continue
		}
		misses = 0
		used += cost
		packed = append(packed, c)
		packedByConv[c.conv.ID] = append(packedByConv[c.conv.ID], c)
	}
	return packed
}

func isContiguous(c *candidate, inConv []*candidate) bool {
	for _, other := range inConv {
		diff := c.msg.InsertionID - other.msg.InsertionID
		if diff == 1 || diff == -1 {
			return true
		}
	}
	return false
}

// emit orders packed candidates deterministically: by conversation's
// best-scoring member descending, then by timestamp within a conversation,
// with (score desc, created_at desc, id asc) as the final tie-break
// (spec.md section 4.8 step 5).
func emit(packed []*candidate) Response {
	bestScoreByConv := make(map[string]float64)
	for _, c := range packed {
		if s, ok := bestScoreByConv[c.conv.ID]; !ok || c.score > s {
			bestScoreByConv[c.conv.ID] = c.score
		}
	}

	sort.SliceStable(packed, func(i, j int) bool {
		ci, cj := packed[i], packed[j]
		if ci.conv.ID != cj.conv.ID {
			return bestScoreByConv[ci.conv.ID] > bestScoreByConv[cj.conv.ID]
		}
		if ci.msg.Timestamp.Equal(cj.msg.Timestamp) {
			if ci.score != cj.score {
				return ci.score > cj.score
			}
			return ci.msg.ID < cj.msg.ID
		}
		return ci.msg.Timestamp.Before(cj.msg.Timestamp)
	})

	included := make([]Included, 0, len(packed))
	tokens := 0
	for _, c := range packed {
		included = append(included, Included{
			Role:           c.msg.Role,
			Content:        c.msg.Content,
			Timestamp:      c.msg.Timestamp.Unix(),
			ConversationID: c.conv.ID,
			Label:          c.conv.Label,
			Score:          c.score,
		})
		tokens += c.tokenCost
	}

	return Response{Included: included, TokenCount: tokens}
}
