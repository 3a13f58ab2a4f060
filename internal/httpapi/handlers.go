// ABOUTME: Route handlers for the External Interface Layer's REST surface (spec.md section 6)
package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/harper/sekha/internal/apperr"
	"github.com/harper/sekha/internal/assembler"
	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/repository"
	"github.com/harper/sekha/internal/retrieval"
)

type messageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type storeConversationRequest struct {
	Label    string         `json:"label"`
	Folder   string         `json:"folder"`
	Messages []messageInput `json:"messages"`
}

func toMessageInputs(in []messageInput) []repository.MessageInput {
	out := make([]repository.MessageInput, 0, len(in))
	for _, m := range in {
		out = append(out, repository.MessageInput{Role: domain.Role(m.Role), Content: m.Content})
	}
	return out
}

func (s *Server) handleStoreConversation(w http.ResponseWriter, r *http.Request) {
	var req storeConversationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Folder == "" {
		req.Folder = "/"
	}

	conv, err := s.repo.StoreConversation(r.Context(), req.Label, req.Folder, toMessageInputs(req.Messages))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.repo.GetConversation(id)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.repo.GetMessageList(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv, "messages": msgs})
}

type updateLabelRequest struct {
	Label  string  `json:"label"`
	Folder *string `json:"folder,omitempty"`
}

func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateLabelRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.repo.UpdateLabel(r.Context(), id, req.Label, req.Folder); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req setStatusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status := domain.ConversationStatus(req.Status)
	switch status {
	case domain.StatusActive, domain.StatusArchived, domain.StatusPinned:
	default:
		writeError(w, apperr.Validation("status must be one of active, archived, pinned"))
		return
	}
	if err := s.repo.SetStatus(r.Context(), id, status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type setImportanceRequest struct {
	Score int `json:"importance_score"`
}

func (s *Server) handleSetImportance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req setImportanceRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.repo.SetImportance(r.Context(), id, req.Score); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAutoImportance scores a conversation's transcript through the
// Summarizer and blends it with access-recency heuristics (spec.md section
// 4.10's "the Summarizer scores 1-10; the engine blends with heuristics"),
// then persists the result.
func (s *Server) handleAutoImportance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.repo.GetConversation(id)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.repo.GetMessageList(id)
	if err != nil {
		writeError(w, err)
		return
	}

	var transcript strings.Builder
	for _, m := range msgs {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	score, err := s.labelprune.AutoScoreImportance(r.Context(), conv, transcript.String())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.repo.SetImportance(r.Context(), id, score); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"importance_score": score})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.DeleteConversation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// filterRequest carries spec.md section 4.7's folder/label/status/role/
// created_at/importance filters, shared by /query and /search/fts.
type filterRequest struct {
	Folder        string `json:"folder"`
	Label         string `json:"label"`
	Status        string `json:"status"`
	Role          string `json:"role"`
	CreatedAfter  *int64 `json:"created_after"`
	CreatedBefore *int64 `json:"created_before"`
	ImportanceMin *int   `json:"importance_min"`
	ImportanceMax *int   `json:"importance_max"`
}

func (f filterRequest) toFilter() retrieval.Filter {
	return retrieval.Filter{
		FolderPrefix:  f.Folder,
		Label:         f.Label,
		Status:        f.Status,
		Role:          f.Role,
		CreatedAfter:  f.CreatedAfter,
		CreatedBefore: f.CreatedBefore,
		ImportanceMin: f.ImportanceMin,
		ImportanceMax: f.ImportanceMax,
	}
}

type queryRequest struct {
	Query  string  `json:"query"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Alpha  float64 `json:"alpha"`
	Mode   string  `json:"mode"`
	filterRequest
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeError(w, apperr.Validation("query must not be empty"))
		return
	}

	f := req.filterRequest.toFilter()
	var (
		resp retrieval.SearchResponse
		err  error
	)
	switch req.Mode {
	case "semantic":
		resp, err = s.retrieval.Semantic(r.Context(), req.Query, req.Limit, req.Offset, f)
	case "fts":
		resp, err = s.retrieval.FullText(r.Context(), req.Query, req.Limit, req.Offset, f)
	default:
		resp, err = s.retrieval.Hybrid(r.Context(), req.Query, req.Limit, req.Offset, f, req.Alpha)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchFTSRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	filterRequest
}

func (s *Server) handleSearchFTS(w http.ResponseWriter, r *http.Request) {
	var req searchFTSRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeError(w, apperr.Validation("query must not be empty"))
		return
	}

	resp, err := s.retrieval.FullText(r.Context(), req.Query, req.Limit, req.Offset, req.filterRequest.toFilter())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type assembleRequest struct {
	Query           string   `json:"query"`
	TokenBudget     int      `json:"token_budget"`
	PreferredLabels []string `json:"preferred_labels"`
	PreferredFolders []string `json:"preferred_folders"`
}

func (s *Server) handleAssembleContext(w http.ResponseWriter, r *http.Request) {
	var req assembleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.TokenBudget <= 0 {
		writeError(w, apperr.Validation("token_budget must be positive"))
		return
	}

	resp, err := s.assembler.Assemble(r.Context(), assembler.Request{
		Query:            req.Query,
		TokenBudget:      req.TokenBudget,
		PreferredLabels:  req.PreferredLabels,
		PreferredFolders: req.PreferredFolders,
		ExcludeIDs:       map[string]bool{},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type summarizeRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	conv, err := s.repo.GetConversation(req.ConversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.rollup.RollupDaily(r.Context(), conv); err != nil {
		writeError(w, err)
		return
	}
	if err := s.rollup.RollupWeekly(r.Context(), conv); err != nil {
		writeError(w, err)
		return
	}
	if err := s.rollup.RollupMonthly(r.Context(), conv); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type suggestLabelsRequest struct {
	Transcript string `json:"transcript"`
}

func (s *Server) handleSuggestLabels(w http.ResponseWriter, r *http.Request) {
	var req suggestLabelsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	suggestions, err := s.labelprune.SuggestLabels(r.Context(), req.Transcript)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type pruneDryRunRequest struct {
	ThresholdDays int `json:"threshold_days"`
}

func (s *Server) handlePruneDryRun(w http.ResponseWriter, r *http.Request) {
	var req pruneDryRunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ThresholdDays <= 0 {
		req.ThresholdDays = 90
	}
	candidates, err := s.labelprune.PruneCandidates(req.ThresholdDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

type pruneExecuteRequest struct {
	ThresholdDays int `json:"threshold_days"`
}

func (s *Server) handlePruneExecute(w http.ResponseWriter, r *http.Request) {
	var req pruneExecuteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ThresholdDays <= 0 {
		req.ThresholdDays = 90
	}

	candidates, err := s.labelprune.PruneCandidates(req.ThresholdDays)
	if err != nil {
		writeError(w, err)
		return
	}

	archived := 0
	for _, c := range candidates {
		if err := s.repo.SetStatus(r.Context(), c.Conversation.ID, domain.StatusArchived); err != nil {
			continue
		}
		archived++
	}
	writeJSON(w, http.StatusOK, map[string]any{"archived": archived})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	conversations, messages, err := s.repo.GetStats(folder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations":  conversations,
		"messages":       messages,
		"queue_depth":    s.repo.Queue().Depth(),
		"queue_degraded": s.repo.Queue().Degraded(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("sekha_embedding_queue_depth " + strconv.FormatInt(s.repo.Queue().Depth(), 10) + "\n"))
}

func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	entries, err := s.repo.DeadLetters().List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": entries})
}

type purgeDeadLettersRequest struct {
	MessageID string `json:"message_id"`
}

func (s *Server) handlePurgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req purgeDeadLettersRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var err error
	if req.MessageID == "" {
		err = s.repo.DeadLetters().PurgeAll()
	} else {
		err = s.repo.DeadLetters().Purge(req.MessageID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
