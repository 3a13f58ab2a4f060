// ABOUTME: HTTP routing and server wiring for the External Interface Layer (spec.md section 6)
// ABOUTME: Route-group/middleware shape grounded on suPer8Hu-ai-platform's router, expressed over stdlib net/http
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/harper/sekha/internal/assembler"
	"github.com/harper/sekha/internal/config"
	"github.com/harper/sekha/internal/labelprune"
	"github.com/harper/sekha/internal/repository"
	"github.com/harper/sekha/internal/retrieval"
	"github.com/harper/sekha/internal/rollup"
)

type Server struct {
	cfg        *config.Config
	repo       *repository.Repository
	retrieval  *retrieval.Retrieval
	assembler  *assembler.Assembler
	rollup     *rollup.Engine
	labelprune *labelprune.Intelligence
	limiters   *limiterStore
	httpServer *http.Server
}

func New(cfg *config.Config, repo *repository.Repository, ret *retrieval.Retrieval, asm *assembler.Assembler, roll *rollup.Engine, lp *labelprune.Intelligence) *Server {
	s := &Server{
		cfg:        cfg,
		repo:       repo,
		retrieval:  ret,
		assembler:  asm,
		rollup:     roll,
		labelprune: lp,
		limiters:   newLimiterStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	handler := chain(mux,
		withRecover(),
		withLogging(),
		withCORS(cfg.CORS.AllowedOrigins),
		withAuth(cfg.Server.APIKey),
		withRateLimit(s.limiters),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.RequestDeadline,
		WriteTimeout: cfg.RequestDeadline,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/v1/conversations", s.handleStoreConversation)
	mux.HandleFunc("GET /api/v1/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("PUT /api/v1/conversations/{id}/label", s.handleUpdateLabel)
	mux.HandleFunc("PUT /api/v1/conversations/{id}/status", s.handleSetStatus)
	mux.HandleFunc("PUT /api/v1/conversations/{id}/importance", s.handleSetImportance)
	mux.HandleFunc("POST /api/v1/conversations/{id}/importance/auto", s.handleAutoImportance)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", s.handleDeleteConversation)

	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("POST /api/v1/search/fts", s.handleSearchFTS)
	mux.HandleFunc("POST /api/v1/context/assemble", s.handleAssembleContext)

	mux.HandleFunc("POST /api/v1/summarize", s.handleSummarize)
	mux.HandleFunc("POST /api/v1/labels/suggest", s.handleSuggestLabels)
	mux.HandleFunc("POST /api/v1/prune/dry-run", s.handlePruneDryRun)
	mux.HandleFunc("POST /api/v1/prune/execute", s.handlePruneExecute)

	mux.HandleFunc("GET /api/v1/stats", s.handleStats)

	mux.HandleFunc("GET /api/v1/admin/dead-letters", s.handleListDeadLetters)
	mux.HandleFunc("POST /api/v1/admin/dead-letters/purge", s.handlePurgeDeadLetters)
}

// Run starts the listener and blocks until ctx is cancelled, then
// gracefully shuts down (spec.md section 6 exit codes).
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
