// ABOUTME: Serve command starts the sekha HTTP and MCP interfaces
// ABOUTME: Wiring mirrors cmd/server/main.go; kept here so sekhactl serve works standalone
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/sekha/internal/assembler"
	"github.com/harper/sekha/internal/config"
	"github.com/harper/sekha/internal/httpapi"
	"github.com/harper/sekha/internal/importer"
	"github.com/harper/sekha/internal/labelprune"
	"github.com/harper/sekha/internal/llm"
	"github.com/harper/sekha/internal/mcp"
	"github.com/harper/sekha/internal/queue"
	"github.com/harper/sekha/internal/reaper"
	"github.com/harper/sekha/internal/repository"
	"github.com/harper/sekha/internal/retrieval"
	"github.com/harper/sekha/internal/rollup"
	"github.com/harper/sekha/internal/storage/sqlite"
	"github.com/harper/sekha/internal/vectorstore"
)

var serveStrict bool

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sekha server (HTTP + MCP)",
		Long: `Start the sekha server, serving the REST API over HTTP and the
MCP tool surface over stdio, using the $HOME/.sekha/config.toml
configuration layer (spec.md section 6).`,
		RunE: runServe,
	}
	cmd.Flags().BoolVar(&serveStrict, "strict", false, "fail startup if the embedder/vector store are unreachable")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	vectors := vectorstore.NewHTTPStore(cfg.VectorStore.URL, cfg.VectorStore.Collection)
	embedder := llm.NewHTTPEmbedder(cfg.Embedder.URL)
	summarizer := llm.NewHTTPSummarizer(cfg.Summarizer.URL, cfg.Summarizer.Model)

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	_, probeErr := embedder.Probe(probeCtx, cfg.Embedder.Model)
	cancelProbe()
	if probeErr != nil {
		log.Warn("embedder dimension probe failed", "err", probeErr)
		if serveStrict {
			return fmt.Errorf("embedder unreachable at startup: %w", probeErr)
		}
	}

	messages := sqlite.NewMessageStore(db)
	conversations := sqlite.NewConversationStore(db)
	summaries := sqlite.NewSummaryStore(db)
	tags := sqlite.NewTagStore(db)
	deadLetters := sqlite.NewDeadLetterStore(db)
	pendingDel := sqlite.NewPendingDeleteStore(db)
	imports := sqlite.NewImportStore(db)

	commit := func(ctx context.Context, messageID, embeddingID string) error {
		_, err := db.Exec(`UPDATE messages SET embedding_id = ? WHERE id = ?`, embeddingID, messageID)
		return err
	}
	deadLetter := func(messageID, reason string) error {
		return deadLetters.Record(messageID, reason)
	}

	q := queue.New(embedder, vectors, cfg.Embedder.Model, 4, commit, deadLetter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	q.Start(ctx)

	repo := repository.New(db, vectors, q)
	ret := retrieval.New(embedder, vectors, messages, cfg.Embedder.Model)
	asm := assembler.New(ret, conversations, messages)
	roll := rollup.New(messages, summaries, summarizer, embedder, vectors, cfg.Summarizer.Model)
	lp := labelprune.New(conversations, tags, summarizer)

	r := reaper.New(conversations, messages, deadLetters, pendingDel, vectors, q, roll,
		reaper.WithSummarization(cfg.Features.SummarizationEnabled))
	go r.Run(ctx)

	if base, err := config.HomeDir(); err == nil {
		w := importer.New(base+"/import", base+"/imported", repo, imports)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warn("import watcher stopped", "err", err)
			}
		}()
	}

	httpServer := httpapi.New(cfg, repo, ret, asm, roll, lp)

	mcpServer := mcpserver.NewMCPServer("sekha", "1.0.0")
	mcp.RegisterTools(mcpServer, repo, ret, asm, roll, lp)
	go func() {
		if err := mcpserver.ServeStdio(mcpServer); err != nil {
			log.Warn("mcp server stopped", "err", err)
		}
	}()

	if err := httpServer.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	q.Shutdown(10 * time.Second)
	return nil
}
