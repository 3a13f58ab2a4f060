// ABOUTME: Main entry point: wires config, storage, LLM adapters, queue, and both HTTP and MCP interfaces
// ABOUTME: Exit codes per spec.md section 6: 0 normal, 2 config-invalid, 3 port-in-use, 4 dependency-unreachable, 130 on SIGINT
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

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

const exitConfigInvalid = 2
const exitPortInUse = 3
const exitDependencyUnreachable = 4

func main() {
	strict := flag.Bool("strict", false, "fail startup if the embedder/vector store are unreachable")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(exitConfigInvalid)
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Error("port unavailable", "err", err)
		os.Exit(exitPortInUse)
	}

	db, err := sqlite.Open(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		log.Error("failed to open database", "err", err)
		os.Exit(exitDependencyUnreachable)
	}
	defer db.Close()

	vectors := vectorstore.NewHTTPStore(cfg.VectorStore.URL, cfg.VectorStore.Collection)
	embedder := llm.NewHTTPEmbedder(cfg.Embedder.URL)
	summarizer := llm.NewHTTPSummarizer(cfg.Summarizer.URL, cfg.Summarizer.Model)

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	dimension, probeErr := embedder.Probe(probeCtx, cfg.Embedder.Model)
	cancelProbe()
	if probeErr != nil {
		log.Warn("embedder dimension probe failed", "err", probeErr)
		if *strict {
			os.Exit(exitDependencyUnreachable)
		}
	} else {
		log.Info("embedder dimension discovered", "dimension", dimension)
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

	if err := config.WatchHotReload(cfg, func(updated *config.Config) {
		log.Info("configuration hot-reloaded", "log_level", updated.Log.Level)
	}); err != nil {
		log.Warn("hot-reload watcher failed to start", "err", err)
	}

	base, err := config.HomeDir()
	if err == nil {
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
		log.Info("mcp server starting on stdio")
		if err := mcpserver.ServeStdio(mcpServer); err != nil {
			log.Warn("mcp server stopped", "err", err)
		}
	}()

	log.Info("http server starting", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err := httpServer.Run(ctx); err != nil {
		log.Error("http server error", "err", err)
	}

	q.Shutdown(10 * time.Second)

	if ctx.Err() != nil {
		os.Exit(130)
	}
}

func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return l.Close()
}
