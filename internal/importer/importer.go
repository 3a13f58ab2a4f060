// ABOUTME: Import watcher: watches ~/.sekha/import/ for ChatGPT/Claude/sekha export JSON and ingests it
// ABOUTME: Supplements spec.md per original_source/src/services/file_watcher.rs; fsnotify idiom grounded on the pack
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/harper/sekha/internal/domain"
	"github.com/harper/sekha/internal/repository"
	"github.com/harper/sekha/internal/storage/sqlite"
)

type Watcher struct {
	importDir   string
	importedDir string
	repo        *repository.Repository
	store       *sqlite.ImportStore
}

func New(importDir, importedDir string, repo *repository.Repository, imports *sqlite.ImportStore) *Watcher {
	return &Watcher{importDir: importDir, importedDir: importedDir, repo: repo, store: imports}
}

// Run watches importDir until ctx is cancelled, processing any file
// already present at startup and then every Create/Write/Rename event.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.importDir, 0o755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}
	if err := os.MkdirAll(w.importedDir, 0o755); err != nil {
		return fmt.Errorf("create imported dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.importDir); err != nil {
		return fmt.Errorf("watch import dir: %w", err)
	}

	w.scanExisting()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			// Debounce: editors and downloaders often emit several
			// write events while a file is still being flushed to disk.
			time.Sleep(250 * time.Millisecond)
			w.process(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("import watcher error", "err", err)
		}
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.importDir)
	if err != nil {
		log.Warn("import watcher: scan existing failed", "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		w.process(filepath.Join(w.importDir, e.Name()))
	}
}

func (w *Watcher) process(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("import watcher: read failed", "path", path, "err", err)
		return
	}

	format := detectFormat(raw)
	imported := &domain.ImportedFile{
		Path:         path,
		SourceFormat: format,
		ImportedAt:   time.Now().UTC(),
	}

	conversations, err := parse(format, raw)
	if err != nil {
		imported.Status = domain.ImportFailed
		imported.Error = err.Error()
		w.finish(path, imported)
		return
	}

	created := 0
	for _, conv := range conversations {
		if len(conv.Messages) == 0 {
			continue
		}
		if _, err := w.repo.StoreConversation(context.Background(), conv.Label, "/imported", conv.Messages); err != nil {
			log.Warn("import watcher: store conversation failed", "path", path, "err", err)
			continue
		}
		created++
	}

	imported.ConversationsCreated = created
	imported.Status = domain.ImportProcessed
	w.finish(path, imported)
}

func (w *Watcher) finish(path string, imported *domain.ImportedFile) {
	if w.store != nil {
		if err := w.store.Record(imported); err != nil {
			log.Warn("import watcher: record failed", "path", path, "err", err)
		}
	}

	dest := filepath.Join(w.importedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		log.Warn("import watcher: move failed", "path", path, "err", err)
	}
}

// detectFormat inspects the export's top-level JSON shape to distinguish
// ChatGPT's conversations.json, Claude's export, and sekha's own export
// (spec.md section 10).
func detectFormat(raw []byte) domain.ImportSourceFormat {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if _, ok := probe["mapping"]; ok {
			return domain.ImportChatGPT
		}
		if _, ok := probe["chat_messages"]; ok {
			return domain.ImportClaude
		}
		if _, ok := probe["sekha_export_version"]; ok {
			return domain.ImportSekhaExport
		}
	}

	var probeArray []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probeArray); err == nil && len(probeArray) > 0 {
		if _, ok := probeArray[0]["mapping"]; ok {
			return domain.ImportChatGPT
		}
		if _, ok := probeArray[0]["chat_messages"]; ok {
			return domain.ImportClaude
		}
	}

	return domain.ImportUnknownFormat
}
