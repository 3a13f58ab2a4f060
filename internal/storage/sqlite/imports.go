// ABOUTME: imported_files bookkeeping for the import watcher (SPEC_FULL.md section 10)
package sqlite

import (
	"fmt"

	"github.com/harper/sekha/internal/domain"
)

type ImportStore struct {
	db *DB
}

func NewImportStore(db *DB) *ImportStore {
	return &ImportStore{db: db}
}

func (s *ImportStore) Record(f *domain.ImportedFile) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, source_format, imported_at, conversations_created, status, error)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   source_format = excluded.source_format,
		   imported_at = excluded.imported_at,
		   conversations_created = excluded.conversations_created,
		   status = excluded.status,
		   error = excluded.error`,
		f.Path, string(f.SourceFormat), f.ImportedAt.Format("2006-01-02T15:04:05Z07:00"), f.ConversationsCreated, string(f.Status), f.Error)
	if err != nil {
		return fmt.Errorf("record imported file: %w", err)
	}
	return nil
}
