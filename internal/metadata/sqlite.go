package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	kberr "github.com/mwestra/kbindex/internal/errors"
)

// schema holds records and their ordered file lists. Deleting a record
// cascades to its files so a save can never leave orphan rows.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	index_type            TEXT PRIMARY KEY,
	timestamp             INTEGER NOT NULL,
	data_newest_time      INTEGER NOT NULL,
	storage_creation_time INTEGER NOT NULL,
	storage_hash          TEXT NOT NULL,
	file_count            INTEGER NOT NULL,
	total_size            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS record_files (
	index_type TEXT    NOT NULL REFERENCES records(index_type) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	name       TEXT    NOT NULL,
	size       INTEGER NOT NULL,
	mtime      INTEGER NOT NULL,
	PRIMARY KEY (index_type, position)
);
`

// SQLiteStore implements Store on a single SQLite database file.
// WAL mode allows the daemon and CLI to read concurrently.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the metadata database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params
	// may be ignored by the driver.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Save fully replaces the record for rec.IndexType in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Replace wholesale: the cascade clears the old file list.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE index_type = ?`, rec.IndexType); err != nil {
		return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records
		 (index_type, timestamp, data_newest_time, storage_creation_time, storage_hash, file_count, total_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.IndexType,
		rec.Timestamp.UnixNano(),
		rec.DataNewestTime.UnixNano(),
		rec.StorageCreationTime.UnixNano(),
		rec.StorageHash,
		rec.FileCount,
		rec.TotalSize,
	); err != nil {
		return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO record_files (index_type, position, name, size, mtime)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, f := range rec.Files {
		if _, err := stmt.ExecContext(ctx,
			rec.IndexType, i, f.Name, f.Size, f.ModTime.UnixNano()); err != nil {
			return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	return nil
}

// Load returns the record for an index type, or nil when none exists.
// A record that fails validation is returned together with the
// validation error so the caller can repair it by rescanning.
func (s *SQLiteStore) Load(ctx context.Context, indexType string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT timestamp, data_newest_time, storage_creation_time, storage_hash, file_count, total_size
		 FROM records WHERE index_type = ?`, indexType)

	var ts, dataTS, storageTS, totalSize int64
	var fileCount int
	var hash string
	err := row.Scan(&ts, &dataTS, &storageTS, &hash, &fileCount, &totalSize)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	rec := &Record{
		IndexType:           indexType,
		Timestamp:           time.Unix(0, ts),
		DataNewestTime:      time.Unix(0, dataTS),
		StorageCreationTime: time.Unix(0, storageTS),
		StorageHash:         hash,
		FileCount:           fileCount,
		TotalSize:           totalSize,
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, size, mtime FROM record_files
		 WHERE index_type = ? ORDER BY position`, indexType)
	if err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var f FileEntry
		var mtime int64
		if err := rows.Scan(&f.Name, &f.Size, &mtime); err != nil {
			return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
		}
		f.ModTime = time.Unix(0, mtime)
		rec.Files = append(rec.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}

	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// Delete removes the record and its file list.
func (s *SQLiteStore) Delete(ctx context.Context, indexType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE index_type = ?`, indexType); err != nil {
		return kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	return nil
}

// Types lists index types with a saved record.
func (s *SQLiteStore) Types(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT index_type FROM records ORDER BY index_type`)
	if err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	defer func() { _ = rows.Close() }()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeMetadataIO, err)
	}
	return types, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close metadata db: %w", err)
	}
	return nil
}
