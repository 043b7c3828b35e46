// Package metadata persists the durable record that summarizes the state
// of one index type: the raw document folder (data), the derived search
// artifact (storage), and when each was last seen. The record exists so
// status queries can be answered without rescanning the data folder.
package metadata

import (
	"fmt"
	"time"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

// FileEntry describes one raw document tracked by a record.
type FileEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// Record is the last-known-good summary for one index type.
// It is written atomically: a save either fully replaces the previous
// record or leaves it unchanged.
type Record struct {
	// IndexType is the index type this record belongs to.
	IndexType string `json:"index_type"`

	// Timestamp is when this record was last validated or written.
	Timestamp time.Time `json:"timestamp"`

	// DataNewestTime is the max mtime across the data folder's files.
	DataNewestTime time.Time `json:"data_newest_time"`

	// StorageCreationTime is when the storage artifact was produced.
	StorageCreationTime time.Time `json:"storage_creation_time"`

	// StorageHash is the content fingerprint of the storage artifact.
	StorageHash string `json:"storage_hash"`

	// FileCount is the number of tracked files. Always len(Files).
	FileCount int `json:"file_count"`

	// TotalSize is the sum of tracked file sizes in bytes.
	TotalSize int64 `json:"total_size"`

	// Files is the ordered list of tracked files (sorted by name).
	Files []FileEntry `json:"file_list"`
}

// Validate checks internal consistency of the record.
// A failing record is repaired locally by a rescan, never surfaced
// to the user.
func (r *Record) Validate() error {
	if r == nil {
		return kberr.ValidationError("record is nil", nil)
	}
	if r.IndexType == "" {
		return kberr.ValidationError("record has empty index type", nil)
	}
	if r.FileCount < 0 {
		return kberr.ValidationError(
			fmt.Sprintf("record has negative file count %d", r.FileCount), nil)
	}
	if r.TotalSize < 0 {
		return kberr.ValidationError(
			fmt.Sprintf("record has negative total size %d", r.TotalSize), nil)
	}
	if r.FileCount != len(r.Files) {
		return kberr.ValidationError(
			fmt.Sprintf("file count %d does not match list length %d",
				r.FileCount, len(r.Files)), nil)
	}
	return nil
}

// IsEmpty reports whether the record tracks no files.
func (r *Record) IsEmpty() bool {
	return r == nil || r.FileCount == 0
}

// Clone returns a deep copy of the record so callers can hand it out
// without sharing the file list backing array.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Files = make([]FileEntry, len(r.Files))
	copy(cp.Files, r.Files)
	return &cp
}
