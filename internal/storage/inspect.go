// Package storage inspects the derived search artifact of an index type.
// kbindex never reads inside the artifact; it only fingerprints it for
// the staleness protocol.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

// Info summarizes a storage artifact.
type Info struct {
	// Exists reports whether the artifact is present at all.
	Exists bool

	// CreatedAt is when the artifact was produced (its mtime).
	CreatedAt time.Time

	// Hash is the content fingerprint (sha256, hex).
	Hash string

	// SizeBytes is the artifact size (sum over entries for directories).
	SizeBytes int64
}

// Inspect stats and fingerprints the artifact at path. A missing
// artifact yields Info{Exists: false}, not an error: absence is an
// expected state before the first generation run.
func Inspect(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &Info{}, nil
	}
	if err != nil {
		return nil, kberr.New(kberr.ErrCodeStorageMissing,
			"cannot stat storage artifact: "+path, err)
	}

	info := &Info{
		Exists:    true,
		CreatedAt: fi.ModTime(),
	}

	if fi.IsDir() {
		hash, size, err := hashDir(path)
		if err != nil {
			return nil, err
		}
		info.Hash = hash
		info.SizeBytes = size
		return info, nil
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}
	info.Hash = hash
	info.SizeBytes = fi.Size()
	return info, nil
}

// hashFile fingerprints a single-file artifact by content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", kberr.Wrap(kberr.ErrCodeStorageMissing, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", kberr.Wrap(kberr.ErrCodeStorageMissing, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashDir fingerprints a directory artifact by a sorted manifest of
// name:size:mtime lines. Reading every file would defeat the point of
// a cheap staleness probe on multi-gigabyte indexes.
func hashDir(dir string) (string, int64, error) {
	type entry struct {
		name  string
		size  int64
		mtime int64
	}

	var entries []entry
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}
		entries = append(entries, entry{rel, info.Size(), info.ModTime().UnixNano()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return "", 0, kberr.Wrap(kberr.ErrCodeStorageMissing, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s:%d:%d\n", e.name, e.size, e.mtime)
	}
	return hex.EncodeToString(h.Sum(nil)), total, nil
}
