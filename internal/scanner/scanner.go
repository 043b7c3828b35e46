// Package scanner enumerates the raw document folder of an index type.
// It produces the ordered file list and timestamps the metadata record
// tracks; it never reads file contents.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	kberr "github.com/mwestra/kbindex/internal/errors"
	"github.com/mwestra/kbindex/internal/ignore"
	"github.com/mwestra/kbindex/internal/metadata"
)

// Result is a full scan of a data folder.
type Result struct {
	// Files is the tracked file list, sorted by name.
	Files []metadata.FileEntry

	// NewestMtime is the max mtime across all tracked files.
	// Zero when the folder is empty.
	NewestMtime time.Time

	// TotalSize is the sum of tracked file sizes in bytes.
	TotalSize int64
}

// Scan walks dir and returns the ordered file list with aggregates.
// Hidden files, directories, symlinks and .kbignore matches are skipped.
func Scan(dir string) (*Result, error) {
	res := &Result{}
	err := walkTracked(dir, func(rel string, info fs.FileInfo) {
		res.Files = append(res.Files, metadata.FileEntry{
			Name:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		res.TotalSize += info.Size()
		if info.ModTime().After(res.NewestMtime) {
			res.NewestMtime = info.ModTime()
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].Name < res.Files[j].Name
	})

	return res, nil
}

// NewestMtime is the cheap probe used by the staleness check: it walks
// mtimes only, without collecting the file list.
func NewestMtime(dir string) (time.Time, error) {
	var newest time.Time
	err := walkTracked(dir, func(_ string, info fs.FileInfo) {
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	})
	if err != nil {
		return time.Time{}, err
	}
	return newest, nil
}

// walkTracked visits every tracked file under dir: not hidden, not a
// symlink, not excluded by the folder's .kbignore.
func walkTracked(dir string, visit func(rel string, info fs.FileInfo)) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return kberr.New(kberr.ErrCodeDataDirNotFound,
			"data folder not found: "+dir, err)
	}

	excl, err := ignore.Load(dir)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip inaccessible entries
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || excl.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if excl.Match(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(rel, info)
		return nil
	})
	if err != nil {
		return kberr.Wrap(kberr.ErrCodeDataDirNotFound, err)
	}
	return nil
}
