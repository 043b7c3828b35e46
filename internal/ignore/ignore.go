// Package ignore implements exclusion patterns for data folders. A
// .kbignore file at the folder root uses gitignore-style syntax to keep
// files out of the scan, the staleness probe and the watcher.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

// FileName is the exclusion file looked up at the data folder root.
const FileName = ".kbignore"

// Matcher holds compiled exclusion patterns. A nil Matcher matches
// nothing, so callers can use the result of Load unconditionally.
type Matcher struct {
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

// Load reads the .kbignore file under dir. A missing file yields an
// empty matcher; a present but unreadable one is an error.
func Load(dir string) (*Matcher, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return &Matcher{}, nil
	}
	if err != nil {
		return nil, kberr.ConfigError("cannot read "+FileName, err)
	}
	defer func() { _ = f.Close() }()

	m := &Matcher{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, kberr.ConfigError("cannot read "+FileName, err)
	}
	return m, nil
}

// Add compiles one pattern line. Blank lines and comments are dropped.
func (m *Matcher) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	var r rule
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		// "drafts/old" means "/drafts/old", not "**/drafts/old".
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

// Match reports whether the slash-separated path, relative to the data
// folder root, is excluded. Later rules win, so negations can re-admit
// paths an earlier rule excluded.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}
	rel = filepath.ToSlash(rel)

	excluded := false
	for _, r := range m.rules {
		if r.matches(rel, isDir) {
			excluded = !r.negation
		}
	}
	return excluded
}

// Empty reports whether the matcher has no rules.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.rules) == 0
}

func (r rule) matches(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")

	if r.anchored {
		if r.regex.MatchString(rel) {
			return !r.dirOnly || isDir
		}
		if r.dirOnly {
			// Files under an excluded directory are excluded too.
			for i := range parts[:len(parts)-1] {
				if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(parts[len(parts)-1]) || r.regex.MatchString(rel) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex compiles gitignore-style glob syntax. * stays within a
// path segment, ** crosses segments, ? is one character.
func patternToRegex(pattern string) string {
	var b strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
				continue
			}
			if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				b.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
