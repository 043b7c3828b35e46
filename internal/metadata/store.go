package metadata

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store persists metadata records, one per index type.
type Store interface {
	// Save fully replaces the record for rec.IndexType. The write is
	// transactional: it succeeds completely or the previous record
	// stays intact.
	Save(ctx context.Context, rec *Record) error

	// Load returns the record for an index type, or nil when none
	// exists yet. A record that fails validation is returned along
	// with the validation error so callers can repair by rescan.
	Load(ctx context.Context, indexType string) (*Record, error)

	// Delete removes the record for an index type.
	Delete(ctx context.Context, indexType string) error

	// Types lists index types that have a saved record.
	Types(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}

// CachedStore wraps a Store with an LRU read cache keyed by index type.
// Saves write through; loads hit the cache first.
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, *Record]
}

// NewCachedStore creates a caching wrapper around inner.
// size <= 0 falls back to a small default.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 16
	}
	cache, err := lru.New[string, *Record](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

// Save writes through to the inner store and refreshes the cache.
func (s *CachedStore) Save(ctx context.Context, rec *Record) error {
	if err := s.inner.Save(ctx, rec); err != nil {
		return err
	}
	s.cache.Add(rec.IndexType, rec.Clone())
	return nil
}

// Load returns a cached record when present, falling back to the store.
func (s *CachedStore) Load(ctx context.Context, indexType string) (*Record, error) {
	if rec, ok := s.cache.Get(indexType); ok {
		return rec.Clone(), nil
	}

	rec, err := s.inner.Load(ctx, indexType)
	if err != nil {
		return rec, err
	}
	if rec != nil {
		s.cache.Add(indexType, rec.Clone())
	}
	return rec, nil
}

// Delete removes the record from the inner store and the cache.
func (s *CachedStore) Delete(ctx context.Context, indexType string) error {
	if err := s.inner.Delete(ctx, indexType); err != nil {
		return err
	}
	s.cache.Remove(indexType)
	return nil
}

// Invalidate drops a cached record without touching the inner store.
// Used when a data folder watcher reports changes.
func (s *CachedStore) Invalidate(indexType string) {
	s.cache.Remove(indexType)
}

// Types delegates to the inner store.
func (s *CachedStore) Types(ctx context.Context) ([]string, error) {
	return s.inner.Types(ctx)
}

// Close closes the inner store.
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}

// Verify interface implementation at compile time
var _ Store = (*CachedStore)(nil)
