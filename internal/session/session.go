// Package session ties the per-user view together: the current index
// type, its metadata record, and the generation manager/runner pair for
// each type the user has touched.
//
// Ownership is strict in both directions. The session owns metadata
// records and never reaches into a manager's progress state; the
// manager owns snapshots and never persists a record. The two meet only
// when the session constructs a manager for a type.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mwestra/kbindex/internal/config"
	kberr "github.com/mwestra/kbindex/internal/errors"
	"github.com/mwestra/kbindex/internal/generation"
	"github.com/mwestra/kbindex/internal/metadata"
	"github.com/mwestra/kbindex/internal/scanner"
	"github.com/mwestra/kbindex/internal/storage"
)

// Storage health labels reported on StatusData.
const (
	StorageHealthy = "healthy"
	StorageEmpty   = "empty"
	StorageStale   = "stale"
)

// EngineFactory builds the generate callback for one index type.
// Injected so tests can substitute scripted engines.
type EngineFactory func(it config.IndexTypeConfig) generation.GenerateFunc

// StatusData is the flat status view served to the CLI and daemon.
type StatusData struct {
	IndexType     string    `json:"index_type"`
	StorageStatus string    `json:"storage_status"`
	Decision      string    `json:"decision"`
	FileCount     int       `json:"file_count"`
	TotalSize     int64     `json:"total_size"`
	DataNewest    time.Time `json:"data_newest_time"`
	StorageCreate time.Time `json:"storage_creation_time"`
	RecordTime    time.Time `json:"record_timestamp"`
	Rescanned     bool      `json:"rescanned"`
}

// Session is one user's view. All fields are guarded by mu; every
// exported method serializes on it, so concurrent type switches and
// status calls interleave cleanly.
type Session struct {
	mu     sync.Mutex
	userID string
	cfg    *config.Config
	store  metadata.Store
	clock  func() time.Time
	logger *slog.Logger

	lockDir string
	engines EngineFactory

	current  string
	record   *metadata.Record
	managers map[string]*generation.Manager
	runners  map[string]*generation.Runner
}

// New builds a session for one user. A nil clock uses time.Now; a nil
// engine factory yields runners that fail fast when started.
func New(userID string, cfg *config.Config, store metadata.Store, lockDir string,
	engines EngineFactory, logger *slog.Logger, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if engines == nil {
		engines = func(config.IndexTypeConfig) generation.GenerateFunc {
			return func(context.Context, func(string)) error {
				return kberr.InternalError("no indexing engine configured", nil)
			}
		}
	}
	return &Session{
		userID:   userID,
		cfg:      cfg,
		store:    store,
		clock:    clock,
		logger:   logger.With("user_id", userID),
		lockDir:  lockDir,
		engines:  engines,
		managers: make(map[string]*generation.Manager),
		runners:  make(map[string]*generation.Runner),
	}
}

// UserID returns the owning user.
func (s *Session) UserID() string {
	return s.userID
}

// CurrentType returns the active index type, empty before the first
// SetIndexType.
func (s *Session) CurrentType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetIndexType switches the session to an index type. It is the only
// mutator of the current type: it validates the name, refreshes the
// cached record from the store, and lazily creates the type's manager
// and runner. It never touches progress state, so a run already active
// for the type keeps streaming undisturbed.
func (s *Session) SetIndexType(ctx context.Context, typ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cfg.IndexType(typ); err != nil {
		return err
	}

	rec, err := s.store.Load(ctx, typ)
	if err != nil && !kberr.IsValidation(err) {
		return err
	}
	if kberr.IsValidation(err) {
		// A malformed record is repaired by the next status rescan.
		s.logger.Warn("discarding malformed metadata record",
			"index_type", typ, "error", err)
		rec = nil
	}

	s.current = typ
	s.record = rec
	s.ensureManagerLocked(typ)
	s.logger.Debug("index type selected", "index_type", typ)
	return nil
}

func (s *Session) ensureManagerLocked(typ string) {
	if _, ok := s.managers[typ]; ok {
		return
	}
	mgr := generation.NewManager(typ, s.logger, s.clock)
	s.managers[typ] = mgr

	it, err := s.cfg.IndexType(typ)
	if err != nil {
		return
	}
	s.runners[typ] = generation.NewRunner(mgr, s.lockDir, s.engines(it), s.logger)
}

// Manager returns the generation manager for the current type.
func (s *Session) Manager() (*generation.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return nil, noTypeSelected()
	}
	return s.managers[s.current], nil
}

// Runner returns the generation runner for the current type.
func (s *Session) Runner() (*generation.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return nil, noTypeSelected()
	}
	return s.runners[s.current], nil
}

func noTypeSelected() error {
	return kberr.New(kberr.ErrCodeInvalidInput, "no index type selected", nil).
		WithSuggestion("select an index type first")
}

// Status reports the three-way health of the current type's data
// folder, storage artifact, and metadata record, refreshing the record
// when the staleness decision calls for it. A stale storage artifact is
// expected control flow, reported on the status rather than failed.
func (s *Session) Status(ctx context.Context) (StatusData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return StatusData{}, noTypeSelected()
	}
	it, err := s.cfg.IndexType(s.current)
	if err != nil {
		return StatusData{}, err
	}

	dataNewest, err := scanner.NewestMtime(it.DataDir)
	if err != nil {
		return StatusData{}, err
	}
	info, err := storage.Inspect(it.StoragePath)
	if err != nil {
		return StatusData{}, err
	}

	rec := s.record
	decision := metadata.Decide(rec, dataNewest, info.CreatedAt)

	rescanned := false
	if decision == metadata.DecisionRescanData || rec == nil {
		rec, err = s.rescanLocked(ctx, it, info)
		if err != nil {
			return StatusData{}, err
		}
		rescanned = true
		// The fresh record supersedes the pre-rescan decision; without
		// this a consistent folder would read stale on its first query
		// and healthy on the second.
		decision = metadata.Decide(rec, rec.DataNewestTime, info.CreatedAt)
	}

	status := StorageHealthy
	switch {
	case rec.FileCount == 0:
		status = StorageEmpty
	case decision != metadata.DecisionTrustMetadata:
		status = StorageStale
	case !info.Exists:
		status = StorageStale
	}

	return StatusData{
		IndexType:     s.current,
		StorageStatus: status,
		Decision:      decision.String(),
		FileCount:     rec.FileCount,
		TotalSize:     rec.TotalSize,
		DataNewest:    rec.DataNewestTime,
		StorageCreate: rec.StorageCreationTime,
		RecordTime:    rec.Timestamp,
		Rescanned:     rescanned,
	}, nil
}

// rescanLocked walks the data folder and atomically replaces the
// metadata record with a fresh one stamped now.
func (s *Session) rescanLocked(ctx context.Context, it config.IndexTypeConfig, info *storage.Info) (*metadata.Record, error) {
	res, err := scanner.Scan(it.DataDir)
	if err != nil {
		return nil, err
	}

	rec := &metadata.Record{
		IndexType:           it.Name,
		Timestamp:           s.clock(),
		DataNewestTime:      res.NewestMtime,
		StorageCreationTime: info.CreatedAt,
		StorageHash:         info.Hash,
		FileCount:           len(res.Files),
		TotalSize:           res.TotalSize,
		Files:               res.Files,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.record = rec
	s.logger.Info("metadata record refreshed",
		"index_type", it.Name, "file_count", rec.FileCount)
	return rec, nil
}

// Invalidate drops cached state for an index type after its data
// folder changed on disk. The next Status re-derives everything.
func (s *Session) Invalidate(typ string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if typ == s.current {
		s.record = nil
	}
	if inv, ok := s.store.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(typ)
	}
}

// Close stops any active runners and shuts their broadcasters down.
func (s *Session) Close() {
	s.mu.Lock()
	runners := make([]*generation.Runner, 0, len(s.runners))
	for _, r := range s.runners {
		runners = append(runners, r)
	}
	managers := make([]*generation.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
	for _, m := range managers {
		m.Close()
	}
}
