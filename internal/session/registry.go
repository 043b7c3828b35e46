package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mwestra/kbindex/internal/config"
	"github.com/mwestra/kbindex/internal/metadata"
)

// Registry hands out one session per user over a shared store and
// configuration. Sessions are created lazily and live until Close.
type Registry struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    metadata.Store
	lockDir  string
	engines  EngineFactory
	logger   *slog.Logger
	clock    func() time.Time
	sessions map[string]*Session
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg *config.Config, store metadata.Store, lockDir string,
	engines EngineFactory, logger *slog.Logger, clock func() time.Time) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		store:    store,
		lockDir:  lockDir,
		engines:  engines,
		logger:   logger,
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, creating it on first use.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := New(userID, r.cfg, r.store, r.lockDir, r.engines, r.logger, r.clock)
	r.sessions[userID] = s
	return s
}

// Invalidate fans a data-folder change out to every session.
func (r *Registry) Invalidate(typ string) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Invalidate(typ)
	}
}

// Close stops every session's runners. The registry is not reusable
// afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
