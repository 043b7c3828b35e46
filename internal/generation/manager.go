package generation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the live generation state for one index type: the state
// machine, the progress tracker, and the broadcaster. All mutation goes
// through ProcessSignal under one mutex, so snapshots are always
// internally consistent and at most one broadcast leaves per signal.
type Manager struct {
	mu          sync.Mutex
	indexType   string
	machine     *Machine
	tracker     *Tracker
	broadcaster *Broadcaster
	clock       func() time.Time
	logger      *slog.Logger

	taskID  string
	stage   string
	message string
}

// NewManager returns a ready manager for one index type. A nil clock
// uses time.Now.
func NewManager(indexType string, logger *slog.Logger, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		indexType:   indexType,
		machine:     NewMachine(),
		tracker:     NewTracker(),
		broadcaster: NewBroadcaster(),
		clock:       clock,
		logger:      logger.With("index_type", indexType),
	}
}

// IndexType returns the index type this manager tracks.
func (m *Manager) IndexType() string {
	return m.indexType
}

// Broadcaster exposes the fan-out for subscribers. Late subscribers
// should take Snapshot first to catch up, then receive deltas.
func (m *Manager) Broadcaster() *Broadcaster {
	return m.broadcaster
}

// Process classifies one raw engine line and applies it. The returned
// bool is false when the line had no effect: unrecognized text, or a
// signal that does not fit the current state.
func (m *Manager) Process(raw string) (Snapshot, bool) {
	return m.ProcessSignal(Classify(raw))
}

// ProcessSignal applies an already-classified signal. At most one
// broadcast is published, and only when the state or progress actually
// changed, so replayed engine lines produce no duplicate events.
func (m *Manager) ProcessSignal(sig Signal) (Snapshot, bool) {
	if sig.Kind == KindUnrecognized {
		return Snapshot{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevState := m.machine.State()
	prevProgress := m.tracker.Value()
	applied := false

	if m.machine.Apply(sig) {
		applied = true
		m.onTransition(prevState, sig)
	} else if m.progressAllowed(sig) {
		if _, ok := m.tracker.Apply(sig); ok {
			applied = true
			m.onProgress(sig)
		}
	}

	if !applied {
		m.logger.Debug("signal ignored in current state",
			"state", string(m.machine.State()), "raw", sig.Raw)
		return Snapshot{}, false
	}

	snap := m.snapshotLocked()
	if m.machine.State() != prevState || m.tracker.Value() != prevProgress {
		m.broadcaster.Publish(EventFromSnapshot(snap))
	}
	return snap, true
}

// progressAllowed gates progress signals to the state that owns them:
// counts and parse percentages belong to the parser phase, embed
// percentages to the generation phase.
func (m *Manager) progressAllowed(sig Signal) bool {
	switch sig.Kind {
	case KindFileProcessed:
		return m.machine.State() == StateParser
	case KindSubtaskProgress:
		if sig.Phase == PhaseEmbed {
			return m.machine.State() == StateGeneration
		}
		return m.machine.State() == StateParser
	}
	return false
}

func (m *Manager) onTransition(from State, sig Signal) {
	switch m.machine.State() {
	case StateParser:
		m.taskID = uuid.NewString()
		m.tracker.BeginRun()
		m.stage = StageParsing
		m.message = "generation started"
		m.logger.Info("generation run started", "task_id", m.taskID)
	case StateGeneration:
		m.tracker.BeginEmbedding()
		m.stage = StageEmbedding
		m.message = "parsing complete, building storage"
		m.logger.Info("parser phase complete", "task_id", m.taskID)
	case StateReady:
		m.tracker.BeginRun()
		m.stage = StageCompleted
		m.message = "generation complete"
		m.logger.Info("generation run complete", "task_id", m.taskID)
	case StateError:
		m.stage = StageFailed
		m.message = sig.Message
		if m.message == "" {
			m.message = sig.Raw
		}
		m.logger.Error("generation run failed",
			"task_id", m.taskID,
			"failed_from", string(from),
			"reason", m.message)
	}
}

func (m *Manager) onProgress(sig Signal) {
	switch sig.Kind {
	case KindFileProcessed:
		m.message = fmt.Sprintf("processed %d/%d files", sig.Processed, sig.Total)
	case KindSubtaskProgress:
		m.message = fmt.Sprintf("%s %d%%", sig.Phase, int(sig.Fraction*100))
	}
}

// Snapshot returns the current consistent view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		IndexType:   m.indexType,
		State:       m.machine.State(),
		Progress:    m.tracker.Value(),
		Stage:       m.stage,
		Message:     m.message,
		ErrorSource: m.machine.ErrorSource(),
		TaskID:      m.taskID,
		Timestamp:   m.clock(),
	}
}

// Reset recovers from a failed run. It only succeeds from the error
// state and broadcasts the resulting ready snapshot.
func (m *Manager) Reset() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.machine.Reset(); err != nil {
		return Snapshot{}, err
	}
	m.tracker.BeginRun()
	m.stage = ""
	m.message = "reset after failure"
	m.logger.Info("generation state reset", "task_id", m.taskID)

	snap := m.snapshotLocked()
	m.broadcaster.Publish(EventFromSnapshot(snap))
	return snap, nil
}

// Close shuts down the broadcaster.
func (m *Manager) Close() {
	m.broadcaster.Close()
}
