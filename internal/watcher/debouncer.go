package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Change is one coalesced file-system change inside a watched data
// folder, attributed to the index type that folder belongs to.
type Change struct {
	IndexType string
	Path      string
	Op        Op
	Timestamp time.Time
}

// Op is the kind of change.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Debouncer coalesces bursts of changes so one editor save or git
// checkout triggers one invalidation instead of hundreds. Changes to
// the same path within the window merge:
//   - CREATE then MODIFY stays CREATE (the file is still new)
//   - CREATE then DELETE cancels out
//   - MODIFY then DELETE becomes DELETE
//   - DELETE then CREATE becomes MODIFY (the file was replaced)
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*pendingChange
	output  chan []Change
	timer   *time.Timer
	stopped bool
	logger  *slog.Logger
}

type pendingChange struct {
	change  Change
	firstOp Op
}

// NewDebouncer creates a debouncer emitting batches after window.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingChange),
		output:  make(chan []Change, 10),
		logger:  logger,
	}
}

// Add folds one change into the pending batch and (re)arms the flush
// timer.
func (d *Debouncer) Add(c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[c.Path]; ok {
		merged := coalesce(existing, c)
		if merged == nil {
			delete(d.pending, c.Path)
		} else {
			existing.change = *merged
		}
	} else {
		d.pending[c.Path] = &pendingChange{change: c, firstOp: c.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(existing *pendingChange, next Change) *Change {
	switch existing.firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return &existing.change
		case OpDelete:
			return nil
		}
	case OpDelete:
		if next.Op == OpCreate {
			merged := next
			merged.Op = OpModify
			return &merged
		}
	}
	return &next
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Change, 0, len(d.pending))
	for _, pc := range d.pending {
		batch = append(batch, pc.change)
	}
	d.pending = make(map[string]*pendingChange)

	select {
	case d.output <- batch:
	default:
		d.logger.Warn("debouncer output full, dropping batch",
			"batch_size", len(batch))
	}
}

// Output returns the batch channel. It is closed by Stop.
func (d *Debouncer) Output() <-chan []Change {
	return d.output
}

// Stop drops pending changes and closes the output channel. Safe to
// call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
