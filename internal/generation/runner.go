package generation

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

// GenerateFunc drives one engine run. It emits raw output lines as the
// engine produces them and returns once the engine exits. A non-nil
// error means the run failed for a reason the output lines did not
// already report (spawn failure, non-zero exit).
type GenerateFunc func(ctx context.Context, emit func(line string)) error

// Runner executes engine runs in the background for one index type.
// It enforces single-run-at-a-time twice over: an in-process flag for
// calls through the same daemon, and a file lock for a second kbindex
// process pointed at the same home directory.
type Runner struct {
	manager  *Manager
	generate GenerateFunc
	lockPath string
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	lock    *flock.Flock
	runErr  error
}

// NewRunner wires a runner to its manager. lockDir holds the
// cross-process lock file; generate does the actual work.
func NewRunner(manager *Manager, lockDir string, generate GenerateFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		manager:  manager,
		generate: generate,
		lockPath: filepath.Join(lockDir, manager.IndexType()+".lock"),
		logger:   logger.With("index_type", manager.IndexType()),
	}
}

// Start launches a run in the background. It returns a busy error when
// a run is already active in this process or when another process
// holds the lock file; the caller retries after the active run ends.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return kberr.BusyError(r.manager.IndexType())
	}

	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o755); err != nil {
		return kberr.New(kberr.ErrCodeMetadataIO, "create lock directory", err)
	}
	lock := flock.New(r.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return kberr.New(kberr.ErrCodeMetadataIO, "acquire generation lock", err)
	}
	if !locked {
		return kberr.BusyError(r.manager.IndexType()).
			WithDetail("lock_path", r.lockPath)
	}

	r.running = true
	r.lock = lock
	r.runErr = nil
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.run(ctx, r.stopCh, r.doneCh)
	return nil
}

func (r *Runner) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		if r.lock != nil {
			if err := r.lock.Unlock(); err != nil {
				r.logger.Warn("failed to release generation lock", "error", err)
			}
			r.lock = nil
		}
		r.mu.Unlock()
		close(doneCh)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	// The run enters the parser state before the engine produces any
	// output, so a status query issued right after Start sees it active.
	r.manager.ProcessSignal(StartSignal())

	err := r.generate(runCtx, func(line string) {
		r.manager.Process(line)
	})
	if err != nil {
		genErr := kberr.GenerationError("generation run failed for "+r.manager.IndexType(), err)
		r.manager.ProcessSignal(FailureSignal(genErr.Error()))
		r.mu.Lock()
		r.runErr = genErr
		r.mu.Unlock()
		return
	}

	// An engine that exits cleanly without ever printing a completion
	// marker left the run dangling; treat it as a failure.
	if snap := r.manager.Snapshot(); snap.Active() {
		r.manager.ProcessSignal(FailureSignal("engine exited before completing"))
		r.mu.Lock()
		r.runErr = kberr.New(kberr.ErrCodeGenerationFailed, "engine exited before completing", nil)
		r.mu.Unlock()
	}
}

// Stop requests cancellation of the active run and waits for it to
// wind down. Stopping an idle runner is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	doneCh := r.doneCh
	r.mu.Unlock()

	<-doneCh
}

// Wait blocks until the active run finishes and returns its error.
// A nil error means the engine exited cleanly.
func (r *Runner) Wait() error {
	r.mu.Lock()
	if r.doneCh == nil {
		r.mu.Unlock()
		return nil
	}
	doneCh := r.doneCh
	r.mu.Unlock()

	<-doneCh

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runErr
}

// IsRunning reports whether a run is active in this process.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
