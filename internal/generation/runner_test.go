package generation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

func scriptedEngine(lines ...string) GenerateFunc {
	return func(ctx context.Context, emit func(line string)) error {
		for _, line := range lines {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			emit(line)
		}
		return nil
	}
}

func TestRunner_SuccessfulRun(t *testing.T) {
	// Given: a runner whose engine streams a complete run
	m := newTestManager(t)
	r := NewRunner(m, t.TempDir(), scriptedEngine(
		"indexing started",
		"processed 2 of 4 files",
		"parsing complete",
		"embedding 100%",
		"indexing complete",
	), testLogger())

	// When: the run is started and awaited
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Wait())

	// Then: the manager ends ready with a completed run
	snap := m.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, StageCompleted, snap.Stage)
	assert.Equal(t, 0, snap.Progress)
	assert.False(t, r.IsRunning())
}

func TestRunner_StartEntersParserBeforeEngineOutput(t *testing.T) {
	// Given: an engine that never prints its own start line
	m := newTestManager(t)
	r := NewRunner(m, t.TempDir(), scriptedEngine(
		"parsing complete",
		"indexing complete",
	), testLogger())

	// When: the run completes
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Wait())

	// Then: the synthetic start still carried the run through
	assert.Equal(t, StateReady, m.Snapshot().State)
	assert.Equal(t, StageCompleted, m.Snapshot().Stage)
}

func TestRunner_SecondStartIsBusy(t *testing.T) {
	// Given: an engine blocked mid-run
	m := newTestManager(t)
	release := make(chan struct{})
	r := NewRunner(m, t.TempDir(), func(ctx context.Context, emit func(line string)) error {
		emit("indexing started")
		<-release
		emit("parsing complete")
		emit("indexing complete")
		return nil
	}, testLogger())
	require.NoError(t, r.Start(context.Background()))

	// When: a second start arrives while the first is active
	err := r.Start(context.Background())

	// Then: it is rejected as busy and retryable
	require.Error(t, err)
	assert.True(t, kberr.IsBusy(err))
	assert.True(t, kberr.IsRetryable(err))

	// And: after release the original run completes normally
	close(release)
	require.NoError(t, r.Wait())
	assert.Equal(t, StateReady, m.Snapshot().State)
}

func TestRunner_LockHeldByAnotherProcessIsBusy(t *testing.T) {
	// Given: another process holding the lock file
	m := newTestManager(t)
	lockDir := t.TempDir()
	other := flock.New(filepath.Join(lockDir, "docs.lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	r := NewRunner(m, lockDir, scriptedEngine("indexing started"), testLogger())

	// When: a run is started
	err = r.Start(context.Background())

	// Then: it is rejected as busy without touching the manager
	require.Error(t, err)
	assert.True(t, kberr.IsBusy(err))
	assert.Equal(t, StateReady, m.Snapshot().State)
}

func TestRunner_EngineErrorMovesManagerToError(t *testing.T) {
	// Given: an engine that dies without printing a failure line
	m := newTestManager(t)
	r := NewRunner(m, t.TempDir(), func(ctx context.Context, emit func(line string)) error {
		emit("indexing started")
		return errors.New("exit status 1")
	}, testLogger())

	// When: the run finishes
	require.NoError(t, r.Start(context.Background()))
	err := r.Wait()

	// Then: the failure is surfaced both ways
	require.Error(t, err)
	assert.Equal(t, kberr.ErrCodeGenerationFailed, kberr.GetCode(err))
	snap := m.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, StateParser, snap.ErrorSource)
}

func TestRunner_CleanExitWithoutCompletionIsFailure(t *testing.T) {
	// Given: an engine that exits zero but never finishes the run
	m := newTestManager(t)
	r := NewRunner(m, t.TempDir(), scriptedEngine(
		"indexing started",
		"processed 1 of 2 files",
	), testLogger())

	// When: the run finishes
	require.NoError(t, r.Start(context.Background()))
	err := r.Wait()

	// Then: the dangling run is treated as failed
	require.Error(t, err)
	assert.Equal(t, kberr.ErrCodeGenerationFailed, kberr.GetCode(err))
	assert.Equal(t, StateError, m.Snapshot().State)
}

func TestRunner_StopCancelsTheRun(t *testing.T) {
	// Given: an engine waiting on cancellation
	m := newTestManager(t)
	started := make(chan struct{})
	r := NewRunner(m, t.TempDir(), func(ctx context.Context, emit func(line string)) error {
		emit("indexing started")
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, testLogger())
	require.NoError(t, r.Start(context.Background()))
	<-started

	// When: the runner is stopped
	r.Stop()

	// Then: the run wound down as a failure and the runner is idle
	assert.False(t, r.IsRunning())
	assert.Equal(t, StateError, m.Snapshot().State)

	// And: a second stop is a no-op
	r.Stop()
}

func TestRunner_LockIsReleasedAfterRun(t *testing.T) {
	// Given: a completed run
	m := newTestManager(t)
	lockDir := t.TempDir()
	r := NewRunner(m, lockDir, scriptedEngine(
		"indexing started", "parsing complete", "indexing complete",
	), testLogger())
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Wait())

	// Then: the lock file is free for another process
	other := flock.New(filepath.Join(lockDir, "docs.lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	_ = other.Unlock()
}
