package watcher

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func change(path string, op Op) Change {
	return Change{IndexType: "docs", Path: path, Op: op, Timestamp: time.Now()}
}

func receiveBatch(t *testing.T, d *Debouncer) []Change {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted before timeout")
		return nil
	}
}

func TestDebouncer_CoalescesSamePath(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Op
		wantOp Op
	}{
		{name: "create then modify stays create", ops: []Op{OpCreate, OpModify}, wantOp: OpCreate},
		{name: "modify then modify stays modify", ops: []Op{OpModify, OpModify}, wantOp: OpModify},
		{name: "modify then delete becomes delete", ops: []Op{OpModify, OpDelete}, wantOp: OpDelete},
		{name: "delete then create becomes modify", ops: []Op{OpDelete, OpCreate}, wantOp: OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a short debounce window
			d := NewDebouncer(20*time.Millisecond, testLogger())
			defer d.Stop()

			// When: rapid changes land on the same path
			for _, op := range tt.ops {
				d.Add(change("/data/a.md", op))
			}

			// Then: one batch with one merged change comes out
			batch := receiveBatch(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.wantOp, batch[0].Op)
			assert.Equal(t, "docs", batch[0].IndexType)
		})
	}
}

func TestDebouncer_CreateDeleteCancelsOut(t *testing.T) {
	// Given: a temp-file pattern within one window
	d := NewDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()
	d.Add(change("/data/.tmp-swap", OpCreate))
	d.Add(change("/data/.tmp-swap", OpDelete))
	d.Add(change("/data/kept.md", OpModify))

	// Then: only the surviving path is emitted
	batch := receiveBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/data/kept.md", batch[0].Path)
}

func TestDebouncer_SeparatePathsStaySeparate(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()
	d.Add(change("/data/a.md", OpModify))
	d.Add(change("/data/b.md", OpCreate))

	batch := receiveBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncer_WindowResetsOnActivity(t *testing.T) {
	// Given: changes arriving faster than the window
	d := NewDebouncer(50*time.Millisecond, testLogger())
	defer d.Stop()
	d.Add(change("/data/a.md", OpModify))
	time.Sleep(25 * time.Millisecond)
	d.Add(change("/data/b.md", OpModify))

	// Then: both land in the same batch after quiet
	batch := receiveBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, testLogger())
	d.Add(change("/data/a.md", OpModify))

	d.Stop()
	d.Stop()

	_, open := <-d.Output()
	assert.False(t, open)

	// Adds after stop are dropped silently
	d.Add(change("/data/b.md", OpModify))
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Op(99).String())
}
