package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGenerateFixture creates a kbindex home whose "docs" engine is a
// shell script emitting the given lines on stdout.
func writeGenerateFixture(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("engine fixtures need a POSIX shell")
	}
	home := t.TempDir()
	t.Setenv("KBINDEX_HOME", home)

	dataDir := filepath.Join(home, "data", "docs")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a.md"), []byte("alpha"), 0o644))

	cfg := `version: 1
index_types:
  - name: docs
    data_dir: ` + dataDir + `
    storage_path: ` + filepath.Join(home, "storage", "docs.idx") + `
    engine:
      command: sh
      args: ["-c", ` + "'" + script + "'" + `]
`
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestGenerateCmd_RunsEngineToCompletion(t *testing.T) {
	// Given: an engine that walks through a full successful run
	script := `echo "starting run"; ` +
		`echo "processed 1 of 2"; ` +
		`echo "processed 2 of 2"; ` +
		`echo "parsing complete"; ` +
		`echo "embedding 100%"; ` +
		`echo "indexing complete"`
	path := writeGenerateFixture(t, script)

	// When: running generate in plain mode
	output, err := execute(t, "generate", "docs", "--config", path, "--plain")

	// Then: progress lines appear and the run finishes
	require.NoError(t, err)
	assert.Contains(t, output, "parser")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "Generated docs")
}

func TestGenerateCmd_ReportsEngineFailure(t *testing.T) {
	// Given: an engine that dies mid-run
	script := `echo "starting run"; echo "error: disk full"; exit 1`
	path := writeGenerateFixture(t, script)

	// When: running generate
	output, err := execute(t, "generate", "docs", "--config", path, "--plain")

	// Then: the failure surfaces both in the stream and the exit error
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "failed")
}

func TestGenerateCmd_UnknownTypeFails(t *testing.T) {
	// Given: a config without the requested type
	path := writeGenerateFixture(t, `echo done`)

	// When: generating a type the config does not define
	_, err := execute(t, "generate", "nope", "--config", path)

	// Then: it should fail before starting anything
	assert.Error(t, err)
}
