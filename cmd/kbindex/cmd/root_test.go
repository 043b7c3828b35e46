package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a clean kbindex home
	t.Setenv("KBINDEX_HOME", t.TempDir())

	// When: executing with --help
	output, err := execute(t, "--help")

	// Then: it should show usage information
	require.NoError(t, err)
	assert.Contains(t, output, "kbindex", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a clean kbindex home
	t.Setenv("KBINDEX_HOME", t.TempDir())

	// When: executing with --version
	output, err := execute(t, "--version")

	// Then: it should show the version line
	require.NoError(t, err)
	assert.Contains(t, output, "kbindex version")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// When: checking available commands
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	// Then: the expected subcommands exist
	assert.Contains(t, names, "init", "Should have init subcommand")
	assert.Contains(t, names, "serve", "Should have serve subcommand")
	assert.Contains(t, names, "status", "Should have status subcommand")
	assert.Contains(t, names, "generate", "Should have generate subcommand")
	assert.Contains(t, names, "reset", "Should have reset subcommand")
	assert.Contains(t, names, "version", "Should have version subcommand")
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// Then: it should have --config and --debug flags
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"), "Should have --config flag")
	flag := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag, "Should have --debug flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_UnknownCommandFails(t *testing.T) {
	// Given: a clean kbindex home
	t.Setenv("KBINDEX_HOME", t.TempDir())

	// When: executing an unknown subcommand
	_, err := execute(t, "frobnicate")

	// Then: it should fail
	assert.Error(t, err)
}

func TestVersionCmd_PrintsBuildInfo(t *testing.T) {
	// Given: a clean kbindex home
	t.Setenv("KBINDEX_HOME", t.TempDir())

	// When: executing the version subcommand
	output, err := execute(t, "version")

	// Then: it should print version and platform details
	require.NoError(t, err)
	assert.Contains(t, output, "kbindex")
	assert.Contains(t, output, "go", "Should mention the Go runtime version")
}
