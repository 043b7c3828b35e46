// Package engine adapts external indexing engines to the generation
// runner. An engine is any executable that reads a data folder, writes
// a storage artifact, and reports progress on stdout.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	kberr "github.com/mwestra/kbindex/internal/errors"
	"github.com/mwestra/kbindex/internal/generation"
)

// maxLineSize caps one engine output line. Engines that dump binary
// data to stdout would otherwise blow up the scanner.
const maxLineSize = 256 * 1024

// Command describes how to invoke one engine binary. Arguments may use
// the {data_dir} and {storage_path} placeholders so one engine binary
// can serve several index types.
type Command struct {
	Path string
	Args []string
	Dir  string // working directory; empty means inherit
}

// placeholders substituted into configured engine arguments.
const (
	argDataDir     = "{data_dir}"
	argStoragePath = "{storage_path}"
)

// expandArgs substitutes the data/storage placeholders in configured
// arguments. Arguments without placeholders pass through untouched.
func expandArgs(args []string, dataDir, storagePath string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch a {
		case argDataDir:
			out[i] = dataDir
		case argStoragePath:
			out[i] = storagePath
		default:
			out[i] = a
		}
	}
	return out
}

// GenerateFunc builds the runner callback for one index type. The
// subprocess is started per run; its stdout lines stream to emit as
// they arrive, and stderr is folded into the same stream because
// engines disagree about which side progress belongs on.
func GenerateFunc(cmd Command, dataDir, storagePath string, logger *slog.Logger) generation.GenerateFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, emit func(line string)) error {
		args := expandArgs(cmd.Args, dataDir, storagePath)
		proc := exec.CommandContext(ctx, cmd.Path, args...)
		proc.Dir = cmd.Dir

		stdout, err := proc.StdoutPipe()
		if err != nil {
			return kberr.InternalError("open engine stdout", err)
		}
		proc.Stderr = proc.Stdout

		logger.Debug("starting engine process",
			"command", cmd.Path, "args", args)
		if err := proc.Start(); err != nil {
			return kberr.GenerationError(
				fmt.Sprintf("start engine %q", cmd.Path), err)
		}

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			emit(scanner.Text())
		}
		scanErr := scanner.Err()

		if err := proc.Wait(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return kberr.GenerationError(
				fmt.Sprintf("engine %q exited", cmd.Path), err)
		}
		if scanErr != nil {
			return kberr.GenerationError("read engine output", scanErr)
		}
		return nil
	}
}
