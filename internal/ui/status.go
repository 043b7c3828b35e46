package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwestra/kbindex/internal/generation"
	"github.com/mwestra/kbindex/internal/session"
)

// RenderStatus formats one index type's status report.
func RenderStatus(data session.StatusData, styles Styles) string {
	var b strings.Builder

	b.WriteString(styles.Header.Render(data.IndexType))
	b.WriteString("\n")

	health := styles.Healthy
	switch data.StorageStatus {
	case session.StorageEmpty:
		health = styles.Warn
	case session.StorageStale:
		health = styles.Bad
	}

	writeRow(&b, styles, "storage", health.Render(data.StorageStatus))
	writeRow(&b, styles, "decision", data.Decision)
	writeRow(&b, styles, "files", fmt.Sprintf("%d (%s)", data.FileCount, formatSize(data.TotalSize)))
	writeRow(&b, styles, "data newest", formatTime(data.DataNewest))
	writeRow(&b, styles, "storage built", formatTime(data.StorageCreate))
	writeRow(&b, styles, "record", formatTime(data.RecordTime))
	if data.Rescanned {
		writeRow(&b, styles, "note", "metadata refreshed by this query")
	}
	return b.String()
}

// RenderSnapshot formats a generation snapshot as one line, used by
// plain-mode progress output.
func RenderSnapshot(snap generation.Snapshot, styles Styles) string {
	state := styles.Healthy
	switch snap.State {
	case generation.StateError:
		state = styles.Bad
	case generation.StateParser, generation.StateGeneration:
		state = styles.Warn
	}

	line := fmt.Sprintf("[%3d%%] %s", snap.Progress, state.Render(string(snap.State)))
	if snap.Stage != "" {
		line += " " + styles.Label.Render(snap.Stage)
	}
	if snap.Message != "" {
		line += " " + snap.Message
	}
	if snap.ErrorSource != "" {
		line += styles.Bad.Render(fmt.Sprintf(" (failed in %s)", snap.ErrorSource))
	}
	return line
}

func writeRow(b *strings.Builder, styles Styles, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", styles.Label.Render(fmt.Sprintf("%-14s", label)), value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
