// Package generation tracks the lifecycle of one indexing-engine run:
// it classifies the engine's raw output into signals, drives the
// READY/PARSER/GENERATION/ERROR state machine, fuses file counts and
// sub-task percentages into one monotonic progress value, and fans the
// resulting snapshots out to subscribers.
package generation

import (
	"regexp"
	"strconv"
	"strings"
)

// SignalKind classifies one unit of raw engine output.
type SignalKind int

const (
	// KindUnrecognized is the silent-tolerance bucket: the line matched
	// no known pattern and is ignored without error.
	KindUnrecognized SignalKind = iota
	// KindStart begins a run.
	KindStart
	// KindFileProcessed reports discrete file-count progress.
	KindFileProcessed
	// KindSubtaskProgress reports a sub-task percentage bar.
	KindSubtaskProgress
	// KindParserComplete marks the parser/generation phase boundary.
	KindParserComplete
	// KindComplete finishes a run successfully.
	KindComplete
	// KindFailure reports that the engine errored.
	KindFailure
)

// Phase identifies which sub-task a percentage belongs to.
type Phase string

const (
	// PhaseParse is the document parsing half of a run (0-50).
	PhaseParse Phase = "parse"
	// PhaseEmbed is the embedding/storage-building half (50-100).
	PhaseEmbed Phase = "embed"
)

// Signal is the tagged variant produced by classification.
type Signal struct {
	Kind SignalKind

	// Processed/Total are set for KindFileProcessed.
	Processed int
	Total     int

	// Phase/Fraction are set for KindSubtaskProgress. Fraction is 0-1.
	Phase    Phase
	Fraction float64

	// Message carries the failure text for KindFailure.
	Message string

	// Raw is the original line, kept for logging.
	Raw string
}

// The engine's output is free-form and evolving; these patterns are the
// single place raw text is interpreted. Order matters: failure markers
// win over everything, the phase-boundary marker wins over the generic
// completion marker, and counts win over percentages.
var (
	failurePattern        = regexp.MustCompile(`(?i)\b(?:error|failed|failure|fatal)\b[:\s]*(.*)$`)
	parserCompletePattern = regexp.MustCompile(`(?i)\bpars(?:er|ing)\s+(?:complete|completed|done|finished)\b`)
	completePattern       = regexp.MustCompile(`(?i)(?:\b(?:generation|indexing|embedding|index)\s+(?:complete|completed|done|finished)\b|^(?:complete|done)$)`)
	fileProcessedPattern  = regexp.MustCompile(`(?i)processed\s+(\d+)\s*(?:/|of)\s*(\d+)`)
	subtaskPattern        = regexp.MustCompile(`(?i)\b(pars(?:e|ing)?|embed(?:ding)?)\b[^0-9%]*(\d+(?:\.\d+)?)\s*%`)
	startPattern          = regexp.MustCompile(`(?i)\bstart(?:ed|ing)?\b`)
)

// Classify turns one raw engine line into a Signal.
// Lines that match nothing are KindUnrecognized, never an error.
func Classify(line string) Signal {
	raw := line
	line = strings.TrimSpace(line)
	if line == "" {
		return Signal{Kind: KindUnrecognized, Raw: raw}
	}

	if m := failurePattern.FindStringSubmatch(line); m != nil {
		msg := strings.TrimSpace(m[1])
		if msg == "" {
			msg = line
		}
		return Signal{Kind: KindFailure, Message: msg, Raw: raw}
	}

	if parserCompletePattern.MatchString(line) {
		return Signal{Kind: KindParserComplete, Raw: raw}
	}

	if completePattern.MatchString(line) {
		return Signal{Kind: KindComplete, Raw: raw}
	}

	if m := fileProcessedPattern.FindStringSubmatch(line); m != nil {
		processed, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		return Signal{Kind: KindFileProcessed, Processed: processed, Total: total, Raw: raw}
	}

	if m := subtaskPattern.FindStringSubmatch(line); m != nil {
		pct, _ := strconv.ParseFloat(m[2], 64)
		fraction := pct / 100
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		phase := PhaseParse
		if strings.HasPrefix(strings.ToLower(m[1]), "embed") {
			phase = PhaseEmbed
		}
		return Signal{Kind: KindSubtaskProgress, Phase: phase, Fraction: fraction, Raw: raw}
	}

	if startPattern.MatchString(line) {
		return Signal{Kind: KindStart, Raw: raw}
	}

	return Signal{Kind: KindUnrecognized, Raw: raw}
}

// StartSignal builds a synthetic run-start signal.
func StartSignal() Signal {
	return Signal{Kind: KindStart, Raw: "start"}
}

// FailureSignal builds a synthetic failure signal from a Go error
// raised by the engine adapter rather than an engine output line.
func FailureSignal(message string) Signal {
	return Signal{Kind: KindFailure, Message: message, Raw: message}
}
