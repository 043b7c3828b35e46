package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Signal
	}{
		{
			name: "start line",
			line: "Indexing started",
			want: Signal{Kind: KindStart},
		},
		{
			name: "file count with slash",
			line: "processed 3/6",
			want: Signal{Kind: KindFileProcessed, Processed: 3, Total: 6},
		},
		{
			name: "file count with of",
			line: "Processed 12 of 40 files",
			want: Signal{Kind: KindFileProcessed, Processed: 12, Total: 40},
		},
		{
			name: "parse percentage",
			line: "parsing 40%",
			want: Signal{Kind: KindSubtaskProgress, Phase: PhaseParse, Fraction: 0.4},
		},
		{
			name: "embed percentage",
			line: "embedding: 75%",
			want: Signal{Kind: KindSubtaskProgress, Phase: PhaseEmbed, Fraction: 0.75},
		},
		{
			name: "fractional percentage",
			line: "embedding 75.5%",
			want: Signal{Kind: KindSubtaskProgress, Phase: PhaseEmbed, Fraction: 0.755},
		},
		{
			name: "percentage above hundred clamps",
			line: "parsing 140%",
			want: Signal{Kind: KindSubtaskProgress, Phase: PhaseParse, Fraction: 1},
		},
		{
			name: "parser boundary",
			line: "parsing complete",
			want: Signal{Kind: KindParserComplete},
		},
		{
			name: "parser boundary alternate wording",
			line: "Parser finished",
			want: Signal{Kind: KindParserComplete},
		},
		{
			name: "run completion",
			line: "indexing complete",
			want: Signal{Kind: KindComplete},
		},
		{
			name: "bare done",
			line: "done",
			want: Signal{Kind: KindComplete},
		},
		{
			name: "error with message",
			line: "error: out of memory",
			want: Signal{Kind: KindFailure, Message: "out of memory"},
		},
		{
			name: "failure without trailing message keeps whole line",
			line: "embedding failed",
			want: Signal{Kind: KindFailure, Message: "embedding failed"},
		},
		{
			name: "fatal marker",
			line: "FATAL",
			want: Signal{Kind: KindFailure, Message: "FATAL"},
		},
		{
			name: "failure wins over progress",
			line: "error: parsing 40% then crashed",
			want: Signal{Kind: KindFailure, Message: "parsing 40% then crashed"},
		},
		{
			name: "free text is ignored",
			line: "loading model weights",
			want: Signal{Kind: KindUnrecognized},
		},
		{
			name: "empty line is ignored",
			line: "",
			want: Signal{Kind: KindUnrecognized},
		},
		{
			name: "whitespace only is ignored",
			line: "   \t ",
			want: Signal{Kind: KindUnrecognized},
		},
		{
			name: "restarting does not match start",
			line: "restarting nothing here",
			want: Signal{Kind: KindUnrecognized},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: the raw line is classified
			got := Classify(tt.line)

			// Then: it yields the expected tagged signal
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.Processed, got.Processed)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.Equal(t, tt.want.Phase, got.Phase)
			assert.InDelta(t, tt.want.Fraction, got.Fraction, 1e-9)
			assert.Equal(t, tt.want.Message, got.Message)
			assert.Equal(t, tt.line, got.Raw)
		})
	}
}

func TestSyntheticSignals(t *testing.T) {
	// Given: synthetic signals built by the runner rather than parsed
	start := StartSignal()
	failure := FailureSignal("spawn failed")

	// Then: they carry the same shape as parsed signals
	assert.Equal(t, KindStart, start.Kind)
	assert.Equal(t, KindFailure, failure.Kind)
	assert.Equal(t, "spawn failed", failure.Message)
}
