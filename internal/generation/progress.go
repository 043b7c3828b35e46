package generation

import "math"

// Tracker fuses file-count progress and sub-task percentages into one
// 0-100 value. The parser half of a run owns 0-50 and the embedding
// half owns 50-100; within a run the value never moves backwards, so
// out-of-order or duplicated engine lines cannot make a progress bar
// jitter. Not safe for concurrent use; the Manager serializes access.
type Tracker struct {
	value int
	floor int
}

// NewTracker returns a tracker at zero.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Value returns the current fused percentage.
func (t *Tracker) Value() int {
	return t.value
}

// BeginRun resets the tracker for a fresh run.
func (t *Tracker) BeginRun() {
	t.value = 0
	t.floor = 0
}

// BeginEmbedding snaps the value to exactly 50 at the parser/embedding
// boundary and raises the floor so later parse-phase stragglers cannot
// pull it back down.
func (t *Tracker) BeginEmbedding() {
	t.value = 50
	t.floor = 50
}

// Apply folds one progress signal into the fused value. It returns the
// resulting value and whether the signal carried usable progress.
// File counts with a non-positive total are dropped rather than
// dividing by zero. Raw values are clamped to the owning segment and
// then to the monotonic floor, so the returned value may simply repeat
// the current one.
func (t *Tracker) Apply(sig Signal) (int, bool) {
	var raw int
	switch sig.Kind {
	case KindFileProcessed:
		if sig.Total <= 0 {
			return t.value, false
		}
		raw = int(math.Round(float64(sig.Processed) / float64(sig.Total) * 100))
		raw = clamp(raw, 0, 50)
	case KindSubtaskProgress:
		switch sig.Phase {
		case PhaseParse:
			raw = clamp(int(math.Round(sig.Fraction*50)), 0, 50)
		case PhaseEmbed:
			raw = clamp(int(math.Round(50+sig.Fraction*50)), 50, 100)
		default:
			return t.value, false
		}
	default:
		return t.value, false
	}

	if raw < t.floor {
		raw = t.floor
	}
	if raw > t.value {
		t.value = raw
	}
	return t.value, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
