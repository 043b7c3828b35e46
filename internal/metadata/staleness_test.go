package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// at converts a scenario timestamp to a concrete time.
func at(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func recordAt(sec int64) *Record {
	return &Record{
		IndexType: "docs",
		Timestamp: at(sec),
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name            string
		record          *Record
		dataNewest      time.Time
		storageCreation time.Time
		want            Decision
	}{
		{
			name:            "record newer than both artifacts is trusted",
			record:          recordAt(100),
			dataNewest:      at(50),
			storageCreation: at(80),
			want:            DecisionTrustMetadata,
		},
		{
			name:            "storage older than newest data forces regeneration",
			record:          recordAt(200),
			dataNewest:      at(90),
			storageCreation: at(40),
			want:            DecisionRegenerateStorage,
		},
		{
			name:            "storage equal to newest data is not newer",
			record:          recordAt(200),
			dataNewest:      at(90),
			storageCreation: at(90),
			want:            DecisionRegenerateStorage,
		},
		{
			name:            "record older than data forces rescan",
			record:          recordAt(60),
			dataNewest:      at(70),
			storageCreation: at(80),
			want:            DecisionRescanData,
		},
		{
			name:            "record older than storage forces rescan",
			record:          recordAt(75),
			dataNewest:      at(70),
			storageCreation: at(80),
			want:            DecisionRescanData,
		},
		{
			name:            "record equal to data is not newer",
			record:          recordAt(70),
			dataNewest:      at(70),
			storageCreation: at(71),
			want:            DecisionRescanData,
		},
		{
			name:            "record equal to storage is not newer",
			record:          recordAt(80),
			dataNewest:      at(70),
			storageCreation: at(80),
			want:            DecisionRescanData,
		},
		{
			name:            "nil record with fresh storage still rescans",
			record:          nil,
			dataNewest:      at(50),
			storageCreation: at(80),
			want:            DecisionRescanData,
		},
		{
			name:            "regeneration check precedes record check",
			record:          recordAt(10),
			dataNewest:      at(90),
			storageCreation: at(40),
			want:            DecisionRegenerateStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.record, tt.dataNewest, tt.storageCreation)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Records strictly newer than both artifacts must always be trusted,
// regardless of how the artifact times relate to each other.
func TestDecide_TrustIsIdempotent(t *testing.T) {
	rec := recordAt(1000)

	for data := int64(0); data < 100; data += 7 {
		for storage := data + 1; storage < 200; storage += 13 {
			got := Decide(rec, at(data), at(storage))
			assert.Equal(t, DecisionTrustMetadata, got,
				"data=%d storage=%d", data, storage)
		}
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "regenerate_storage", DecisionRegenerateStorage.String())
	assert.Equal(t, "rescan_data", DecisionRescanData.String())
	assert.Equal(t, "trust_metadata", DecisionTrustMetadata.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
