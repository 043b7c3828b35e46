package metadata

import "time"

// Decision is the outcome of the three-way staleness check between the
// data folder, the storage artifact, and the metadata record.
type Decision int

const (
	// DecisionRegenerateStorage means the storage artifact predates the
	// newest data file and cannot represent current data.
	DecisionRegenerateStorage Decision = iota
	// DecisionRescanData means the record predates one of the artifacts
	// it summarizes; the data folder must be rescanned to refresh it.
	DecisionRescanData
	// DecisionTrustMetadata means the record is newer than both
	// artifacts and can be served without I/O.
	DecisionTrustMetadata
)

// String returns a human-readable name for the decision.
func (d Decision) String() string {
	switch d {
	case DecisionRegenerateStorage:
		return "regenerate_storage"
	case DecisionRescanData:
		return "rescan_data"
	case DecisionTrustMetadata:
		return "trust_metadata"
	default:
		return "unknown"
	}
}

// Decide compares the three timestamps and returns the required action.
// Rules are evaluated in order, first match wins:
//
//  1. Storage not strictly newer than the newest data file: the artifact
//     cannot represent current data, regenerate it.
//  2. Record not strictly newer than data or storage: the record predates
//     what it summarizes, rescan the data folder.
//  3. Otherwise the record is trustworthy as-is.
//
// Equality is treated as "not newer". Pure function of its inputs: no
// side effects, no I/O, safe to call concurrently without locking.
func Decide(rec *Record, dataNewest, storageCreation time.Time) Decision {
	if !storageCreation.After(dataNewest) {
		return DecisionRegenerateStorage
	}
	if rec == nil {
		return DecisionRescanData
	}
	if !rec.Timestamp.After(dataNewest) || !rec.Timestamp.After(storageCreation) {
		return DecisionRescanData
	}
	return DecisionTrustMetadata
}
