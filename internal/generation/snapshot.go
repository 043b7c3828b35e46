package generation

import "time"

// Stage labels within a run, carried on snapshots for display.
const (
	StageParsing   = "parsing"
	StageEmbedding = "embedding"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Snapshot is an immutable view of a manager's state at one moment.
// Callers receive copies and never share memory with the manager.
type Snapshot struct {
	IndexType   string    `json:"index_type"`
	State       State     `json:"state"`
	Progress    int       `json:"progress"`
	Stage       string    `json:"stage,omitempty"`
	Message     string    `json:"message,omitempty"`
	ErrorSource State     `json:"error_source,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Active reports whether a run is in flight.
func (s Snapshot) Active() bool {
	return s.State == StateParser || s.State == StateGeneration
}

// Event is the flat wire form delivered to broadcast subscribers and
// streamed over the daemon protocol.
type Event struct {
	IndexType   string `json:"index_type"`
	State       string `json:"state"`
	Progress    int    `json:"progress"`
	Stage       string `json:"stage,omitempty"`
	Message     string `json:"message,omitempty"`
	ErrorSource string `json:"error_source,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// EventFromSnapshot flattens a snapshot for the wire.
func EventFromSnapshot(s Snapshot) Event {
	return Event{
		IndexType:   s.IndexType,
		State:       string(s.State),
		Progress:    s.Progress,
		Stage:       s.Stage,
		Message:     s.Message,
		ErrorSource: string(s.ErrorSource),
		TaskID:      s.TaskID,
		Timestamp:   s.Timestamp.UnixNano(),
	}
}
