// Package daemon exposes the session and generation layers over a
// JSON-RPC 2.0 Unix socket, line-delimited. One connection may issue
// any number of requests; the events method switches the connection
// into a one-way stream.
package daemon

import "fmt"

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodSignal = "signal"
	MethodStart  = "start"
	MethodReset  = "reset"
	MethodEvents = "events"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	// ErrCodeNotConfigured means the requested index type is not in the
	// configuration.
	ErrCodeNotConfigured = -32001
	// ErrCodeBusy means a generation run is already active for the type.
	ErrCodeBusy = -32002
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{JSONRPC: "2.0", Result: result, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// StatusParams selects the index type for a status request.
type StatusParams struct {
	IndexType string `json:"index_type"`
	UserID    string `json:"user_id,omitempty"`
}

// Validate checks that required fields are present.
func (p *StatusParams) Validate() error {
	if p.IndexType == "" {
		return fmt.Errorf("index_type is required")
	}
	return nil
}

// SignalParams carries one raw engine line for ingestion.
type SignalParams struct {
	IndexType string `json:"index_type"`
	Line      string `json:"line"`
	UserID    string `json:"user_id,omitempty"`
}

// Validate checks that required fields are present. An empty line is
// legal: it classifies as unrecognized and is dropped.
func (p *SignalParams) Validate() error {
	if p.IndexType == "" {
		return fmt.Errorf("index_type is required")
	}
	return nil
}

// StartParams selects the index type to generate.
type StartParams struct {
	IndexType string `json:"index_type"`
	UserID    string `json:"user_id,omitempty"`
}

// Validate checks that required fields are present.
func (p *StartParams) Validate() error {
	if p.IndexType == "" {
		return fmt.Errorf("index_type is required")
	}
	return nil
}

// ResetParams selects the index type to reset after a failure.
type ResetParams struct {
	IndexType string `json:"index_type"`
	UserID    string `json:"user_id,omitempty"`
}

// Validate checks that required fields are present.
func (p *ResetParams) Validate() error {
	if p.IndexType == "" {
		return fmt.Errorf("index_type is required")
	}
	return nil
}

// EventsParams selects the index type whose events to stream.
type EventsParams struct {
	IndexType string `json:"index_type"`
	UserID    string `json:"user_id,omitempty"`
}

// Validate checks that required fields are present.
func (p *EventsParams) Validate() error {
	if p.IndexType == "" {
		return fmt.Errorf("index_type is required")
	}
	return nil
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong    bool   `json:"pong"`
	Version string `json:"version,omitempty"`
}

// SignalResult reports what a submitted raw line did.
type SignalResult struct {
	Recognized bool `json:"recognized"`
	State      any  `json:"state,omitempty"`
}

// StartResult acknowledges a launched generation run.
type StartResult struct {
	Started   bool   `json:"started"`
	IndexType string `json:"index_type"`
}
