package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/mwestra/kbindex/internal/generation"
	"github.com/mwestra/kbindex/internal/session"
)

// Client talks to a running daemon over its Unix socket. It mirrors
// the server's method surface for the CLI. Not safe for concurrent
// use; open one client per command.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// wireResponse defers result decoding until the caller knows its type.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Dial connects to the daemon socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(method string, params any) (json.RawMessage, error) {
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}

	var resp wireResponse
	if err := c.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() (PingResult, error) {
	raw, err := c.call(MethodPing, nil)
	if err != nil {
		return PingResult{}, err
	}
	var result PingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return PingResult{}, err
	}
	return result, nil
}

// Status fetches the three-way health report for one index type.
func (c *Client) Status(indexType string) (session.StatusData, error) {
	raw, err := c.call(MethodStatus, StatusParams{IndexType: indexType})
	if err != nil {
		return session.StatusData{}, err
	}
	var data session.StatusData
	if err := json.Unmarshal(raw, &data); err != nil {
		return session.StatusData{}, err
	}
	return data, nil
}

// Signal submits one raw engine line for classification.
func (c *Client) Signal(indexType, line string) (bool, *generation.Snapshot, error) {
	raw, err := c.call(MethodSignal, SignalParams{IndexType: indexType, Line: line})
	if err != nil {
		return false, nil, err
	}
	var result struct {
		Recognized bool                 `json:"recognized"`
		State      *generation.Snapshot `json:"state,omitempty"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, nil, err
	}
	return result.Recognized, result.State, nil
}

// Start launches a generation run for one index type.
func (c *Client) Start(indexType string) (StartResult, error) {
	raw, err := c.call(MethodStart, StartParams{IndexType: indexType})
	if err != nil {
		return StartResult{}, err
	}
	var result StartResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return StartResult{}, err
	}
	return result, nil
}

// Reset clears a failed generation state for one index type.
func (c *Client) Reset(indexType string) (generation.Snapshot, error) {
	raw, err := c.call(MethodReset, ResetParams{IndexType: indexType})
	if err != nil {
		return generation.Snapshot{}, err
	}
	var snap generation.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return generation.Snapshot{}, err
	}
	return snap, nil
}

// Events subscribes to an index type's event stream. The handler first
// receives the catch-up snapshot converted to an event, then each live
// event; returning false stops the stream. The connection is consumed
// by the stream and unusable afterwards.
func (c *Client) Events(ctx context.Context, indexType string, handler func(generation.Event) bool) error {
	raw, err := c.call(MethodEvents, EventsParams{IndexType: indexType})
	if err != nil {
		return err
	}
	var snap generation.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	if !handler(generation.EventFromSnapshot(snap)) {
		return nil
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ev generation.Event
		if err := c.dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !handler(ev) {
			return nil
		}
	}
}
