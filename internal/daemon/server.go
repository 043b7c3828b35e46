package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	kberr "github.com/mwestra/kbindex/internal/errors"
	"github.com/mwestra/kbindex/internal/session"
	"github.com/mwestra/kbindex/pkg/version"
)

// defaultUser is used when a client does not identify itself.
const defaultUser = "default"

// Server listens on a Unix socket and serves session operations.
type Server struct {
	socketPath string
	registry   *session.Registry
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer wires a server over a session registry.
func NewServer(socketPath string, registry *session.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		registry:   registry,
		logger:     logger,
	}
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// Clean up any stale socket from a previous run.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("daemon listening", "socket", s.socketPath)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection serves requests on one connection until the client
// disconnects. An events request takes the connection over for
// streaming and ends it.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			// EOF is a normal disconnect; anything else was malformed.
			if !errors.Is(err, io.EOF) {
				_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
			}
			return
		}

		if req.Method == MethodEvents {
			s.handleEvents(ctx, req, encoder)
			return
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true, Version: version.Version})
	case MethodStatus:
		return s.handleStatus(ctx, req)
	case MethodSignal:
		return s.handleSignal(ctx, req)
	case MethodStart:
		return s.handleStart(ctx, req)
	case MethodReset:
		return s.handleReset(ctx, req)
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method))
	}
}

// decodeParams round-trips the loosely-typed params into a concrete
// struct.
func decodeParams(params any, dst interface{ Validate() error }) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return dst.Validate()
}

// sessionFor selects the caller's session switched to the given type.
func (s *Server) sessionFor(ctx context.Context, userID, indexType string) (*session.Session, error) {
	if userID == "" {
		userID = defaultUser
	}
	sess := s.registry.Get(userID)
	if err := sess.SetIndexType(ctx, indexType); err != nil {
		return nil, err
	}
	return sess, nil
}

// errorResponse maps KBError codes onto the wire error space.
func errorResponse(id string, err error) Response {
	code := ErrCodeInternalError
	switch {
	case kberr.GetCode(err) == kberr.ErrCodeUnknownIndexType:
		code = ErrCodeNotConfigured
	case kberr.IsBusy(err):
		code = ErrCodeBusy
	}
	resp := NewErrorResponse(id, code, err.Error())
	if kbCode := kberr.GetCode(err); kbCode != "" {
		resp.Error.Data = kbCode
	}
	return resp
}

func (s *Server) handleStatus(ctx context.Context, req Request) Response {
	var params StatusParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	sess, err := s.sessionFor(ctx, params.UserID, params.IndexType)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	data, err := sess.Status(ctx)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, data)
}

func (s *Server) handleSignal(ctx context.Context, req Request) Response {
	var params SignalParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	sess, err := s.sessionFor(ctx, params.UserID, params.IndexType)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	mgr, err := sess.Manager()
	if err != nil {
		return errorResponse(req.ID, err)
	}

	snap, ok := mgr.Process(params.Line)
	result := SignalResult{Recognized: ok}
	if ok {
		result.State = snap
	}
	return NewSuccessResponse(req.ID, result)
}

func (s *Server) handleStart(ctx context.Context, req Request) Response {
	var params StartParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	sess, err := s.sessionFor(ctx, params.UserID, params.IndexType)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	runner, err := sess.Runner()
	if err != nil {
		return errorResponse(req.ID, err)
	}

	// The run outlives this request; tie it to the server context.
	if err := runner.Start(context.WithoutCancel(ctx)); err != nil {
		return errorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, StartResult{Started: true, IndexType: params.IndexType})
}

func (s *Server) handleReset(ctx context.Context, req Request) Response {
	var params ResetParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	sess, err := s.sessionFor(ctx, params.UserID, params.IndexType)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	mgr, err := sess.Manager()
	if err != nil {
		return errorResponse(req.ID, err)
	}

	snap, err := mgr.Reset()
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, snap)
}

// handleEvents acknowledges the subscription, then streams one Event
// per line until the client goes away. A write failure just drops the
// subscription; generation never notices.
func (s *Server) handleEvents(ctx context.Context, req Request, encoder *json.Encoder) {
	var params EventsParams
	if err := decodeParams(req.Params, &params); err != nil {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()))
		return
	}

	sess, err := s.sessionFor(ctx, params.UserID, params.IndexType)
	if err != nil {
		_ = encoder.Encode(errorResponse(req.ID, err))
		return
	}
	mgr, err := sess.Manager()
	if err != nil {
		_ = encoder.Encode(errorResponse(req.ID, err))
		return
	}

	// Snapshot before subscribing so the client catches up without a
	// gap, then receives deltas.
	snap := mgr.Snapshot()
	sub := mgr.Broadcaster().Subscribe()
	defer mgr.Broadcaster().Unsubscribe(sub)

	if err := encoder.Encode(NewSuccessResponse(req.ID, snap)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := encoder.Encode(ev); err != nil {
				s.logger.Debug("event subscriber write failed, dropping",
					"index_type", params.IndexType)
				return
			}
		}
	}
}
