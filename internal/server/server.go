// Package server runs the per-client session state machine over one
// rpc.Conn (spec.md §4.8): Idle -> Ready on "initialize", Ready <-> Busy for
// the duration of each tool call, Closed on transport EOF. Requests for a
// single client are served strictly in the order received — the read loop
// blocks on the current call's completion before reading the next line, so
// a second request arriving while one is in flight is naturally queued by
// never being read until the first completes. Grounded on the teacher's
// internal/mcp.Server accept-loop (one goroutine per connection, panic
// recovery per request), adapted from routing MCP tool calls out to an
// external process into dispatching cortex_* tools against a local
// dispatch.Dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/dispatch"
	"github.com/omnicortex/omnicortex/internal/rpc"
)

// state is the per-client session state (spec.md §4.8).
type state int

const (
	stateIdle state = iota
	stateReady
	stateClosed
)

// Server serves one dispatch.Dispatcher's tool surface over framed
// connections. A single Server may call Serve concurrently for multiple
// clients; each call owns its own state machine.
type Server struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New builds a Server over dispatcher.
func New(dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dispatcher: dispatcher, logger: logger.With("component", "server")}
}

// Serve runs the request/response loop for one client until the transport
// reaches EOF or an unrecoverable framing error occurs. It returns nil on
// graceful EOF (spec.md §6.1: "exit codes: 0 on graceful EOF") and a
// non-nil error on a transport-level framing failure, which is fatal for
// this connection only (§7) — Serve never panics the caller out of a
// handler failure, since dispatch.Dispatcher already recovers those into
// ErrInternal responses.
func (s *Server) Serve(ctx context.Context, conn *rpc.Conn) error {
	st := stateIdle

	for {
		if st == stateClosed {
			return nil
		}

		req, err := conn.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		if req.Method == "initialize" {
			st = stateReady
			if err := conn.WriteResponse(rpc.Response{ID: req.ID, Result: map[string]string{"status": "ready"}}); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			continue
		}

		if st != stateReady {
			resp := rpc.Response{ID: req.ID, Error: structuredToRPCError(corterrors.Invalid("method", "must call initialize before any tool"))}
			if err := conn.WriteResponse(resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			continue
		}

		// Busy(request_id): this call runs to completion before the loop
		// reads the next line, so a second request sent early is simply not
		// yet read — it is queued in the transport, not dropped.
		result, callErr := s.dispatcher.Dispatch(ctx, req.Method, req.Params)
		resp := rpc.Response{ID: req.ID}
		if callErr != nil {
			resp.Error = structuredToRPCError(callErr)
		} else {
			resp.Result = result
		}
		if err := conn.WriteResponse(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func structuredToRPCError(err error) *rpc.Error {
	s := corterrors.FromError(err)
	return &rpc.Error{Code: int(s.Code), Message: s.Message, Path: s.Path}
}
