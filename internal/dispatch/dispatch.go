// Package dispatch implements the tool dispatcher (spec.md §4.8, §6.1): the
// 15 cortex_* tools, their input validation, and the per-request failure
// semantics (panics become ErrInternal, catalog errors are reported without
// tearing down the connection). Grounded on the teacher's
// internal/mcp.Manager tool-routing table, generalized from routing calls
// out to external MCP servers into routing calls into the local storage and
// retrieval engines.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/metrics"
	"github.com/omnicortex/omnicortex/internal/retrieval"
	"github.com/omnicortex/omnicortex/internal/session"
	"github.com/omnicortex/omnicortex/internal/storage"
)

// Handler serves one tool call.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes tool requests to the storage engine, retrieval engine,
// and session manager for a single catalog.
type Dispatcher struct {
	store    *storage.Engine
	retrieve *retrieval.Engine
	sessions *session.Manager
	handlers map[string]Handler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New builds the 15-tool dispatch table over store/retrieve/sessions.
func New(store *storage.Engine, retrieve *retrieval.Engine, sessions *session.Manager, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{store: store, retrieve: retrieve, sessions: sessions, logger: logger.With("component", "dispatch")}
	d.handlers = map[string]Handler{
		"cortex_remember":         d.rememberHandler,
		"cortex_recall":           d.recallHandler,
		"cortex_list_memories":    d.listMemoriesHandler,
		"cortex_update_memory":    d.updateMemoryHandler,
		"cortex_forget":           d.forgetHandler,
		"cortex_link_memories":    d.linkMemoriesHandler,
		"cortex_list_tags":        d.listTagsHandler,
		"cortex_review_memories":  d.reviewMemoriesHandler,
		"cortex_export":           d.exportHandler,
		"cortex_log_activity":     d.logActivityHandler,
		"cortex_get_activities":   d.getActivitiesHandler,
		"cortex_get_timeline":     d.getTimelineHandler,
		"cortex_start_session":    d.startSessionHandler,
		"cortex_end_session":      d.endSessionHandler,
		"cortex_get_session_context": d.getSessionContextHandler,
	}
	return d
}

// WithMetrics attaches a metrics sink that Dispatch reports tool-call
// counts and latencies to. Optional: a nil or never-called WithMetrics
// leaves metrics collection off.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// ErrUnknownMethod is returned by Dispatch for a method outside the 15-tool
// surface (and outside "initialize").
var ErrUnknownMethod = fmt.Errorf("%w: unknown method", corterrors.ErrInvalid)

// Dispatch routes method to its handler, recovering from panics and mapping
// them to ErrInternal without tearing down the connection (spec.md §4.8).
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (result any, err error) {
	handler, ok := d.handlers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", "method", method, "panic", r)
			err = fmt.Errorf("%w: tool handler panicked: %v", corterrors.ErrInternal, r)
			result = nil
		}
		d.metrics.ObserveToolCall(method, start, err)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", corterrors.ErrCanceled, ctx.Err())
	default:
	}

	return handler(ctx, params)
}

func decodeParams[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, corterrors.Invalid("params", fmt.Sprintf("malformed params: %v", err))
	}
	return v, nil
}

// idResult is the `{id}` shape returned by create-style tools.
type idResult struct {
	ID string `json:"id"`
}
