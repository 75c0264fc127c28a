// Package broadcast implements the change-notification fan-out described in
// spec.md §4.7 and §5: a best-effort subscribe/unsubscribe API with bounded,
// independent per-subscriber queues. Broadcasting never blocks or fails a
// storage write; delivery failures are dropped and counted, never returned
// to the writer. The fan-out style is grounded on the teacher's hook
// registry (internal/hooks.Registry in haasonsaas/nexus), generalized from
// priority-ordered callback dispatch to independent subscriber channels.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// DefaultQueueDepth is the default bound on a subscriber's pending event
// queue before the oldest event is dropped (§5).
const DefaultQueueDepth = 256

// Broadcaster fans a stream of ChangeEvents out to independent subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      atomic.Int64
	queueDepth  int
	logger      *slog.Logger
	onDropped   func()
}

type subscriber struct {
	ch      chan cortexmodels.ChangeEvent
	dropped atomic.Int64
}

// New creates a Broadcaster with the given per-subscriber queue depth
// (DefaultQueueDepth if queueDepth <= 0).
func New(queueDepth int, logger *slog.Logger) *Broadcaster {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[int64]*subscriber),
		queueDepth:  queueDepth,
		logger:      logger.With("component", "broadcast"),
	}
}

// OnDropped registers a callback invoked once per event dropped from any
// subscriber's queue, so a caller can wire it to a metrics counter (e.g.
// internal/metrics.Metrics.BroadcastDropped) without this package importing
// the metrics package directly.
func (b *Broadcaster) OnDropped(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDropped = fn
}

// Handle identifies a subscription for Unsubscribe.
type Handle int64

// Subscribe registers a new subscriber and returns its channel and handle.
// The channel is never closed by a Publish; it is closed by Unsubscribe.
func (b *Broadcaster) Subscribe() (<-chan cortexmodels.ChangeEvent, Handle) {
	id := b.nextID.Add(1)
	sub := &subscriber{ch: make(chan cortexmodels.ChangeEvent, b.queueDepth)}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	return sub.ch, Handle(id)
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[int64(h)]
	if !ok {
		return
	}
	delete(b.subscribers, int64(h))
	close(sub.ch)
}

// Publish delivers event to every subscriber without blocking. If a
// subscriber's queue is full, the oldest queued event is dropped to make
// room and that subscriber's dropped_count is incremented; the count is
// attached to the next event actually delivered to it. Publish never
// blocks the caller and never returns an error: a broadcast failure is
// logged and swallowed (§4.7, §7).
func (b *Broadcaster) Publish(event cortexmodels.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("broadcast publish recovered from panic", "panic", r)
		}
	}()

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	b.mu.RLock()
	onDropped := b.onDropped
	b.mu.RUnlock()

	for _, sub := range subs {
		deliver(sub, event, onDropped)
	}
}

func deliver(sub *subscriber, event cortexmodels.ChangeEvent, onDropped func()) {
	event.DroppedCount = int(sub.dropped.Swap(0))
	select {
	case sub.ch <- event:
		return
	default:
	}

	// Queue full: drop the oldest event to make room, then retry once.
	select {
	case <-sub.ch:
		sub.dropped.Add(1)
		if onDropped != nil {
			onDropped()
		}
	default:
	}
	select {
	case sub.ch <- event:
	default:
		sub.dropped.Add(1)
		if onDropped != nil {
			onDropped()
		}
	}
}
