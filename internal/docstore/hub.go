package docstore

import (
	"context"
	"sync"
	"time"
)

// Hub fans out change signals per collection to listeners. Signals coalesce: a
// listener that is busy re-running its query sees at most one pending signal.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan struct{}]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in a collection. The returned cancel func must be called.
func (h *Hub) Subscribe(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[chan struct{}]struct{})
	}
	h.subs[collection][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[collection]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
			}
		})
	}
}

// Publish signals every listener of the collection.
func (h *Hub) Publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishAll signals every listener of every collection. Backends call it after
// reconnecting their change feed, since signals may have been lost meanwhile.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for ch := range set {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for ch := range set {
			close(ch)
		}
	}
	h.subs = make(map[string]map[chan struct{}]struct{})
}

// QueryFunc runs a query against a backend.
type QueryFunc func(ctx context.Context, q Query) ([]Document, error)

// Stream implements Store.Listen on top of a hub and a query function. It subscribes
// before the initial read so no committed change can be missed. A failed re-read keeps
// the previous snapshot and waits for the next signal.
func Stream(ctx context.Context, h *Hub, q Query, run QueryFunc) (<-chan Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	signal, cancel := h.Subscribe(q.Collection)

	docs, err := run(ctx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer cancel()

		snap := Snapshot{Docs: docs, ReadTime: time.Now()}
		send := true
		for {
			if send {
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
			}

			docs, err := run(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send = false
				continue
			}
			snap = Snapshot{Docs: docs, ReadTime: time.Now()}
			send = true
		}
	}()
	return out, nil
}
