package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// SnapshotFilter selects which events a subscriber receives.
type SnapshotFilter func(SnapshotEvent) bool

// ForUser keeps events published for userID.
func ForUser(userID string) SnapshotFilter {
	return func(e SnapshotEvent) bool { return e.UserID == userID }
}

type subscriber struct {
	ch     chan SnapshotEvent
	filter SnapshotFilter
}

// BroadcastHook fans out refresh snapshots to in-process subscribers. Slow
// subscribers drop events rather than block the refresh loop.
type BroadcastHook struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// NewBroadcastHook creates a broadcast hook.
func NewBroadcastHook() *BroadcastHook {
	return &BroadcastHook{
		subs: make(map[int]subscriber),
	}
}

// SnapshotPublished satisfies the RefreshHook interface and broadcasts events.
func (h *BroadcastHook) SnapshotPublished(_ context.Context, event SnapshotEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of every snapshot event and a cancel func.
func (h *BroadcastHook) Subscribe() (<-chan SnapshotEvent, func()) {
	return h.SubscribeFiltered(nil)
}

// SubscribeFiltered returns a channel of events accepted by filter.
func (h *BroadcastHook) SubscribeFiltered(filter SnapshotFilter) (<-chan SnapshotEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan SnapshotEvent, 8)
	h.subs[id] = subscriber{ch: ch, filter: filter}
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and streams snapshot events as JSON.
// When user_id is present in the query only that user's events are sent.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer conn.Close()

	events, cancel := h.SubscribeFiltered(requestFilter(r))
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE provides a Server-Sent Events endpoint for refresh snapshots.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	h.ServeSSEFiltered(w, r, requestFilter(r))
}

// ServeSSEFiltered streams events accepted by filter as Server-Sent Events.
func (h *BroadcastHook) ServeSSEFiltered(w http.ResponseWriter, r *http.Request, filter SnapshotFilter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := h.SubscribeFiltered(filter)
	defer cancel()

	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.Write([]byte("event: snapshot\ndata: "))
			if err := encoder.Encode(event); err != nil {
				return
			}
			w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func requestFilter(r *http.Request) SnapshotFilter {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		return ForUser(userID)
	}
	return nil
}

// MultiHook fans a snapshot out to several hooks, stopping at the first error.
type MultiHook []RefreshHook

// SnapshotPublished calls every hook in order.
func (m MultiHook) SnapshotPublished(ctx context.Context, event SnapshotEvent) error {
	for _, hook := range m {
		if hook == nil {
			continue
		}
		if err := hook.SnapshotPublished(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
