package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	sensors "agro-simulator/internal/sensors/domain"
)

const (
	clientBuffer      = 8
	heartbeatInterval = 15 * time.Second
	retryMillis       = 3000
)

// SSEBroker fans out snapshots to stream clients. New clients receive the latest
// snapshot first so dashboards do not wait a full tick.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	last    []byte
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan []byte]struct{})}
}

// Notify implements application.SnapshotNotifier. Slow clients drop snapshots; the
// next one supersedes them.
func (b *SSEBroker) Notify(snapshot sensors.Snapshot) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = payload
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a client, seeded with the latest snapshot when there is one.
func (b *SSEBroker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last != nil {
		ch <- b.last
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a client channel. Unknown channels are ignored.
func (b *SSEBroker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// StreamHandler serves GET /api/v1/snapshots/stream.
type StreamHandler struct {
	broker    *SSEBroker
	heartbeat time.Duration
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker, heartbeat: heartbeatInterval}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
		case payload, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
		}
		flusher.Flush()
	}
}
