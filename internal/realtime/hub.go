// Package realtime pushes classified gaze records to live clients over
// server-sent events or websockets.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/monitoring"
)

// clientBuffer is the number of records queued per client before newer
// records are dropped for that client.
const clientBuffer = 256

const writeWait = 5 * time.Second

// Hub fans records out to subscribed clients. Publish never blocks.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]chan gaze.Record
	nextID  uint64

	published atomic.Uint64
	dropped   atomic.Uint64

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint64]chan gaze.Record),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the service binds to localhost; browsers on other origins may watch
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish delivers r to every client with room in its queue.
func (h *Hub) Publish(r gaze.Record) {
	h.published.Add(1)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- r:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a client. The returned cancel func removes it and
// closes the channel.
func (h *Hub) Subscribe() (<-chan gaze.Record, func()) {
	ch := make(chan gaze.Record, clientBuffer)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.clients[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports totals since the hub was created.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// ServeSSE streams records as server-sent events, one JSON object per event.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel := h.Subscribe()
	defer cancel()

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(rec)
			if err != nil {
				monitoring.Logf("realtime: encode record: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: gaze\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// ServeWS upgrades the connection and writes each record as a JSON text
// message. Client messages are read and discarded to observe closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		monitoring.Logf("realtime: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := h.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
