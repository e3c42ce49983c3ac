// Package sensormux reads newline-delimited records from a sensor and fans
// them out to any number of subscribers.
package sensormux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// SubscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing lines.
const SubscriberBuffer = 512

// LinePorter is the minimal interface of a sensor output stream: a
// process's stdout, a serial port or a replayed fixture.
type LinePorter interface {
	io.Reader
	io.Closer
}

// Mux is a sensor line multiplexer.
type Mux[T LinePorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

// MuxInterface is implemented by Mux for any port type.
type MuxInterface interface {
	Subscriber
	// Monitor reads lines until the port reaches EOF, fails, or ctx ends.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the port.
	Close() error

	// AttachAdminRoutes mounts a live tail of raw sensor lines under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

func New[T LinePorter](port T) *Mux[T] {
	return &Mux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Mux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, SubscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.isClosing() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *Mux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Mux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Monitor returns nil when the sensor closes its output, ctx.Err() on
// cancellation and the read error otherwise.
func (s *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan must not hold up context cancellation
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return fmt.Errorf("sensor read failed: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return fmt.Errorf("sensor read failed: %w", err)
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// subscriber is full, drop rather than stall the sensor pipe
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

// Close is idempotent.
func (s *Mux[T]) Close() error {
	s.closeOnce.Do(func() {
		s.closingMu.Lock()
		s.closing = true
		s.closingMu.Unlock()

		s.subscriberMu.Lock()
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
		s.subscriberMu.Unlock()
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

var tailTemplate = template.Must(template.New("tail").Parse(`<!doctype html>
<html><head><title>{{.}}</title></head>
<body><h3>{{.}}</h3><pre id="out"></pre>
<script>
const out = document.getElementById("out");
const es = new EventSource("sensor-tail-events");
es.onmessage = (e) => {
  out.textContent += e.data + "\n";
  const lines = out.textContent.split("\n");
  if (lines.length > 500) out.textContent = lines.slice(-500).join("\n");
};
</script></body></html>`))

// Subscriber is the read side of a Mux.
type Subscriber interface {
	// Subscribe creates a new channel receiving every line read from the
	// sensor. The id is used to Unsubscribe.
	Subscribe() (string, chan string)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(string)
}

var _ MuxInterface = (*Mux[LinePorter])(nil)

func (s *Mux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	AttachTailRoutes(mux, func() Subscriber { return s })
}

// AttachTailRoutes mounts the raw line tail for whichever mux source
// returns at request time. A nil source means no sensor is running.
func AttachTailRoutes(mux *http.ServeMux, source func() Subscriber) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("sensor-tail", "live tail of raw sensor lines", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tailTemplate.Execute(w, "sensor tail"); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	// Server-Sent Events for each line read from the sensor.
	debug.HandleSilentFunc("sensor-tail-events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		src := source()
		if src == nil {
			http.Error(w, "No sensor running", http.StatusNotFound)
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
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := src.Subscribe()
		defer src.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
