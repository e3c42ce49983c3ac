package sensormux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrPortClosed is returned by reads on a closed port.
var ErrPortClosed = errors.New("sensor port closed")

// ReplayPort replays recorded sensor lines at a fixed interval, looping
// until closed. It backs the --dev mode of the server.
type ReplayPort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	stop chan struct{}
	once sync.Once
}

// NewReplayPort starts replaying lines. Blank lines are skipped. An empty
// fixture produces a port that stays silent until closed.
func NewReplayPort(lines []string, interval time.Duration) *ReplayPort {
	r, w := io.Pipe()
	p := &ReplayPort{r: r, w: w, stop: make(chan struct{})}

	var payload []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			payload = append(payload, l)
		}
	}

	go func() {
		defer w.Close()
		if len(payload) == 0 {
			<-p.stop
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(payload) {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				if _, err := io.WriteString(w, payload[i]+"\n"); err != nil {
					return
				}
			}
		}
	}()
	return p
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *ReplayPort) Close() error {
	p.once.Do(func() { close(p.stop) })
	return p.r.CloseWithError(ErrPortClosed)
}

// TestablePort is a LinePorter with controllable reads for tests. Lines
// added with AddLine are handed to blocked readers; CloseWrite simulates
// the sensor process exiting.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// EOF is set by CloseWrite; reads drain the buffer then return io.EOF
	EOF bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	readCond *sync.Cond
}

func NewTestablePort() *TestablePort {
	tp := &TestablePort{ReadBuffer: bytes.NewBuffer(nil)}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

// Read blocks until data is available, the writer side ends or the port is
// closed.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	for {
		if t.Closed {
			return 0, ErrPortClosed
		}
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			return 0, err
		}
		if t.ReadBuffer.Len() > 0 {
			return t.ReadBuffer.Read(p)
		}
		if t.EOF {
			return 0, io.EOF
		}
		t.readCond.Wait()
	}
}

// AddLine appends a newline-terminated line for readers.
func (t *TestablePort) AddLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.WriteString(line)
	t.ReadBuffer.WriteByte('\n')
	t.readCond.Broadcast()
}

// SetReadError makes the next read fail with err.
func (t *TestablePort) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadError = err
	t.readCond.Broadcast()
}

// CloseWrite ends the stream once buffered data is read.
func (t *TestablePort) CloseWrite() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.EOF = true
	t.readCond.Broadcast()
}

func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// IsClosed reports whether Close was called.
func (t *TestablePort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Closed
}
