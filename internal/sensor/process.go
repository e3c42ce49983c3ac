package sensor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/sensormux"
)

// ProcessPort is the merged stdout/stderr of a sensor child process.
// Reads return io.EOF once the process exits and its output is drained.
type ProcessPort struct {
	cmd  *exec.Cmd
	r    *io.PipeReader
	done chan struct{}

	mu      sync.Mutex
	exitErr error
	closed  bool
}

// waitDelay bounds how long Wait keeps copying output after the sensor
// exits, in case a descendant still holds the pipe open.
const waitDelay = 2 * time.Second

// StartProcess launches name with args in its own process group. Close kills
// the whole group.
func StartProcess(name string, args ...string) (*ProcessPort, error) {
	cmd := exec.Command(name, args...)
	r, w := io.Pipe()
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("start sensor %s: %w", name, err)
	}

	p := &ProcessPort{cmd: cmd, r: r, done: make(chan struct{})}
	monitoring.Logf("sensor process %s started (pid %d)", name, p.Pid())
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		closed := p.closed
		p.mu.Unlock()
		if err != nil && !closed {
			monitoring.Logf("sensor process %s exited: %v", name, err)
		}
		// EOF for the reader in every case; the exit status is kept for ExitErr.
		w.Close()
		close(p.done)
	}()
	return p, nil
}

func (p *ProcessPort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Close kills the process group if the process is still running and waits
// for it. Pending output is discarded.
func (p *ProcessPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	select {
	case <-p.done:
	default:
		if err := killProcessGroup(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			monitoring.Logf("kill sensor process %d: %v", p.Pid(), err)
		}
	}
	// unblocks the output copy so Wait can return
	p.r.CloseWithError(sensormux.ErrPortClosed)
	<-p.done
	return nil
}

// Done is closed once the process has exited.
func (p *ProcessPort) Done() <-chan struct{} { return p.done }

// ExitErr is the process exit status, valid after Done.
func (p *ProcessPort) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Pid returns the child process id.
func (p *ProcessPort) Pid() int { return p.cmd.Process.Pid }
