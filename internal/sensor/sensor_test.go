package sensor

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"mouse", Mouse, false},
		{"", Mouse, false},
		{"TOBII", Tobii, false},
		{"Tobii Pro Fusion", Tobii, false},
		{"eyelink", Mouse, true},
	}
	for _, tt := range tests {
		got, err := ParseDevice(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDevice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDevice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if Tobii.DisplayName() != "Tobii Pro Fusion" || Mouse.DisplayName() != "Mouse" {
		t.Error("unexpected display names")
	}
}

func TestScript(t *testing.T) {
	s, err := Script(Mouse, 60)
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if !strings.HasPrefix(s, "freq = 60\n") {
		t.Errorf("mouse script should start with the frequency, got %q", s[:20])
	}
	if !strings.Contains(s, "pyautogui") {
		t.Error("mouse script should use pyautogui")
	}

	s, err = Script(Tobii, 120.5)
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if !strings.HasPrefix(s, "freq = 120.5\n") || !strings.Contains(s, "tobii_research") {
		t.Errorf("unexpected tobii script header")
	}

	if _, err := Script(Mouse, 0); err == nil {
		t.Error("zero frequency should fail")
	}
	if _, err := Script(Device(9), 60); err == nil {
		t.Error("unknown device should fail")
	}
}

func TestSerialOptions(t *testing.T) {
	opts, err := SerialOptions{Parity: "even"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if opts.BaudRate != 115200 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "E" {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	mode, err := SerialOptions{BaudRate: 9600, StopBits: 2, Parity: "O"}.Mode()
	if err != nil {
		t.Fatalf("Mode() error = %v", err)
	}
	if mode.BaudRate != 9600 || mode.StopBits != serial.TwoStopBits || mode.Parity != serial.OddParity {
		t.Errorf("unexpected mode: %+v", mode)
	}

	for _, bad := range []SerialOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) should fail", bad)
		}
	}
}

func TestStartProcess_ReadsMergedOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p, err := StartProcess("sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	defer p.Close()

	var lines []string
	scan := bufio.NewScanner(p)
	for scan.Scan() {
		lines = append(lines, scan.Text())
	}
	if err := scan.Err(); err != nil {
		t.Fatalf("scan error = %v", err)
	}
	got := strings.Join(lines, ",")
	if !strings.Contains(got, "out") || !strings.Contains(got, "err") {
		t.Errorf("output = %q, want stdout and stderr merged", got)
	}
	<-p.Done()
	if p.ExitErr() != nil {
		t.Errorf("ExitErr() = %v", p.ExitErr())
	}
}

func TestStartProcess_CloseKills(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	p, err := StartProcess("sleep", "60")
	if err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid() = %d", p.Pid())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	<-p.Done()
	if p.ExitErr() == nil {
		t.Error("killed process should report an exit error")
	}
	if _, err := p.Read(make([]byte, 1)); err == nil {
		t.Error("Read after Close should fail")
	}
	// second close is a no-op
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestStartProcess_CloseStopsChildren(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// sleep inherits the output pipe and outlives a kill of sh alone
	p, err := StartProcess("sh", "-c", "echo ready; sleep 30; echo done")
	if err != nil {
		t.Fatalf("StartProcess() error = %v", err)
	}
	scan := bufio.NewScanner(p)
	if !scan.Scan() || scan.Text() != "ready" {
		t.Fatalf("first line = %q, want ready", scan.Text())
	}

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return while a child held the output pipe")
	}

	select {
	case <-p.Done():
	default:
		t.Error("Done should be closed after Close returns")
	}
	if scan.Scan() {
		t.Errorf("read %q after Close", scan.Text())
	}
}

func TestStartProcess_MissingBinary(t *testing.T) {
	if _, err := StartProcess("/nonexistent/sensor-binary"); err == nil {
		t.Error("expected spawn error")
	}
}

func TestOptionsLaunch_Command(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	port, err := Options{Command: []string{"sh", "-c", "echo '1; 0.5, 0.5, 1, 3, 1; 0.5, 0.5, 1, 3, 1, 600, 600'"}}.Launch()
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer port.Close()
	b, err := io.ReadAll(port)
	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !strings.HasPrefix(string(b), "1; ") {
		t.Errorf("output = %q", b)
	}
}

func TestReplay_Launch(t *testing.T) {
	if _, err := (Replay{Frequency: 0}).Launch(); err == nil {
		t.Error("zero frequency should fail")
	}
	port, err := Replay{Lines: []string{"x"}, Frequency: 1000}.Launch()
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer port.Close()
	line, err := bufio.NewReader(port).ReadString('\n')
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if line != "x\n" {
		t.Errorf("line = %q, want x", line)
	}
}
