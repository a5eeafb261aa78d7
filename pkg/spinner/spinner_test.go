package spinner

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func newBufferSpinner(message string, tty bool) (*Spinner, *bytes.Buffer) {
	var buf bytes.Buffer
	s := NewWithConfig(Config{
		Message:     message,
		RefreshRate: 5 * time.Millisecond,
		ShowElapsed: true,
		Writer:      &buf,
		IsTTY:       boolPtr(tty),
	})
	return s, &buf
}

func TestSpinner_NonTTYStaticOutput(t *testing.T) {
	s, buf := newBufferSpinner("working", false)

	s.Start()
	s.Success("done")

	out := buf.String()
	if !strings.Contains(out, "working...") {
		t.Errorf("output missing start line: %q", out)
	}
	if !strings.Contains(out, symbolSuccess+" done") {
		t.Errorf("output missing success line: %q", out)
	}
	if strings.Contains(out, colorGreen) {
		t.Errorf("non-TTY output contains ANSI color: %q", out)
	}
}

func TestSpinner_TTYAnimatesAndClears(t *testing.T) {
	s, buf := newBufferSpinner("thinking", true)

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "thinking") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, carriageReturn) {
		t.Errorf("output never rewrote the line: %q", out)
	}
	if s.IsActive() {
		t.Error("spinner still active after Stop")
	}
}

func TestSpinner_FailPrintsCross(t *testing.T) {
	s, buf := newBufferSpinner("loading", true)

	s.Start()
	s.Fail("load failed")

	out := buf.String()
	if !strings.Contains(out, symbolFailure) || !strings.Contains(out, "load failed") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, colorRed) {
		t.Errorf("TTY failure output missing color: %q", out)
	}
}

func TestSpinner_IdempotentLifecycle(t *testing.T) {
	s, _ := newBufferSpinner("x", true)

	s.Stop() // stop before start is a no-op
	s.Start()
	s.Start() // double start is a no-op
	s.Stop()
	s.Stop() // double stop is a no-op
	if s.IsActive() {
		t.Error("spinner active after stop")
	}
}

func TestSpinner_Update(t *testing.T) {
	s, buf := newBufferSpinner("first", false)
	s.Update("second")
	s.Start()
	s.Stop()

	if !strings.Contains(buf.String(), "second...") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(1500 * time.Millisecond); got != "(1.5s)" {
		t.Errorf("got %q", got)
	}
	if got := formatElapsed(90 * time.Second); got != "(1m 30s)" {
		t.Errorf("got %q", got)
	}
}
