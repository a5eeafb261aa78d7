// Package spinner provides an animated terminal spinner for operations
// that block the console, such as waiting on a streaming turn.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	carriageReturn = "\r"

	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"

	symbolSuccess = "✓"
	symbolFailure = "✗"
)

// frames is the braille animation cycle.
var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Config holds spinner options.
type Config struct {
	// Message is the text displayed next to the spinner.
	Message string

	// RefreshRate controls animation speed. Defaults to 80ms.
	RefreshRate time.Duration

	// ShowElapsed appends elapsed time to the message.
	ShowElapsed bool

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// IsTTY forces TTY or non-TTY rendering. When nil it is detected
	// from the Writer; non-TTY output gets static lines, no animation.
	IsTTY *bool
}

// Spinner animates a single status line on the terminal.
type Spinner struct {
	mu sync.Mutex

	cfg      Config
	active   bool
	started  time.Time
	frame    int
	isTTY    bool
	lastLine int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a spinner with default settings and the given message.
func New(message string) *Spinner {
	return NewWithConfig(Config{Message: message, ShowElapsed: true})
}

// NewWithConfig creates a spinner with explicit settings.
func NewWithConfig(cfg Config) *Spinner {
	if cfg.RefreshRate == 0 {
		cfg.RefreshRate = 80 * time.Millisecond
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	isTTY := false
	if f, ok := cfg.Writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	if cfg.IsTTY != nil {
		isTTY = *cfg.IsTTY
	}

	return &Spinner{cfg: cfg, isTTY: isTTY}
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Update changes the message while the spinner runs.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Message = message
}

// Start begins the animation. Starting a running spinner is a no-op.
// Without a TTY it prints one static line instead of animating.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}
	s.active = true
	s.started = time.Now()
	s.frame = 0
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	if !s.isTTY {
		fmt.Fprintf(s.cfg.Writer, "%s...\n", s.cfg.Message)
		return
	}
	go s.spin()
}

// Stop halts the animation and clears the line. Safe to call on a
// stopped spinner.
func (s *Spinner) Stop() {
	s.finish("", "", "")
}

// Success stops the spinner and prints a green check with the message.
// An empty message keeps the spinner's current one.
func (s *Spinner) Success(message string) {
	s.finish(message, symbolSuccess, colorGreen)
}

// Fail stops the spinner and prints a red cross with the message.
func (s *Spinner) Fail(message string) {
	s.finish(message, symbolFailure, colorRed)
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(s.cfg.RefreshRate)
	defer ticker.Stop()

	s.render()
	for {
		select {
		case <-s.stopCh:
			close(s.doneCh)
			return
		case <-ticker.C:
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	char := frames[s.frame%len(frames)]
	s.frame++

	line := char + " " + s.cfg.Message
	if s.cfg.ShowElapsed {
		line += " " + formatElapsed(time.Since(s.started))
	}
	s.clearLine()
	fmt.Fprint(s.cfg.Writer, line)
	s.lastLine = len(line)
}

// clearLine overwrites the previous output. Caller holds the mutex.
func (s *Spinner) clearLine() {
	if s.lastLine > 0 {
		fmt.Fprint(s.cfg.Writer, carriageReturn+strings.Repeat(" ", s.lastLine)+carriageReturn)
		s.lastLine = 0
	}
}

// finish stops the animation and optionally prints a final status line.
func (s *Spinner) finish(message, symbol, color string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	elapsed := time.Since(s.started)
	if message == "" {
		message = s.cfg.Message
	}

	if !s.isTTY {
		if symbol != "" {
			fmt.Fprintf(s.cfg.Writer, "%s %s %s\n", symbol, message, formatElapsed(elapsed))
		}
		s.mu.Unlock()
		return
	}

	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.clearLine()
	if symbol != "" {
		suffix := ""
		if s.cfg.ShowElapsed {
			suffix = " " + formatElapsed(elapsed)
		}
		fmt.Fprintf(s.cfg.Writer, "%s%s%s %s%s\n", color, symbol, colorReset, message, suffix)
	}
	s.mu.Unlock()
}

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("(%.1fs)", d.Seconds())
	}
	return fmt.Sprintf("(%dm %ds)", int(d.Minutes()), int(d.Seconds())%60)
}
