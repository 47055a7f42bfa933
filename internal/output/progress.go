package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// ProgressBar displays a progress bar with a counter and description.
// Example: [=========>          ]  45% (9/20) Measuring packages
type ProgressBar struct {
	mu          sync.Mutex
	w           io.Writer
	total       int
	current     int
	description string
	width       int
	tty         bool
	rendered    bool
	finished    bool
}

// NewProgress creates a progress bar writing to w.
func NewProgress(w io.Writer, total int, description string) *ProgressBar {
	return &ProgressBar{
		w:           w,
		total:       total,
		description: description,
		width:       30,
		tty:         writerIsTTY(w),
	}
}

// Increment advances the bar by one.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(p.current+1, p.total)
}

// Update sets the progress to done out of total. Its signature matches the
// progress callbacks taken by the scanner.
func (p *ProgressBar) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(done, total)
}

func (p *ProgressBar) set(done, total int) {
	if p.finished {
		return
	}
	p.total = total
	p.current = min(done, total)
	p.render()
}

// Finish completes the bar and ends the line. Calling it twice is harmless.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	p.current = p.total
	if p.tty {
		p.render()
		fmt.Fprintln(p.w)
	} else if !p.rendered {
		p.render()
	}
	p.finished = true
}

// render draws the bar. On a TTY the line is redrawn in place; elsewhere a
// single line is written on completion. Must be called with mu held.
func (p *ProgressBar) render() {
	if !p.tty && p.current != p.total {
		return
	}

	percent, filled := 0, 0
	if p.total > 0 {
		percent = p.current * 100 / p.total
		filled = p.current * p.width / p.total
	}

	var bar strings.Builder
	bar.WriteByte('[')
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteByte('=')
		case i == filled-1:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	bar.WriteByte(']')

	line := fmt.Sprintf("%s %3d%% (%d/%d) %s", bar.String(), percent, p.current, p.total, p.description)
	if p.tty {
		fmt.Fprintf(p.w, "\r%s", line)
	} else {
		fmt.Fprintln(p.w, line)
		p.rendered = true
	}
}

// Spinner displays an animated spinner while a pip command runs.
// Example: |  Installing requests (4s elapsed)
type Spinner struct {
	mu        sync.Mutex
	w         io.Writer
	message   string
	frames    []string
	timeout   time.Duration
	timing    bool
	started   time.Time
	running   bool
	done      chan struct{}
	tty       bool
	lastWidth int
}

// NewSpinner creates a spinner writing to w. On a non-TTY writer the
// message is printed once when started and nothing is animated.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
		tty:     writerIsTTY(w),
	}
}

// WithTimeout shows the remaining time against timeout, or elapsed time
// when timeout is zero. Must be called before Start.
func (s *Spinner) WithTimeout(timeout time.Duration) *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	s.timing = true
	return s
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !s.tty {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.done = make(chan struct{})
	go s.spin(s.done)
}

func (s *Spinner) spin(done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(s.frames) {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			line := fmt.Sprintf("%s  %s", s.frames[i], s.text())
			s.lastWidth = max(s.lastWidth, len(line))
			fmt.Fprintf(s.w, "\r%s", line)
			s.mu.Unlock()
		}
	}
}

// text returns the message with optional timing. Must be called with mu held.
func (s *Spinner) text() string {
	if !s.timing {
		return s.message
	}
	elapsed := time.Since(s.started)
	if s.timeout > 0 {
		remaining := max(s.timeout-elapsed, 0)
		return fmt.Sprintf("%s (%ds remaining)", s.message, int(remaining.Seconds()))
	}
	return fmt.Sprintf("%s (%ds elapsed)", s.message, int(elapsed.Seconds()))
}

// UpdateMessage changes the message while the spinner runs.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.tty {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.lastWidth))
	}
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, message)
}
