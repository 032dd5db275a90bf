package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// IsTerminal returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func IsTerminal(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar displays one export stage.
// Example: RES  [=========>          ]  45% materials/signage/exit.vmt
type ProgressBar struct {
	label       string
	total       int
	current     int
	description string
	width       int
	finished    bool
	mu          sync.Mutex
	writer      io.Writer
}

// NewProgress creates a progress bar for total steps under a short label.
func NewProgress(label string, total int) *ProgressBar {
	return &ProgressBar{
		label:  label,
		total:  total,
		width:  30,
		writer: os.Stdout,
	}
}

// SetWidth sets the width of the bar in characters.
func (p *ProgressBar) SetWidth(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width = width
}

// SetWriter sets the output writer.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// SetTotal changes the number of steps and redraws.
func (p *ProgressBar) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.clamp()
	p.render()
}

// Step advances by one and shows desc next to the bar.
func (p *ProgressBar) Step(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.description = desc
	p.clamp()
	p.render()
}

// Current returns the steps taken so far.
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *ProgressBar) clamp() {
	if p.total > 0 && p.current > p.total {
		p.current = p.total
	}
}

// Finish fills the bar, shows desc and moves to a new line. Only the
// first call has an effect.
func (p *ProgressBar) Finish(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	if p.total == 0 {
		// length was never set; the steps taken are the whole stage
		p.total = p.current
	}
	p.current = p.total
	p.description = desc
	p.finished = true

	p.render()
	if IsTerminal(p.writer) {
		// render() uses \r without a newline
		fmt.Fprintln(p.writer)
	}
}

// render draws the bar (must be called with lock held).
func (p *ProgressBar) render() {
	percentage := 0
	filled := 0
	if p.total > 0 {
		percentage = (p.current * 100) / p.total
		filled = (p.current * p.width) / p.total
	}

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	line := fmt.Sprintf("%-4s %s %3d%% %s", p.label, bar.String(), percentage, truncate(p.description, 40))
	if IsTerminal(p.writer) {
		// pad so a shorter description overwrites a longer one
		fmt.Fprintf(p.writer, "\r%-*s", p.width+52, line)
	} else if p.finished {
		// non-TTY output only shows completed stages
		fmt.Fprintln(p.writer, strings.TrimRight(line, " "))
	}
}

// Spinner displays an animated spinner with a message.
// Example: |  Loading packages...
type Spinner struct {
	message string
	running bool
	chars   []string
	mu      sync.Mutex
	writer  io.Writer
	ticker  *time.Ticker
	done    chan struct{}
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		writer:  os.Stderr,
		done:    make(chan struct{}),
	}
}

// SetWriter sets the output writer.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. On a non-TTY writer the message is printed
// once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	if !IsTerminal(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)
	go func() {
		idx := 0
		for {
			select {
			case <-s.ticker.C:
				s.mu.Lock()
				if !s.running {
					s.mu.Unlock()
					return
				}
				fmt.Fprintf(s.writer, "\r%s  %s", s.chars[idx], s.message)
				idx = (idx + 1) % len(s.chars)
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)

	if IsTerminal(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
	}
}

// StopWithMessage stops the spinner and prints message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
