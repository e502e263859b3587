// Package spinner draws a one-line progress indicator for long CLI waits.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const interval = 80 * time.Millisecond

// Spinner animates a message on a single line until stopped.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// IsTerminal reports whether w is an interactive terminal. Spinners drawn on
// anything else only clutter logs.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start displays an animated spinner with the given message on w.
// Call Stop to halt it and clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Spinner) run() {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.done:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-ticker.C:
			s.mu.Lock()
			line := frames[i%len(frames)] + " " + s.message
			w := runewidth.StringWidth(line)
			// pad over whatever a longer previous message left behind
			pad := max(s.width-w, 0)
			s.width = max(s.width, w)
			fmt.Fprintf(s.w, "\r%s%s", line, strings.Repeat(" ", pad)) //nolint:errcheck
			s.mu.Unlock()
		}
	}
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop halts the spinner and clears its line. It is safe to call more than
// once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}
