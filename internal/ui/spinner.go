package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SpinnerKind selects the animation for a Spinner.
type SpinnerKind int

const (
	// SpinnerLoading is for local work such as capturing media.
	SpinnerLoading SpinnerKind = iota
	// SpinnerConnecting is for the control channel and ICE.
	SpinnerConnecting
	// SpinnerWaiting is for replies from the media server.
	SpinnerWaiting
)

func (k SpinnerKind) frames() (spinner.Spinner, time.Duration) {
	switch k {
	case SpinnerConnecting:
		return spinner.Globe, 180 * time.Millisecond
	case SpinnerWaiting:
		return spinner.Points, 100 * time.Millisecond
	default:
		return spinner.Dot, 80 * time.Millisecond
	}
}

// Spinner animates one status line until stopped.
type Spinner struct {
	out      io.Writer
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	message string
	stopped bool
	done    chan struct{}
}

func NewSpinner(kind SpinnerKind, message string) *Spinner {
	sp, interval := kind.frames()
	return &Spinner{
		out:      os.Stdout,
		frames:   sp.Frames,
		interval: interval,
		message:  message,
		done:     make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			if !s.stopped {
				frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
				fmt.Fprintf(s.out, "\r\033[K%s %s", frame, s.message)
			}
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	fmt.Fprint(s.out, "\r\033[K")
}

// Success stops the spinner and leaves a success line.
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(IconError), message)
}

// RunSpinner starts a spinner of kind and returns it.
func RunSpinner(kind SpinnerKind, message string) *Spinner {
	sp := NewSpinner(kind, message)
	sp.Start()
	return sp
}
