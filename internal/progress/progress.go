package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"
)

const (
	DefaultLabel    = "Generating"
	DefaultInterval = 500 * time.Millisecond
	maxDots         = 3
)

// Indicator redraws a single terminal line ("Generating.", "Generating..",
// "Generating...") while a blocking call is in flight. It is single-use.
type Indicator struct {
	out      io.Writer
	label    string
	interval time.Duration

	// mu orders Start against Stop so a loop is never launched after
	// Stop has joined.
	mu      sync.Mutex
	started bool
	stopped atomic.Bool
	wake    chan struct{}
	wg      conc.WaitGroup
}

type Option func(*Indicator)

func WithLabel(label string) Option {
	return func(i *Indicator) {
		if strings.TrimSpace(label) != "" {
			i.label = label
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(i *Indicator) {
		if interval > 0 {
			i.interval = interval
		}
	}
}

func New(out io.Writer, opts ...Option) *Indicator {
	i := &Indicator{
		out:      out,
		label:    DefaultLabel,
		interval: DefaultInterval,
		wake:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start launches the redraw loop. It returns immediately. Cancelling ctx
// ends the loop without drawing another frame. Start after Stop, or a
// second Start, does nothing.
func (i *Indicator) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started || i.stopped.Load() {
		return
	}
	i.started = true

	i.wg.Go(func() {
		i.run(ctx)
	})
}

// Stop raises the stop flag and blocks until the loop has exited and its
// final newline has been written. Safe to call concurrently with Start
// and more than once.
func (i *Indicator) Stop() {
	i.mu.Lock()
	if !i.stopped.Swap(true) {
		close(i.wake)
	}
	i.mu.Unlock()
	i.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (i *Indicator) Stopped() bool {
	return i.stopped.Load()
}

func (i *Indicator) run(ctx context.Context) {
	defer i.write("\r\n")

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	dots := 0
	for !i.stopped.Load() {
		dots = dots%maxDots + 1
		i.write(Frame(i.label, dots))

		select {
		case <-ticker.C:
		case <-i.wake:
		case <-ctx.Done():
			return
		}
	}
}

func (i *Indicator) write(s string) {
	_, _ = io.WriteString(i.out, s)
}

// Frame renders one redraw of the indicator line. Trailing spaces erase
// the dots of a longer previous frame.
func Frame(label string, dots int) string {
	return fmt.Sprintf("\r%s%s   ", label, strings.Repeat(".", dots))
}
