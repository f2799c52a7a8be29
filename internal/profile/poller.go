package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrTimeout is returned when a wait's budget runs out before a
// qualifying event appears.
var ErrTimeout = errors.New("profile: timed out waiting for event")

// pollDefault is the fixed scan interval.
const pollDefault = 250 * time.Millisecond

// Wait describes one event wait.
type Wait struct {
	// Type is the event type to match.
	Type string
	// ExcludeIteration, when non-empty, skips events from that build cycle.
	ExcludeIteration json.Number
	// Timeout bounds the whole wait.
	Timeout time.Duration
}

// Poller scans the profile log for qualifying events. Each tick re-reads
// the whole file and scans newest-first. The full re-read is deliberate:
// profile logs are small and the process is short-lived, so do not switch
// this to incremental tailing.
type Poller struct {
	path     string
	interval time.Duration
	notify   bool
	warnf    func(format string, args ...any)
}

// Option adjusts poller behavior.
type Option func(*Poller)

// WithInterval overrides the scan interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithNotify wakes the scan as soon as fsnotify reports the log file
// created or written, instead of waiting for the next tick. The scan
// itself is unchanged; only the wake-up latency differs.
func WithNotify() Option {
	return func(p *Poller) { p.notify = true }
}

// WithWarnf routes malformed-line warnings.
func WithWarnf(warnf func(format string, args ...any)) Option {
	return func(p *Poller) { p.warnf = warnf }
}

// NewPoller creates a poller for the profile log at path. The file does
// not have to exist yet; a missing file means "no event yet".
func NewPoller(path string, opts ...Option) *Poller {
	p := &Poller{
		path:     filepath.Clean(path),
		interval: pollDefault,
		warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "benchwatch: "+format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitFor blocks until a qualifying event appears, the budget runs out,
// or ctx is cancelled. When several events qualify, the most recently
// appended one wins.
func (p *Poller) WaitFor(ctx context.Context, want Wait) (*Event, error) {
	deadline := time.NewTimer(want.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// A nil channel blocks forever, so the wake case is inert unless a
	// watch was established.
	var wake chan struct{}
	if p.notify {
		if watcher, err := fsnotify.NewWatcher(); err == nil {
			if err := watcher.Add(filepath.Dir(p.path)); err != nil {
				_ = watcher.Close()
			} else {
				wake = make(chan struct{}, 1)
				defer func() { _ = watcher.Close() }()
				go forwardWakes(watcher, p.path, wake)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: no %s event within %s", ErrTimeout, want.Type, want.Timeout)
		case <-ticker.C:
		case <-wake:
		}
		if ev := p.scan(want); ev != nil {
			return ev, nil
		}
	}
}

// forwardWakes turns fsnotify create/write events for the log file into
// non-blocking wake signals. Both watcher channels must be drained or
// fsnotify stalls; the loop ends when the watcher is closed.
func forwardWakes(watcher *fsnotify.Watcher, path string, wake chan<- struct{}) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// scan re-reads the whole log and returns the newest qualifying event,
// or nil when none (or no file) exists yet.
func (p *Poller) scan(want Wait) *Event {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		ev, err := ParseLine([]byte(line))
		if err != nil {
			p.warnf("skipping malformed profile line: %v", err)
			continue
		}
		if ev.Type != want.Type {
			continue
		}
		if want.ExcludeIteration != "" && ev.Iteration == want.ExcludeIteration {
			continue
		}
		return ev
	}
	return nil
}
