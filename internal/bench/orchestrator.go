// Package bench sequences one benchmark run: await the initial build,
// optionally load a page, perturb the watched file, and time the
// incremental rebuild and reload.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/benchwatch/internal/profile"
)

// outputPrefix tags every measurement line so downstream scrapers can
// pick them out of the relayed watcher output.
const outputPrefix = "[ibazel-benchmark-runner]"

// State names the orchestrator's position in the benchmark sequence.
type State int

const (
	StateStarting State = iota
	StateAwaitingInitialBuild
	StateAwaitingInitialBrowserLoad
	StateMutatingFile
	StateAwaitingIncrementalBuild
	StateAwaitingIncrementalBrowserLoad
	StateShuttingDown
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateAwaitingInitialBuild:
		return "awaiting initial build"
	case StateAwaitingInitialBrowserLoad:
		return "awaiting initial browser load"
	case StateMutatingFile:
		return "mutating file"
	case StateAwaitingIncrementalBuild:
		return "awaiting incremental build"
	case StateAwaitingIncrementalBrowserLoad:
		return "awaiting incremental browser load"
	case StateShuttingDown:
		return "shutting down"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventWaiter blocks until a qualifying profile event appears.
type EventWaiter interface {
	WaitFor(ctx context.Context, w profile.Wait) (*profile.Event, error)
}

// Navigator points a browser page at a URL without waiting for the load.
type Navigator interface {
	Navigate(url string) error
}

// Options configures one benchmark sequence.
type Options struct {
	Target     string
	ModifyFile string
	// URL, when set, enables the two browser states. Browser must then
	// be non-nil.
	URL string

	InitialTimeout     time.Duration
	IncrementalTimeout time.Duration
	BrowserTimeout     time.Duration

	Events  EventWaiter
	Browser Navigator
	Mutate  func(path string) error
	// Out receives the measurement lines. Default os.Stdout.
	Out io.Writer
}

// Result holds the measurements of one run. BrowserRTT is meaningful
// only when Browsed is set.
type Result struct {
	InitialBuild   time.Duration
	IncrementalRTT time.Duration
	BrowserRTT     time.Duration
	Browsed        bool
}

// Orchestrator walks the fixed benchmark sequence. Transitions are
// strictly sequential; any failure moves straight to shutdown and no
// state is ever retried.
type Orchestrator struct {
	opts  Options
	state State
}

// New creates an orchestrator for one run.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// State reports the current position in the sequence.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the sequence, printing one line per measurement.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	o.state = StateAwaitingInitialBuild
	initial, err := o.opts.Events.WaitFor(ctx, profile.Wait{
		Type:    profile.RunDone,
		Timeout: o.opts.InitialTimeout,
	})
	if err != nil {
		return nil, o.fail(fmt.Errorf("initial build: %w", err))
	}
	res.InitialBuild = time.Duration(initial.Elapsed) * time.Millisecond
	o.printf("Initial build time %dms", initial.Elapsed)

	var remoteIteration json.Number
	if o.opts.URL != "" {
		o.state = StateAwaitingInitialBrowserLoad
		if err := o.opts.Browser.Navigate(o.opts.URL); err != nil {
			return nil, o.fail(fmt.Errorf("initial page load: %w", err))
		}
		first, err := o.opts.Events.WaitFor(ctx, profile.Wait{
			Type:    profile.RemoteEvent,
			Timeout: o.opts.BrowserTimeout,
		})
		if err != nil {
			return nil, o.fail(fmt.Errorf("initial page load: %w", err))
		}
		remoteIteration = first.Iteration
	}

	o.state = StateMutatingFile
	if err := o.opts.Mutate(o.opts.ModifyFile); err != nil {
		return nil, o.fail(err)
	}
	changed := time.Now()

	o.state = StateAwaitingIncrementalBuild
	if _, err := o.opts.Events.WaitFor(ctx, profile.Wait{
		Type:             profile.RunDone,
		ExcludeIteration: initial.Iteration,
		Timeout:          o.opts.IncrementalTimeout,
	}); err != nil {
		return nil, o.fail(fmt.Errorf("incremental build: %w", err))
	}
	res.IncrementalRTT = time.Since(changed)
	o.printf("Incremental build RTT %dms", res.IncrementalRTT.Milliseconds())

	if o.opts.URL != "" {
		o.state = StateAwaitingIncrementalBrowserLoad
		if _, err := o.opts.Events.WaitFor(ctx, profile.Wait{
			Type:             profile.RemoteEvent,
			ExcludeIteration: remoteIteration,
			Timeout:          o.opts.BrowserTimeout,
		}); err != nil {
			return nil, o.fail(fmt.Errorf("page reload: %w", err))
		}
		res.BrowserRTT = time.Since(changed)
		res.Browsed = true
		o.printf("Browser load RTT %dms", res.BrowserRTT.Milliseconds())
	}

	o.state = StateDone
	return res, nil
}

func (o *Orchestrator) fail(err error) error {
	o.state = StateShuttingDown
	return err
}

func (o *Orchestrator) printf(format string, args ...any) {
	out := o.opts.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, outputPrefix+" "+format+"\n", args...)
}
