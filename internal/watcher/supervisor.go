// Package watcher launches and supervises the iBazel subprocess that
// performs the builds being measured.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

var (
	// ErrUnexpectedExit means the subprocess died before a stop was requested.
	ErrUnexpectedExit = errors.New("watcher: subprocess exited unexpectedly")
	// ErrStopTimeout means the subprocess outlived the grace period after
	// SIGTERM and had to be killed.
	ErrStopTimeout = errors.New("watcher: subprocess did not exit within grace period")
)

// graceDefault bounds graceful shutdown before the child is killed.
const graceDefault = 5 * time.Second

// Config describes the watcher invocation.
type Config struct {
	// Bin is the watcher binary. Defaults to "ibazel".
	Bin string
	// Target is the build target handed to "run".
	Target string
	// ProfilePath is where the watcher writes its JSON-lines profile.
	// The file itself is created by the subprocess, not by us.
	ProfilePath string
	// BazelConfig, when set, forwards --config=<name> to the build.
	BazelConfig string
	// Grace bounds graceful shutdown. Defaults to 5s.
	Grace time.Duration
	// Stdout and Stderr receive the child's streams unmodified.
	// Default os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

func buildArgs(cfg Config) []string {
	args := []string{"--profile_dev=" + cfg.ProfilePath, "run", cfg.Target}
	if cfg.BazelConfig != "" {
		args = append(args, "--config="+cfg.BazelConfig)
	}
	return args
}

// Supervisor owns one running watcher subprocess. Whether a stop was
// requested is explicit state here, so the monitor can tell a requested
// exit from a crash.
type Supervisor struct {
	cmd   *exec.Cmd
	grace time.Duration

	mu        sync.Mutex
	requested bool

	done    chan struct{}
	waitErr error // valid after done is closed
}

// Start launches the watcher subprocess and begins collecting its exit.
func Start(cfg Config) (*Supervisor, error) {
	if cfg.Bin == "" {
		cfg.Bin = "ibazel"
	}
	if cfg.Grace <= 0 {
		cfg.Grace = graceDefault
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	cmd := exec.Command(cfg.Bin, buildArgs(cfg)...)
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("watcher: start %s: %w", cfg.Bin, err)
	}

	s := &Supervisor{cmd: cmd, grace: cfg.Grace, done: make(chan struct{})}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

// Exited is closed when the subprocess has exited for any reason.
func (s *Supervisor) Exited() <-chan struct{} {
	return s.done
}

// StopRequested reports whether Stop has been called.
func (s *Supervisor) StopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Monitor cancels the run when the subprocess exits without a requested
// stop. Returns when the process exits or ctx is done.
func (s *Supervisor) Monitor(ctx context.Context, cancel context.CancelCauseFunc) {
	select {
	case <-ctx.Done():
	case <-s.done:
		if !s.StopRequested() {
			cancel(s.exitError())
		}
	}
}

func (s *Supervisor) exitError() error {
	if s.waitErr != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedExit, s.waitErr)
	}
	return ErrUnexpectedExit
}

// Stop requests graceful shutdown with SIGTERM and kills the child if it
// has not exited when the grace period runs out.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()

	select {
	case <-s.done:
		// Already gone; the monitor decided whether that was a failure.
		return nil
	default:
	}

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// The process may have exited between the check and the signal.
		select {
		case <-s.done:
			return nil
		default:
			_ = s.cmd.Process.Kill()
			return fmt.Errorf("watcher: signal subprocess: %w", err)
		}
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(s.grace):
		_ = s.cmd.Process.Kill()
		return ErrStopTimeout
	}
}
