package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.jsonl")
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWaitForExcludesIteration(t *testing.T) {
	path := writeLog(t,
		`{"type":"RUN_DONE","iteration":1,"elapsed":24059}`,
		`{"type":"RUN_DONE","iteration":2,"elapsed":4192}`,
	)
	p := NewPoller(path, WithInterval(10*time.Millisecond))

	ev, err := p.WaitFor(context.Background(), Wait{
		Type:             RunDone,
		ExcludeIteration: "1",
		Timeout:          time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Iteration != "2" || ev.Elapsed != 4192 {
		t.Errorf("got iteration %q elapsed %d, want iteration 2 elapsed 4192", ev.Iteration, ev.Elapsed)
	}
}

func TestWaitForNewestWins(t *testing.T) {
	path := writeLog(t,
		`{"type":"RUN_DONE","iteration":1,"elapsed":100}`,
		`{"type":"BUILD_DONE","iteration":2,"elapsed":150}`,
		`{"type":"RUN_DONE","iteration":2,"elapsed":200}`,
	)
	p := NewPoller(path, WithInterval(10*time.Millisecond))

	ev, err := p.WaitFor(context.Background(), Wait{Type: RunDone, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Elapsed != 200 {
		t.Errorf("elapsed = %d, want the newest event (200)", ev.Elapsed)
	}
}

func TestWaitForIdempotent(t *testing.T) {
	path := writeLog(t, `{"type":"RUN_DONE","iteration":1,"elapsed":300}`)
	p := NewPoller(path, WithInterval(10*time.Millisecond))
	w := Wait{Type: RunDone, Timeout: time.Second}

	first, err := p.WaitFor(context.Background(), w)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.WaitFor(context.Background(), w)
	if err != nil {
		t.Fatal(err)
	}
	if *first != *second {
		t.Errorf("repeated wait returned %+v, want %+v", second, first)
	}
}

func TestWaitForSkipsMalformedLines(t *testing.T) {
	path := writeLog(t,
		`{"type":"RUN_DONE","iteration":1,"elapsed":100}`,
		`{{{ not json`,
		``,
	)
	var warned int
	p := NewPoller(path,
		WithInterval(10*time.Millisecond),
		WithWarnf(func(string, ...any) { warned++ }),
	)

	ev, err := p.WaitFor(context.Background(), Wait{Type: RunDone, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Elapsed != 100 {
		t.Errorf("elapsed = %d, want 100", ev.Elapsed)
	}
	if warned == 0 {
		t.Error("expected a warning for the malformed line")
	}
}

func TestWaitForTimeoutOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-created.jsonl")
	p := NewPoller(path, WithInterval(10*time.Millisecond))

	start := time.Now()
	_, err := p.WaitFor(context.Background(), Wait{Type: RunDone, Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("rejected after %s, want the full ~100ms budget", elapsed)
	}
}

func TestWaitForTimeoutWhenOnlyExcludedIteration(t *testing.T) {
	path := writeLog(t, `{"type":"RUN_DONE","iteration":1,"elapsed":100}`)
	p := NewPoller(path, WithInterval(10*time.Millisecond))

	_, err := p.WaitFor(context.Background(), Wait{
		Type:             RunDone,
		ExcludeIteration: "1",
		Timeout:          100 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitForFileAppearsLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.jsonl")
	p := NewPoller(path, WithInterval(10*time.Millisecond))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte(`{"type":"RUN_DONE","iteration":1,"elapsed":42}`+"\n"), 0600)
	}()

	ev, err := p.WaitFor(context.Background(), Wait{Type: RunDone, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Elapsed != 42 {
		t.Errorf("elapsed = %d, want 42", ev.Elapsed)
	}
}

func TestWaitForNotifyWakesBeforeTick(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.jsonl")
	// With a 2s tick, only the fsnotify wake can resolve this quickly.
	p := NewPoller(path, WithInterval(2*time.Second), WithNotify())

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte(`{"type":"RUN_DONE","iteration":1,"elapsed":7}`+"\n"), 0600)
	}()

	start := time.Now()
	ev, err := p.WaitFor(context.Background(), Wait{Type: RunDone, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Elapsed != 7 {
		t.Errorf("elapsed = %d, want 7", ev.Elapsed)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("resolved after %s, want an fsnotify wake well before the 2s tick", waited)
	}
}

func TestWaitForContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.jsonl")
	p := NewPoller(path, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.WaitFor(ctx, Wait{Type: RunDone, Timeout: time.Minute})
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not stop after context cancellation")
	}
}
