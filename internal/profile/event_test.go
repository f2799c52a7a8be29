package profile

import "testing"

func TestParseLine(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"RUN_DONE","iteration":1,"elapsed":24059}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != RunDone {
		t.Errorf("type = %q, want %q", ev.Type, RunDone)
	}
	if ev.Iteration != "1" {
		t.Errorf("iteration = %q, want %q", ev.Iteration, "1")
	}
	if ev.Elapsed != 24059 {
		t.Errorf("elapsed = %d, want 24059", ev.Elapsed)
	}
}

func TestParseLineStringIteration(t *testing.T) {
	// Some watcher builds stamp iterations as strings; equality filtering
	// must still work.
	ev, err := ParseLine([]byte(`{"type":"REMOTE_EVENT","iteration":"1712000000","elapsed":310}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Iteration != "1712000000" {
		t.Errorf("iteration = %q, want %q", ev.Iteration, "1712000000")
	}
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{"", "{", "not json", `{"type":42}`} {
		if _, err := ParseLine([]byte(line)); err == nil {
			t.Errorf("ParseLine(%q) succeeded, want error", line)
		}
	}
}
