// Package profile reads the JSON-lines profiling log written by the
// watcher subprocess and its browser instrumentation. The log is
// append-only and owned by the subprocess; this package only ever reads it.
package profile

import (
	"encoding/json"
	"fmt"
)

// Event types emitted by the watcher's profiler.
const (
	RunStart    = "RUN_START"
	BuildDone   = "BUILD_DONE"
	RunDone     = "RUN_DONE"
	RemoteEvent = "REMOTE_EVENT"
)

// Event is one line in the profile log. Iteration identifies the build
// cycle that produced the event; the initial build's events are told apart
// from an incremental build's by iteration equality alone, so it is kept
// as json.Number and never interpreted numerically.
type Event struct {
	Type      string      `json:"type"`
	Iteration json.Number `json:"iteration"`
	Elapsed   int64       `json:"elapsed"`
}

// ParseLine decodes a single profile log line.
func ParseLine(line []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("profile: parse line: %w", err)
	}
	return &ev, nil
}
