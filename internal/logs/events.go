// Package logs keeps a per-build JSON lines event log next to the build
// state.
package logs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Event struct {
	Timestamp string `json:"timestamp"`
	BuildID   string `json:"buildId"`
	Phase     string `json:"phase"`
	Step      int    `json:"step,omitempty"`
	Command   string `json:"command,omitempty"`
	ExitCode  *int   `json:"exitCode,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// Path returns the event file for buildID under stateDir.
func Path(stateDir, buildID string) string {
	return filepath.Join(stateDir, "builds", buildID, "events.jsonl")
}

func AppendEvent(stateDir string, buildID string, e Event) error {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	e.BuildID = buildID
	path := Path(stateDir, buildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

func ReadEvents(stateDir string, buildID string) ([]Event, error) {
	f, err := os.Open(Path(stateDir, buildID))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var events []Event
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for s.Scan() {
		var e Event
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}
