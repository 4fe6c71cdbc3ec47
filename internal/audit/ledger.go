// Package audit implements the append-only decision ledger (spec §4.3).
// The ledger is data, not an operational log stream: it is never routed
// through zerolog, and records are never mutated once written.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record, written as a single JSON line.
type Event struct {
	Timestamp       string          `json:"timestamp"`
	RequestID       string          `json:"request_id"`
	Actor           string          `json:"actor"`
	Tool            string          `json:"tool"`
	ArgsSummary     string          `json:"args_summary,omitempty"`
	Decision        string          `json:"decision"`
	Reason          string          `json:"reason"`
	RuleID          string          `json:"rule_id"`
	Sandbox         json.RawMessage `json:"sandbox,omitempty"`
	NetworkAttempts json.RawMessage `json:"network_attempts,omitempty"`
	FilesTouched    json.RawMessage `json:"files_touched,omitempty"`
	Proxy           json.RawMessage `json:"proxy,omitempty"`
	StdoutPreview   string          `json:"stdout_preview,omitempty"`
	StderrPreview   string          `json:"stderr_preview,omitempty"`
}

const (
	DecisionAllow = "ALLOW"
	DecisionBlock = "BLOCK"
)

// NewRequestID returns a fresh UUIDv4, used as the audit request_id
// whenever the caller didn't supply one (spec §4.3).
func NewRequestID() string {
	return uuid.NewString()
}

// Ledger is an append-only, newline-delimited JSON event log backed by a
// single file. Writers append under an exclusive file lock so records from
// concurrent goroutines or processes are never interleaved; readers open a
// fresh snapshot on every call.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// Open returns a Ledger backed by path, creating the file (and its parent
// directory) if necessary.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing ledger %s: %w", path, err)
	}
	return &Ledger{path: path}, nil
}

// Write stamps event.Timestamp (UTC ISO-8601) and appends it as one JSON
// line. The write is flushed to disk before returning.
func (l *Ledger) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger for append: %w", err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("locking ledger: %w", err)
	}
	defer unlock(f)

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return f.Sync()
}

// Tail returns up to the last n records, skipping malformed lines. Records
// are in file order (chronological, since timestamps are UTC ISO-8601 and
// lexicographic order over them is chronological order).
func (l *Ledger) Tail(n int) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	var all []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue // malformed lines are silently skipped on replay
		}
		all = append(all, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	if n <= 0 || n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}
