// Package grants implements the event-sourced capability-grant store (spec
// §4.4). A grant's lifetime lives entirely in the append-only event log;
// there is no in-place mutation.
package grants

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// Grant is an issued, possibly-expired-or-revoked capability binding.
type Grant struct {
	GrantID   string    `json:"grant_id"`
	Actor     string    `json:"actor"`
	Tool      string    `json:"tool"`
	Scope     string    `json:"scope"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type event struct {
	Action    string    `json:"action"`
	GrantID   string    `json:"grant_id"`
	Actor     string    `json:"actor,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Store is the event-sourced grant log, backed by a single JSONL file
// (spec §6 grants.jsonl).
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a Store backed by path, creating the file if necessary.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating grant store directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening grant store %s: %w", path, err)
	}
	f.Close()
	return &Store{path: path}, nil
}

func (s *Store) append(e event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling grant event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening grant store for append: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending grant event: %w", err)
	}
	return f.Sync()
}

func (s *Store) readEvents() ([]event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening grant store: %w", err)
	}
	defer f.Close()

	var events []event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event
		if err := json.Unmarshal(line, &e); err != nil {
			continue // malformed lines are silently skipped on replay
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading grant store: %w", err)
	}
	return events, nil
}

// Issue appends an "issue" event and returns the resulting Grant.
func (s *Store) Issue(actor, tool, scope string, ttlSeconds int, reason string) (Grant, error) {
	now := time.Now().UTC()
	g := Grant{
		GrantID:   uuid.NewString(),
		Actor:     actor,
		Tool:      tool,
		Scope:     scope,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlSeconds) * time.Second),
	}
	e := event{
		Action:    "issue",
		GrantID:   g.GrantID,
		Actor:     g.Actor,
		Tool:      g.Tool,
		Scope:     g.Scope,
		Reason:    g.Reason,
		CreatedAt: g.CreatedAt,
		ExpiresAt: g.ExpiresAt,
	}
	if err := s.append(e); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Revoke appends a "revoke" event for grantID.
func (s *Store) Revoke(grantID, reason string) error {
	return s.append(event{
		Action:    "revoke",
		GrantID:   grantID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

// ActiveGrants replays the log and returns every grant that has been
// issued, has not been revoked, and has not yet expired as of now (spec
// §4.4). The `now` read happens once, so the result is deterministic given
// the same log contents.
func (s *Store) ActiveGrants() ([]Grant, error) {
	return s.activeGrantsAt(time.Now())
}

func (s *Store) activeGrantsAt(now time.Time) ([]Grant, error) {
	events, err := s.readEvents()
	if err != nil {
		return nil, err
	}

	revoked := map[string]bool{}
	for _, e := range events {
		if e.Action == "revoke" {
			revoked[e.GrantID] = true
		}
	}

	var active []Grant
	for _, e := range events {
		if e.Action != "issue" {
			continue
		}
		if revoked[e.GrantID] {
			continue
		}
		if !e.ExpiresAt.After(now) {
			continue
		}
		active = append(active, Grant{
			GrantID:   e.GrantID,
			Actor:     e.Actor,
			Tool:      e.Tool,
			Scope:     e.Scope,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
	return active, nil
}

// IsAllowed returns true iff some active grant matches actor, tool, and the
// glob-quoted scope string (spec §4.4).
func (s *Store) IsAllowed(actor, tool, scope string) (bool, error) {
	active, err := s.ActiveGrants()
	if err != nil {
		return false, err
	}
	for _, g := range active {
		if g.Actor != actor && g.Actor != "*" {
			continue
		}
		if g.Tool != tool && g.Tool != "*" {
			continue
		}
		matched, err := scopeMatches(scope, g.Scope)
		if err != nil {
			continue
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func scopeMatches(scope, pattern string) (bool, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("compiling scope glob %q: %w", pattern, err)
	}
	return g.Match(scope), nil
}
