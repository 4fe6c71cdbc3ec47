package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedgerWriteTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.Write(Event{RequestID: "r", Actor: "a", Tool: "shell.run", Decision: DecisionAllow, RuleID: "cmd_0"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	events, err := l.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.Timestamp == "" {
			t.Errorf("expected timestamp to be stamped")
		}
	}
}

func TestLedgerTailSkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Write(Event{RequestID: "r1", Decision: DecisionAllow}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	appendRaw(t, path, "not json at all\n")

	if err := l.Write(Event{RequestID: "r2", Decision: DecisionBlock}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	events, err := l.Tail(0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected malformed line skipped, got %d events", len(events))
	}
}

func TestLedgerTailMissingFile(t *testing.T) {
	l := &Ledger{path: filepath.Join(t.TempDir(), "missing.jsonl")}
	events, err := l.Tail(10)
	if err != nil {
		t.Fatalf("Tail on missing file should not error: %v", err)
	}
	if events != nil {
		t.Fatalf("expected nil events, got %v", events)
	}
}

func appendRaw(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
}
