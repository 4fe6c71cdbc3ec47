package adapters

import "testing"

func TestStrictV1(t *testing.T) {
	payload := []byte(`{"request_id":"r1","tool":"shell.run","args":{"command":"ls"}}`)
	action, err := StrictV1("/v1/tools/execute", payload, "fallback-actor")
	if err != nil {
		t.Fatalf("StrictV1: %v", err)
	}
	if action.Actor != "fallback-actor" {
		t.Errorf("expected fallback actor, got %s", action.Actor)
	}
	if action.Tool != "shell.run" {
		t.Errorf("expected tool shell.run, got %s", action.Tool)
	}

	if _, err := StrictV1("/v2/tools/execute", payload, ""); err == nil {
		t.Errorf("expected error for wrong route")
	}

	badVersion := []byte(`{"request_id":"r1","tool":"x","args":{},"openclaw_version":"v2"}`)
	if _, err := StrictV1("/v1/tools/execute", badVersion, ""); err == nil {
		t.Errorf("expected error for mismatched openclaw_version")
	}
}

func TestStrictV2(t *testing.T) {
	payload := []byte(`{"request_id":"r1","action":{"name":"http.fetch","args":{"url":"https://x"}}}`)
	action, err := StrictV2("/v2/tools/execute", payload, "fallback")
	if err != nil {
		t.Fatalf("StrictV2: %v", err)
	}
	if action.Tool != "http.fetch" {
		t.Errorf("expected tool http.fetch, got %s", action.Tool)
	}
	if action.Args["url"] != "https://x" {
		t.Errorf("expected args.url to carry through, got %v", action.Args)
	}
}

func TestGenericLossyFallback(t *testing.T) {
	payload := []byte(`{"id":"abc","name":"curl","input":"raw string value"}`)
	action, err := Generic("/legacy/execute", payload, "fallback")
	if err != nil {
		t.Fatalf("Generic: %v", err)
	}
	if action.RequestID != "abc" {
		t.Errorf("expected request id from 'id' field, got %s", action.RequestID)
	}
	if action.Tool != "curl" {
		t.Errorf("expected tool from 'name' field, got %s", action.Tool)
	}
	if action.Args["raw"] != "raw string value" {
		t.Errorf("expected non-object input wrapped as {raw: ...}, got %v", action.Args)
	}

	noID := []byte(`{"tool_name":"ls","args":{}}`)
	action, err = Generic("/legacy/execute", noID, "fallback")
	if err != nil {
		t.Fatalf("Generic: %v", err)
	}
	if action.RequestID != "proxy-generated" {
		t.Errorf("expected sentinel request id, got %s", action.RequestID)
	}
}

func TestRoutePrefersStrictThenFallsThrough(t *testing.T) {
	v2payload := []byte(`{"request_id":"r1","action":{"name":"http.fetch","args":{"url":"https://x"}}}`)
	action, err := Route("/v2/tools/execute", v2payload, "fallback")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if action.Tool != "http.fetch" {
		t.Errorf("expected strict-v2 adapter to win, got tool %s", action.Tool)
	}

	malformedV2 := []byte(`{"request_id":"r1"}`)
	action, err = Route("/v2/tools/execute", malformedV2, "fallback")
	if err != nil {
		t.Fatalf("Route should fall through to generic on strict error: %v", err)
	}
	if action.RequestID != "r1" {
		t.Errorf("expected generic fallback to still pick up request_id, got %s", action.RequestID)
	}
}
