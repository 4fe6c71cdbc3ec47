package adapters

// Generic adapts a best-effort, lossy legacy payload shape (spec §4.6).
// It never fails on structurally odd input: missing identifiers fall back
// to sentinel values, and a non-object args value is wrapped rather than
// rejected.
func Generic(path string, payload []byte, fallbackActor string) (ToolAction, error) {
	raw, err := decodeRaw(payload)
	if err != nil {
		return ToolAction{}, err
	}

	requestID := firstNonEmptyString(raw, "request_id", "id")
	if requestID == "" {
		requestID = "proxy-generated"
	}

	tool := firstNonEmptyString(raw, "tool", "tool_name", "name", "action")

	args := firstObject(raw, "args", "input", "payload")
	if args == nil {
		args = wrapRaw(firstAny(raw, "args", "input", "payload"))
	}

	return ToolAction{
		RequestID:  requestID,
		Actor:      optionalString(raw, "actor", fallbackActor),
		SessionID:  optionalString(raw, "session_id", ""),
		Tool:       tool,
		Args:       args,
		Route:      path,
		Context:    optionalObject(raw, "context"),
		RawPayload: raw,
	}, nil
}

func firstNonEmptyString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstObject(raw map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if obj, ok := v.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

func firstAny(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v
		}
	}
	return nil
}

func wrapRaw(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return map[string]any{"raw": v}
}
