package adapters

// StrictV1RoutePattern is the only route strict-v1 accepts.
const StrictV1RoutePattern = "/v1/tools/execute"

// StrictV1 adapts the "light-gateway / strict-v1" payload shape (spec
// §4.6). Only the exact route StrictV1RoutePattern is accepted.
func StrictV1(path string, payload []byte, fallbackActor string) (ToolAction, error) {
	if path != StrictV1RoutePattern {
		return ToolAction{}, errf("strict-v1 adapter only accepts route %s, got %s", StrictV1RoutePattern, path)
	}

	raw, err := decodeRaw(payload)
	if err != nil {
		return ToolAction{}, err
	}

	if v, ok := raw["openclaw_version"]; ok {
		if s, ok := v.(string); !ok || s != "v1" {
			return ToolAction{}, errf("strict-v1 adapter requires openclaw_version=v1 when present")
		}
	}

	requestID, err := requireNonEmptyString(raw, "request_id")
	if err != nil {
		return ToolAction{}, err
	}
	tool, err := requireNonEmptyString(raw, "tool")
	if err != nil {
		return ToolAction{}, err
	}
	args, err := requireObject(raw, "args")
	if err != nil {
		return ToolAction{}, err
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
