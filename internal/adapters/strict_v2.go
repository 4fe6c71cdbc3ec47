package adapters

// StrictV2RoutePattern is the only route strict-v2 accepts.
const StrictV2RoutePattern = "/v2/tools/execute"

// StrictV2 adapts the strict-v2 payload shape (spec §4.6), where tool and
// args are nested under action.name / action.args.
func StrictV2(path string, payload []byte, fallbackActor string) (ToolAction, error) {
	if path != StrictV2RoutePattern {
		return ToolAction{}, errf("strict-v2 adapter only accepts route %s, got %s", StrictV2RoutePattern, path)
	}

	raw, err := decodeRaw(payload)
	if err != nil {
		return ToolAction{}, err
	}

	if v, ok := raw["openclaw_version"]; ok {
		if s, ok := v.(string); !ok || s != "v2" {
			return ToolAction{}, errf("strict-v2 adapter requires openclaw_version=v2 when present")
		}
	}

	requestID, err := requireNonEmptyString(raw, "request_id")
	if err != nil {
		return ToolAction{}, err
	}
	action, err := requireObject(raw, "action")
	if err != nil {
		return ToolAction{}, err
	}
	tool, err := requireNonEmptyString(action, "name")
	if err != nil {
		return ToolAction{}, errf("action.name: %v", err)
	}
	args, err := requireObject(action, "args")
	if err != nil {
		return ToolAction{}, errf("action.args: %v", err)
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
