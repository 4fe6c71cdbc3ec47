package adapters

import "encoding/json"

// Route selects and runs the right adapter for path/payload (spec §4.6):
// strict-v2 is preferred when the route or declared version says v2, then
// strict-v1 on the same basis, falling through to the generic adapter on
// any strict-adapter error (or when neither strict route/version matched).
func Route(path string, payload []byte, fallbackActor string) (ToolAction, error) {
	version := declaredVersion(payload)

	if path == StrictV2RoutePattern || version == "v2" {
		if action, err := StrictV2(path, payload, fallbackActor); err == nil {
			return action, nil
		}
		return Generic(path, payload, fallbackActor)
	}

	if path == StrictV1RoutePattern || version == "v1" {
		if action, err := StrictV1(path, payload, fallbackActor); err == nil {
			return action, nil
		}
		return Generic(path, payload, fallbackActor)
	}

	return Generic(path, payload, fallbackActor)
}

func declaredVersion(payload []byte) string {
	var probe struct {
		OpenclawVersion string `json:"openclaw_version"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.OpenclawVersion
}
