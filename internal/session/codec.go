package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// The payload column holds base64 over a JSON object. JSON is deliberately
// the only decoder involved: it can materialise nothing beyond scalars,
// lists and string-keyed maps, so a tampered or stale payload can never
// instantiate application types. Every decode failure degrades to "absent".

// EncodePayload serialises session attributes into the payload column form.
func EncodePayload(attrs map[string]any) (string, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayload parses a payload column value into session attributes.
// Malformed input of any kind yields an empty map.
func DecodePayload(payload string) map[string]any {
	if payload == "" {
		return map[string]any{}
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return map[string]any{}
	}

	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil || attrs == nil {
		return map[string]any{}
	}
	return attrs
}

// EdgeMetadata extracts the edge_session metadata map from a raw payload.
// The map may sit at the payload root or nested under a "data" wrapper,
// depending on which stack wrote the row. Absent or malformed metadata
// yields an empty map.
func EdgeMetadata(payload string) map[string]any {
	attrs := DecodePayload(payload)

	meta, ok := attrs["edge_session"].(map[string]any)
	if !ok {
		data, dataOK := attrs["data"].(map[string]any)
		if !dataOK {
			return map[string]any{}
		}
		if meta, ok = data["edge_session"].(map[string]any); !ok {
			return map[string]any{}
		}
	}
	return meta
}

// EdgeMetadataValue looks up a dotted-path key inside the edge_session
// metadata, returning def when any stage of the lookup fails.
func EdgeMetadataValue(payload string, key string, def any) any {
	return Lookup(EdgeMetadata(payload), key, def)
}

// Lookup resolves a dotted-path key against a decoded attribute map.
func Lookup(attrs map[string]any, key string, def any) any {
	if key == "" {
		return def
	}
	var current any = attrs
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return def
		}
		if current, ok = m[part]; !ok {
			return def
		}
	}
	return current
}
