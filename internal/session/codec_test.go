package session

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, attrs map[string]any) string {
	t.Helper()
	payload, err := EncodePayload(attrs)
	require.NoError(t, err)
	return payload
}

func TestPayloadRoundTrip(t *testing.T) {
	attrs := map[string]any{
		"current_passport_token_id": "0c9a8e9e-1111-2222-3333-444455556666",
		"edge_session": map[string]any{
			"token_id": "0c9a8e9e-1111-2222-3333-444455556666",
			"app_host": "app.example.com",
			"scopes":   []any{"edge"},
		},
	}

	decoded := DecodePayload(encode(t, attrs))
	assert.Equal(t, attrs, decoded)
}

func TestDecodePayloadFailsSoft(t *testing.T) {
	notBase64 := "%%%not-base64%%%"
	base64NotJSON := base64.StdEncoding.EncodeToString([]byte("not json at all"))
	base64JSONScalar := base64.StdEncoding.EncodeToString([]byte(`"just a string"`))
	base64JSONNull := base64.StdEncoding.EncodeToString([]byte(`null`))

	for name, payload := range map[string]string{
		"empty":         "",
		"not base64":    notBase64,
		"not json":      base64NotJSON,
		"root not map":  base64JSONScalar,
		"root is null":  base64JSONNull,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, map[string]any{}, DecodePayload(payload))
			assert.Equal(t, map[string]any{}, EdgeMetadata(payload))
			assert.Equal(t, "fallback", EdgeMetadataValue(payload, "app_host", "fallback"))
		})
	}
}

func TestEdgeMetadataMissingKeyFailsSoft(t *testing.T) {
	payload := encode(t, map[string]any{"something_else": true})

	assert.Equal(t, map[string]any{}, EdgeMetadata(payload))
	assert.Nil(t, EdgeMetadataValue(payload, "token_id", nil))
}

func TestEdgeMetadataWrongTypeFailsSoft(t *testing.T) {
	payload := encode(t, map[string]any{"edge_session": "not a map"})

	assert.Equal(t, map[string]any{}, EdgeMetadata(payload))
}

func TestEdgeMetadataDataWrapper(t *testing.T) {
	payload := encode(t, map[string]any{
		"data": map[string]any{
			"edge_session": map[string]any{"label": "app.example.com"},
		},
	})

	assert.Equal(t, "app.example.com", EdgeMetadataValue(payload, "label", ""))
}

func TestLookupDottedPath(t *testing.T) {
	attrs := map[string]any{
		"edge_session": map[string]any{
			"nested": map[string]any{"deep": "value"},
		},
	}

	assert.Equal(t, "value", Lookup(attrs, "edge_session.nested.deep", nil))
	assert.Equal(t, "def", Lookup(attrs, "edge_session.nested.missing", "def"))
	assert.Equal(t, "def", Lookup(attrs, "edge_session.nested.deep.too_far", "def"))
	assert.Equal(t, "def", Lookup(attrs, "", "def"))
}
