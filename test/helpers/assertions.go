package helpers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// envelope mirrors the API response wrapper without importing the handler
// packages under test.
type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error"`
}

// DecodeSuccessData unmarshals a success envelope and returns its data object.
func DecodeSuccessData(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()

	var resp envelope
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Success, "expected success envelope, got error %q", resp.Error)
	require.NotNil(t, resp.Data)
	return resp.Data
}

// RequireErrorMessage asserts an error envelope carries the expected message.
func RequireErrorMessage(t *testing.T, body []byte, want string) {
	t.Helper()

	var resp envelope
	require.NoError(t, json.Unmarshal(body, &resp))
	require.False(t, resp.Success)
	require.Equal(t, want, resp.Error)
}

// RequireFlag asserts a boolean field in a decoded data object.
func RequireFlag(t *testing.T, data map[string]interface{}, field string, want bool) {
	t.Helper()

	value, ok := data[field].(bool)
	require.True(t, ok, "field %q missing or not a bool", field)
	require.Equal(t, want, value)
}
