package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSON_RedactsSecretShapedKeys(t *testing.T) {
	in := `{"url":"https://x","headers":{"Authorization":"Bearer abc123","X-Api-Key":"sk-xyz"}}`
	out, err := JSON(in)
	require.NoError(t, err)
	require.Contains(t, out, `"Authorization":"[REDACTED]"`)
	require.Contains(t, out, `"X-Api-Key":"[REDACTED]"`)
	require.NotContains(t, out, "abc123")
	require.NotContains(t, out, "sk-xyz")
	require.Contains(t, out, `"url":"https://x"`)
}

func TestJSON_DoesNotRedactNonSecretKeysWithSecretSubstrings(t *testing.T) {
	in := `{"api_key_hint_length":12,"path":"/tmp/secrets"}`
	out, err := JSON(in)
	require.NoError(t, err)
	require.Contains(t, out, `"api_key_hint_length":12`)
	require.Contains(t, out, `"path":"/tmp/secrets"`)
}

func TestJSON_RecursesIntoNestedStructures(t *testing.T) {
	in := `{"a":[{"password":"hunter2"},{"nested":{"ssh_key":"id_rsa"}}]}`
	out, err := JSON(in)
	require.NoError(t, err)
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "id_rsa")
}

func TestJSON_NonJSONInputReturnedUnchanged(t *testing.T) {
	in := "plain text, not json"
	out, err := JSON(in)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestJSON_EmptyInputReturnedUnchanged(t *testing.T) {
	out, err := JSON("")
	require.NoError(t, err)
	require.Equal(t, "", out)
}

func TestJSON_IsIdempotent(t *testing.T) {
	in := `{"token":"abc","nested":{"secret":"def"}}`
	once, err := JSON(in)
	require.NoError(t, err)
	twice, err := JSON(once)
	require.NoError(t, err)
	require.JSONEq(t, once, twice)
}
