package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAPIError_Priority(t *testing.T) {
	t.Parallel()

	// Detail wins over everything else.
	e := parseAPIError(400, []byte(`{"detail":"nope","non_field_errors":["x"],"username":["y"]}`))
	require.Equal(t, "nope", e.Error())

	// Then non-field errors.
	e = parseAPIError(400, []byte(`{"non_field_errors":["first","second"],"username":["y"]}`))
	require.Equal(t, "first second", e.Error())

	// Then every field's errors, in stable order.
	e = parseAPIError(400, []byte(`{"username":["taken"],"email":["invalid"]}`))
	require.Equal(t, "email: invalid; username: taken", e.Error())

	// Generic fallback when nothing parses.
	e = parseAPIError(502, []byte(`<html>bad gateway</html>`))
	require.Equal(t, "request failed (status 502)", e.Error())
}

func TestParseAPIError_SingleStringField(t *testing.T) {
	t.Parallel()

	e := parseAPIError(400, []byte(`{"password":"too short"}`))
	require.Equal(t, []string{"too short"}, e.Fields["password"])
}

func TestParseAPIError_ErrorKey(t *testing.T) {
	t.Parallel()

	e := parseAPIError(500, []byte(`{"error":"boom"}`))
	require.Equal(t, "boom", e.Error())
}
