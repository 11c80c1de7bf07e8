package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/cocoja-ai/chatkit/internal/errs"
)

// APIError is a structured rejection from the backend, parsed once at the
// transport boundary. The backend answers either with a top-level detail
// message, with non-field errors, or with per-field error lists.
type APIError struct {
	StatusCode int
	Detail     string
	NonField   []string
	Fields     map[string][]string
}

// Error renders the highest-priority message available: detail, then
// non-field errors, then every field's errors, then a generic fallback.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.NonField) > 0 {
		return strings.Join(e.NonField, " ")
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], " ")))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprintf("request failed (status %d)", e.StatusCode)
}

// Unwrap maps unauthorized and missing statuses onto their sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	}
	return nil
}

func parseAPIError(status int, raw []byte) *APIError {
	e := &APIError{StatusCode: status}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return e
	}

	for key, val := range body {
		switch key {
		case "detail", "error":
			var s string
			if json.Unmarshal(val, &s) == nil && e.Detail == "" {
				e.Detail = s
			}
		case "non_field_errors":
			e.NonField = stringList(val)
		default:
			if msgs := stringList(val); len(msgs) > 0 {
				if e.Fields == nil {
					e.Fields = map[string][]string{}
				}
				e.Fields[key] = msgs
			}
		}
	}
	return e
}

// stringList accepts both "msg" and ["msg", ...] shapes.
func stringList(raw json.RawMessage) []string {
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	var one string
	if json.Unmarshal(raw, &one) == nil && one != "" {
		return []string{one}
	}
	return nil
}
