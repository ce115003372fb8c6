package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ErrorBody is a decoded DRF error payload. DRF returns one of
//
//	{"detail": "..."}
//	{"error": "..."}
//	{"field": ["msg", ...], "non_field_errors": ["msg"]}
//
// and occasionally mixes them.
type ErrorBody struct {
	Detail string
	Error  string
	Fields []FieldError
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field    string   `json:"field"`
	Messages []string `json:"messages"`
}

// ParseErrorBody decodes a backend error body. It returns nil if the body is
// not a JSON object.
func ParseErrorBody(data []byte) *ErrorBody {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	body := &ErrorBody{}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		msgs := decodeMessages(raw[key])
		switch key {
		case "detail":
			body.Detail = strings.Join(msgs, " ")
		case "error":
			body.Error = strings.Join(msgs, " ")
		default:
			if len(msgs) > 0 {
				body.Fields = append(body.Fields, FieldError{Field: key, Messages: msgs})
			}
		}
	}
	return body
}

// decodeMessages accepts a string, a list of strings, or any other JSON value
// (rendered verbatim).
func decodeMessages(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	if string(raw) == "null" {
		return nil
	}
	return []string{string(raw)}
}

// Message flattens the body into a human-readable, possibly multi-line
// message. The "error" key wins, then per-field errors, then "detail".
// It returns "" when nothing useful was present.
func (b *ErrorBody) Message() string {
	if b == nil {
		return ""
	}
	if b.Error != "" {
		return b.Error
	}
	if len(b.Fields) > 0 {
		lines := make([]string, 0, len(b.Fields))
		for _, f := range b.Fields {
			lines = append(lines, fmt.Sprintf("%s: %s", f.Field, strings.Join(f.Messages, ", ")))
		}
		return strings.Join(lines, "\n")
	}
	return b.Detail
}

// HasFieldErrors reports whether the body carried structured per-field errors.
func (b *ErrorBody) HasFieldErrors() bool {
	return b != nil && len(b.Fields) > 0
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s", e.Entity, e.From, e.To)
}
