package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the Django REST Framework pagination envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasMore reports whether the backend advertised a next page.
func (p *Page[T]) HasMore() bool {
	return p.Next != nil && *p.Next != ""
}

// DecodeList decodes a list endpoint body. The backend returns either a bare
// JSON array or a paginated envelope depending on the view; both are accepted.
// An empty body or JSON null yields an empty, non-nil slice.
func DecodeList[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	case '{':
		var page Page[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		if page.Results == nil {
			page.Results = []T{}
		}
		return page.Results, nil
	default:
		return nil, fmt.Errorf("decode list: unexpected body starting with %q", trimmed[0])
	}
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}

// Validate checks that the response carries both halves of a session.
func (r *AuthResponse) Validate() error {
	if r.Token == "" {
		return fmt.Errorf("auth response: missing token")
	}
	if r.User == nil {
		return fmt.Errorf("auth response: missing user")
	}
	return nil
}
