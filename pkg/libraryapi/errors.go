package libraryapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/me/libra/pkg/model"
)

// Kind classifies a failure so callers can pick the right user-facing notice.
type Kind string

const (
	KindValidation        Kind = "validation"         // detected client-side, no request sent
	KindAuth              Kind = "auth"               // invalid credentials or token (400 on login, 401, 403)
	KindNetwork           Kind = "network"            // no response received
	KindBackendValidation Kind = "backend_validation" // 4xx with a DRF error body
	KindNotFound          Kind = "not_found"          // 404
	KindServer            Kind = "server"             // 5xx
	KindUnknown           Kind = "unknown"
)

// Error types for common failure scenarios.
var (
	// ErrNotAuthenticated indicates an operation needs a session and none exists.
	ErrNotAuthenticated = errors.New("not authenticated: please log in")

	// ErrInvalidCredentials indicates the backend rejected the login.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthorized indicates the backend answered 401 and the stored
	// credentials were discarded.
	ErrUnauthorized = errors.New("session expired or token invalid")

	// ErrTimeout indicates the request did not complete in time.
	ErrTimeout = errors.New("request timed out")
)

// Error wraps a backend or transport failure with operation context.
type Error struct {
	// Op is the operation that failed, e.g. "login" or "add favorite".
	Op string

	// Kind classifies the failure.
	Kind Kind

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Message is the human-readable message (flattened DRF body if any).
	Message string

	// Body is the decoded error body, if the backend sent one.
	Body *model.ErrorBody

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	case e.Err != nil && e.Message != "" && e.Message != e.Err.Error():
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports a client-side validation failure.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Message: err.Error(), Err: err}
}

// networkError wraps a transport failure.
func networkError(op string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Op: op, Kind: KindNetwork, Message: ErrTimeout.Error(), Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	return &Error{Op: op, Kind: KindNetwork, Message: "could not reach the library server", Err: err}
}

// statusError builds an Error from a non-2xx response.
func statusError(op string, status int, body []byte) *Error {
	parsed := model.ParseErrorBody(body)
	e := &Error{
		Op:         op,
		StatusCode: status,
		Body:       parsed,
		Message:    parsed.Message(),
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
		e.Err = ErrUnauthorized
	case status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status >= 500:
		e.Kind = KindServer
	case status >= 400:
		e.Kind = KindBackendValidation
	default:
		e.Kind = KindUnknown
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return KindAuth
	}
	if errors.Is(err, model.ErrPasswordMismatch) || errors.Is(err, model.ErrMissingField) {
		return KindValidation
	}
	return KindUnknown
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsUnauthorized returns true if the backend answered 401.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNetworkError returns true if no response was received.
func IsNetworkError(err error) bool {
	return KindOf(err) == KindNetwork
}

// IsValidationError returns true for client-side or backend validation errors.
func IsValidationError(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindBackendValidation
}

// IsNotFound returns true if the backend answered 404.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// UserMessage renders err as a message suitable for an alert. Backend field
// errors are flattened to one line per field; otherwise a generic message for
// the error's kind is used.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if errors.Is(e.Err, ErrInvalidCredentials) {
		if e.Body.HasFieldErrors() || (e.Body != nil && e.Body.Detail != "") {
			return e.Message
		}
		return ErrInvalidCredentials.Error()
	}
	switch e.Kind {
	case KindValidation, KindBackendValidation:
		if e.Message != "" {
			return e.Message
		}
		return "The request was rejected. Please check your input."
	case KindNetwork:
		return "Could not reach the library server. Please check your connection and try again."
	case KindAuth:
		if e.StatusCode == http.StatusUnauthorized {
			return "Your session has expired. Please log in again."
		}
		if e.Message != "" {
			return e.Message
		}
		return "You are not allowed to do that."
	case KindNotFound:
		return "Not found."
	case KindServer:
		return "The library server had a problem. Please try again later."
	default:
		if e.Message != "" {
			return e.Message
		}
		return "Something went wrong. Please try again."
	}
}
