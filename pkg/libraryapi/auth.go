package libraryapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/me/libra/pkg/model"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Login exchanges credentials for a token and the member profile.
// A 400 or 401 answer is reported as ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) (*model.AuthResponse, error) {
	const op = "login"
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, NewValidationError(op, errors.New("please enter both username and password"))
	}

	var resp model.AuthResponse
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "auth/login/",
		body:   model.LoginRequest{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return nil, asInvalidCredentials(err)
	}
	if err := resp.Validate(); err != nil {
		return nil, &Error{Op: op, Kind: KindUnknown, Message: "unexpected response from server", Err: err}
	}
	return &resp, nil
}

// Register creates an account. The password confirmation and required fields
// are checked locally before any request is sent.
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.AuthResponse, error) {
	const op = "register"
	if err := reg.Validate(); err != nil {
		return nil, NewValidationError(op, err)
	}

	var resp model.AuthResponse
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "auth/register/",
		body:   reg,
	}, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, &Error{Op: op, Kind: KindUnknown, Message: "unexpected response from server", Err: err}
	}
	return &resp, nil
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{op: "logout", method: http.MethodPost, path: "auth/logout/"}, nil)
}

// RequestPasswordReset asks the backend to e-mail reset instructions.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "password reset"
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return NewValidationError(op, errors.New("please enter a valid email address"))
	}
	return c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "auth/password_reset/",
		body:   model.PasswordResetRequest{Email: email},
	}, nil)
}

// Profile fetches the signed-in member's profile.
func (c *Client) Profile(ctx context.Context) (*model.UserProfile, error) {
	var u model.UserProfile
	if err := c.do(ctx, request{op: "get profile", method: http.MethodGet, path: "auth/profile/"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile sends the changed fields and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.UserProfile, error) {
	const op = "update profile"
	if upd.IsEmpty() {
		return nil, NewValidationError(op, errors.New("nothing to update"))
	}
	if upd.FullName != nil && strings.TrimSpace(*upd.FullName) == "" {
		return nil, NewValidationError(op, errors.New("please enter your full name"))
	}
	var u model.UserProfile
	if err := c.do(ctx, request{op: op, method: http.MethodPatch, path: "auth/profile/", body: upd}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RegisterDevice submits a push token for the signed-in member.
func (c *Client) RegisterDevice(ctx context.Context, pushToken string) error {
	const op = "register device"
	if pushToken == "" {
		return NewValidationError(op, fmt.Errorf("empty push token"))
	}
	return c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "auth/device/register/",
		body:   model.DeviceRegistration{DeviceToken: pushToken},
	}, nil)
}

// asInvalidCredentials re-labels a rejected login.
func asInvalidCredentials(err error) error {
	var e *Error
	if errors.As(err, &e) && (e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnauthorized) {
		e.Kind = KindAuth
		e.Err = ErrInvalidCredentials
	}
	return err
}
