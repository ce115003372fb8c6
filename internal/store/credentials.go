package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/libra/internal/logging"
	"github.com/me/libra/pkg/model"
)

// Keys of the credential record.
const (
	KeyAuthToken = "authToken"
	KeyUserData  = "userData"
)

// Record is the durable form of an authenticated session.
type Record struct {
	AuthToken string
	User      *model.UserProfile
}

// ErrIncompleteRecord is returned by Load when only one half of the record
// is present.
var ErrIncompleteRecord = errors.New("incomplete credential record")

// Credentials reads and writes the credential record as an atomic pair.
// It satisfies libraryapi.TokenStore.
type Credentials struct {
	kv     Store
	logger *slog.Logger
}

// NewCredentials wraps kv.
func NewCredentials(kv Store, logger *slog.Logger) *Credentials {
	logger = logging.Or(logger)
	return &Credentials{kv: kv, logger: logger.With("component", "credentials")}
}

// Save writes token and user together. When the store cannot batch and the
// second write fails, the first is rolled back.
func (c *Credentials) Save(ctx context.Context, rec Record) error {
	if rec.AuthToken == "" || rec.User == nil {
		return fmt.Errorf("save credentials: %w", ErrIncompleteRecord)
	}
	userJSON, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if b, ok := c.kv.(Batcher); ok {
		if err := b.SetMany(ctx, map[string]string{
			KeyAuthToken: rec.AuthToken,
			KeyUserData:  string(userJSON),
		}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
		return nil
	}

	if err := c.kv.Set(ctx, KeyAuthToken, rec.AuthToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := c.kv.Set(ctx, KeyUserData, string(userJSON)); err != nil {
		if rmErr := c.kv.Remove(ctx, KeyAuthToken); rmErr != nil {
			c.logger.Error("roll back token after failed user write", "error", rmErr)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Load returns the stored record, or nil when none is stored. A record with
// only one half present yields ErrIncompleteRecord; undecodable user data
// yields a decode error.
func (c *Credentials) Load(ctx context.Context) (*Record, error) {
	token, hasToken, err := c.kv.Get(ctx, KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	userJSON, hasUser, err := c.kv.Get(ctx, KeyUserData)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	switch {
	case !hasToken && !hasUser:
		return nil, nil
	case !hasToken || !hasUser || token == "":
		return nil, ErrIncompleteRecord
	}

	var user model.UserProfile
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("decode user data: %w", err)
	}
	return &Record{AuthToken: token, User: &user}, nil
}

// Token returns the stored token, or "".
func (c *Credentials) Token(ctx context.Context) (string, error) {
	token, _, err := c.kv.Get(ctx, KeyAuthToken)
	return token, err
}

// Clear removes both halves of the record. Both removals are attempted even
// if the first fails.
func (c *Credentials) Clear(ctx context.Context) error {
	if b, ok := c.kv.(Batcher); ok {
		if err := b.RemoveMany(ctx, KeyAuthToken, KeyUserData); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		return nil
	}
	return errors.Join(
		c.kv.Remove(ctx, KeyAuthToken),
		c.kv.Remove(ctx, KeyUserData),
	)
}
