package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/me/libra/internal/store"
)

// TokenProvider supplies this device's push token.
type TokenProvider interface {
	PushToken(ctx context.Context) (string, error)
}

// ErrNoToken is returned by providers that have no token to give.
var ErrNoToken = errors.New("no push token available")

// StaticProvider returns a fixed, configured token.
type StaticProvider string

// PushToken implements TokenProvider.
func (p StaticProvider) PushToken(context.Context) (string, error) {
	if p == "" {
		return "", ErrNoToken
	}
	return string(p), nil
}

// installationKey holds the generated installation token.
const installationKey = "@installation_push_token"

// InstallationProvider generates a token once per installation and keeps it
// in the key-value store.
type InstallationProvider struct {
	kv store.Store
}

// NewInstallationProvider creates an InstallationProvider backed by kv.
func NewInstallationProvider(kv store.Store) *InstallationProvider {
	return &InstallationProvider{kv: kv}
}

// PushToken implements TokenProvider.
func (p *InstallationProvider) PushToken(ctx context.Context) (string, error) {
	tok, ok, err := p.kv.Get(ctx, installationKey)
	if err != nil {
		return "", fmt.Errorf("read installation token: %w", err)
	}
	if ok && tok != "" {
		return tok, nil
	}
	tok = "libra-" + uuid.NewString()
	if err := p.kv.Set(ctx, installationKey, tok); err != nil {
		return "", fmt.Errorf("save installation token: %w", err)
	}
	return tok, nil
}
