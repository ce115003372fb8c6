// Package push registers the device's push token with the backend once per
// authenticated session.
//
// The token is acquired once, independently of authentication. Each session
// change is then evaluated: when a token is present and the session is
// Authenticated, and the stored marker does not name the same
// (auth token, push token) pair, the token is submitted and the marker
// written. Becoming Anonymous removes the marker so the next login submits
// again.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/libra/internal/logging"
	"github.com/me/libra/internal/store"
	"github.com/me/libra/pkg/model"
)

// MarkerKey is where the last submitted pairing is stored.
const MarkerKey = "@push_token_sent_for_session"

// Marker records which pairing has been submitted.
type Marker struct {
	AuthToken string `json:"auth_token"`
	PushToken string `json:"push_token"`
}

// DeviceAPI submits push tokens.
type DeviceAPI interface {
	RegisterDevice(ctx context.Context, pushToken string) error
}

// Sessions is the part of the session manager the registrar watches.
type Sessions interface {
	Snapshot() model.Session
	Subscribe(fn func(model.Session)) (cancel func())
}

// Registrar runs the registration flow.
type Registrar struct {
	provider TokenProvider
	api      DeviceAPI
	kv       store.Store
	sessions Sessions
	notify   func(error)
	logger   *slog.Logger

	// submitMu serializes Sync.
	submitMu sync.Mutex

	mu        sync.Mutex
	pushToken string
	// epoch advances whenever the marker is removed, so a submission that
	// raced a logout does not write a stale marker.
	epoch uint64

	kick chan struct{}
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithNotifier sets the function that receives non-blocking failure notices.
func WithNotifier(fn func(error)) Option {
	return func(r *Registrar) {
		r.notify = fn
	}
}

// NewRegistrar creates a Registrar.
func NewRegistrar(provider TokenProvider, api DeviceAPI, kv store.Store, sessions Sessions, logger *slog.Logger, opts ...Option) *Registrar {
	logger = logging.Or(logger)
	r := &Registrar{
		provider: provider,
		api:      api,
		kv:       kv,
		sessions: sessions,
		notify:   func(error) {},
		logger:   logger.With("component", "push"),
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire obtains the push token. It does not depend on the session.
func (r *Registrar) Acquire(ctx context.Context) (string, error) {
	tok, err := r.provider.PushToken(ctx)
	if err != nil {
		r.logger.Warn("push token unavailable", "error", err)
		r.notify(fmt.Errorf("push notifications unavailable: %w", err))
		return "", err
	}
	r.mu.Lock()
	r.pushToken = tok
	r.mu.Unlock()
	r.logger.Debug("push token acquired")
	r.wake()
	return tok, nil
}

// PushToken returns the acquired token, or "".
func (r *Registrar) PushToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushToken
}

// Start watches the session until ctx is done or stop is called.
func (r *Registrar) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	unsubscribe := r.sessions.Subscribe(r.observe)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.kick:
				r.Sync(ctx)
			}
		}
	}()
	r.wake()

	return func() {
		unsubscribe()
		cancel()
		<-done
	}
}

// observe runs on the session manager's delivery path, so it never calls
// the backend itself.
func (r *Registrar) observe(s model.Session) {
	if s.Status == model.SessionAnonymous {
		r.clearMarker(context.Background())
		return
	}
	r.wake()
}

func (r *Registrar) wake() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Sync evaluates the current session once and submits the token if needed.
// It returns the submission error, if any; nil means nothing was needed or
// the submission succeeded.
func (r *Registrar) Sync(ctx context.Context) error {
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	snap := r.sessions.Snapshot()
	if snap.Status == model.SessionAnonymous {
		r.clearMarker(ctx)
		return nil
	}

	r.mu.Lock()
	pushToken := r.pushToken
	epoch := r.epoch
	r.mu.Unlock()

	if pushToken == "" || snap.Status != model.SessionAuthenticated {
		return nil
	}
	want := Marker{AuthToken: snap.Token, PushToken: pushToken}
	if m, err := r.loadMarker(ctx); err != nil {
		r.logger.Warn("read push marker", "error", err)
	} else if m != nil && *m == want {
		return nil
	}

	r.logger.Info("registering push token", "user", snap.Username())
	if err := r.api.RegisterDevice(ctx, pushToken); err != nil {
		r.logger.Warn("push token registration failed", "error", err)
		r.notify(fmt.Errorf("could not enable notifications: %w", err))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != epoch {
		return nil
	}
	data, err := json.Marshal(want)
	if err != nil {
		return fmt.Errorf("encode push marker: %w", err)
	}
	if err := r.kv.Set(ctx, MarkerKey, string(data)); err != nil {
		r.logger.Warn("write push marker", "error", err)
	}
	return nil
}

func (r *Registrar) loadMarker(ctx context.Context) (*Marker, error) {
	raw, ok, err := r.kv.Get(ctx, MarkerKey)
	if err != nil || !ok {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		// Older clients stored just the auth token.
		return &Marker{AuthToken: raw}, nil
	}
	return &m, nil
}

func (r *Registrar) clearMarker(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	if err := r.kv.Remove(ctx, MarkerKey); err != nil {
		r.logger.Warn("remove push marker", "error", err)
	}
}
