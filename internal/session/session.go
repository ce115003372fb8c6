// Package session owns the client's authentication state.
//
// A Manager starts Initializing, resolves to Authenticated or Anonymous from
// the stored credential record, and afterwards changes only through Login,
// Register, Logout, UpdateUser and HandleUnauthorized. Logout always ends
// Anonymous with the credential record cleared, whatever the backend says.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/libra/internal/logging"
	"github.com/me/libra/internal/store"
	"github.com/me/libra/pkg/libraryapi"
	"github.com/me/libra/pkg/model"
)

// AuthAPI is the subset of the backend the manager talks to.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*model.AuthResponse, error)
	Register(ctx context.Context, reg model.Registration) (*model.AuthResponse, error)
	Logout(ctx context.Context) error
}

// Reader is the read-only view handed to consumers.
type Reader interface {
	Snapshot() model.Session
}

// Manager is the single source of truth for authentication state.
type Manager struct {
	api    AuthAPI
	creds  *store.Credentials
	logger *slog.Logger

	initOnce sync.Once

	mu        sync.Mutex
	current   model.Session
	listeners map[int]func(model.Session)
	nextID    int

	// notifyMu serializes transitions with their delivery so listeners see
	// them in order.
	notifyMu sync.Mutex
}

// New creates a Manager in the Initializing state.
func New(api AuthAPI, creds *store.Credentials, logger *slog.Logger) *Manager {
	logger = logging.Or(logger)
	return &Manager{
		api:       api,
		creds:     creds,
		logger:    logger.With("component", "session"),
		current:   model.Session{Status: model.SessionInitializing},
		listeners: make(map[int]func(model.Session)),
	}
}

// Initialize reads the stored credential record once. Later calls return
// the current snapshot without touching storage.
func (m *Manager) Initialize(ctx context.Context) model.Session {
	m.initOnce.Do(func() {
		rec, err := m.creds.Load(ctx)
		if err != nil {
			// An anonymous session never leaves a token behind.
			if errors.Is(err, store.ErrIncompleteRecord) {
				m.logger.Warn("discarding incomplete credential record")
			} else {
				m.logger.Error("read stored credentials", "error", err)
			}
			if err := m.creds.Clear(ctx); err != nil {
				m.logger.Error("clear unusable record", "error", err)
			}
			rec = nil
		}

		m.notifyMu.Lock()
		defer m.notifyMu.Unlock()
		if m.Status() != model.SessionInitializing {
			// A login finished first.
			return
		}
		if rec != nil {
			m.transitionLocked(model.Session{Status: model.SessionAuthenticated, Token: rec.AuthToken, User: rec.User})
		} else {
			m.transitionLocked(model.Session{Status: model.SessionAnonymous})
		}
	})
	return m.Snapshot()
}

// Login authenticates with the backend. On failure the session is unchanged
// and the backend's typed error is returned.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (model.Session, error) {
	resp, err := m.api.Login(ctx, identifier, secret)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.establish(ctx, resp)
}

// Register creates an account and signs it in. Password confirmation and
// required fields are checked before any request.
func (m *Manager) Register(ctx context.Context, reg model.Registration) (model.Session, error) {
	if err := reg.Validate(); err != nil {
		return m.Snapshot(), libraryapi.NewValidationError("register", err)
	}
	resp, err := m.api.Register(ctx, reg)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.establish(ctx, resp)
}

// establish persists the record and only then publishes Authenticated.
func (m *Manager) establish(ctx context.Context, resp *model.AuthResponse) (model.Session, error) {
	if err := resp.Validate(); err != nil {
		return m.Snapshot(), err
	}
	if err := m.creds.Save(ctx, store.Record{AuthToken: resp.Token, User: resp.User}); err != nil {
		if clearErr := m.creds.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			m.logger.Error("clear after failed save", "error", clearErr)
		}
		return m.Snapshot(), fmt.Errorf("saving credentials: %w", err)
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if err := m.transitionLocked(model.Session{Status: model.SessionAuthenticated, Token: resp.Token, User: resp.User}); err != nil {
		return m.Snapshot(), err
	}
	return m.Snapshot(), nil
}

// Logout invalidates the session remotely on a best-effort basis, then
// clears the credential record and resets to Anonymous. Remote failures are
// logged and never returned; a storage failure is returned after the
// session is already Anonymous.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Status() == model.SessionAuthenticated {
		if err := m.api.Logout(ctx); err != nil {
			m.logger.Warn("remote logout failed, clearing locally", "error", err)
		}
	}

	clearErr := m.creds.Clear(context.WithoutCancel(ctx))

	m.notifyMu.Lock()
	m.transitionLocked(model.Session{Status: model.SessionAnonymous})
	m.notifyMu.Unlock()

	if clearErr != nil {
		return fmt.Errorf("clearing credentials: %w", clearErr)
	}
	return nil
}

// HandleUnauthorized resets to Anonymous after the HTTP adapter has cleared
// the stored record in response to a 401.
func (m *Manager) HandleUnauthorized() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if m.Status() == model.SessionAuthenticated {
		m.logger.Warn("session rejected by server")
	}
	m.transitionLocked(model.Session{Status: model.SessionAnonymous})
}

// UpdateUser replaces the profile of the authenticated session, rewriting
// the stored record as a pair.
func (m *Manager) UpdateUser(ctx context.Context, user *model.UserProfile) error {
	if user == nil {
		return errors.New("update user: nil profile")
	}
	snap := m.Snapshot()
	if snap.Status != model.SessionAuthenticated {
		return libraryapi.ErrNotAuthenticated
	}
	if err := m.creds.Save(ctx, store.Record{AuthToken: snap.Token, User: user}); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if cur := m.Snapshot(); cur.Token != snap.Token || cur.Status != model.SessionAuthenticated {
		// Logged out meanwhile; don't resurrect the record.
		if err := m.creds.Clear(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error("clear record after logout race", "error", err)
		}
		return libraryapi.ErrNotAuthenticated
	}
	return m.transitionLocked(model.Session{Status: model.SessionAuthenticated, Token: snap.Token, User: user})
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Status returns the current status.
func (m *Manager) Status() model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Status
}

// Token returns the current token, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Token
}

// Subscribe registers fn to receive every session change in order. fn must
// not call Login, Register, Logout, UpdateUser or HandleUnauthorized.
func (m *Manager) Subscribe(fn func(model.Session)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// transitionLocked installs next and notifies listeners. The caller holds
// notifyMu.
func (m *Manager) transitionLocked(next model.Session) error {
	m.mu.Lock()
	prev := m.current
	if !prev.Status.CanTransitionTo(next.Status) {
		m.mu.Unlock()
		return &model.InvalidTransitionError{Entity: "session", From: prev.Status.String(), To: next.Status.String()}
	}
	m.current = next
	fns := make([]func(model.Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if prev.Status == model.SessionAnonymous && next.Status == model.SessionAnonymous {
		return nil
	}
	m.logger.Info("session changed", "from", prev.Status, "to", next.Status, "user", next.Username())

	snap := m.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
	return nil
}
