package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/me/libra/internal/store"
	"github.com/me/libra/pkg/libraryapi"
	"github.com/me/libra/pkg/model"
)

type fakeAPI struct {
	mu          sync.Mutex
	loginResp   *model.AuthResponse
	loginErr    error
	logoutErr   error
	loginCalls  int
	logoutCalls int
	regCalls    int
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (*model.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Register(_ context.Context, _ model.Registration) (*model.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regCalls++
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func okResponse() *model.AuthResponse {
	return &model.AuthResponse{Token: "tok-1", User: &model.UserProfile{ID: 1, Username: "ana"}}
}

// newManager returns an initialized Anonymous manager and its credential store.
func newManager(t *testing.T, api AuthAPI) (*Manager, *store.Credentials) {
	t.Helper()
	creds := store.NewCredentials(store.NewMemoryStore(), testLogger())
	m := New(api, creds, testLogger())
	if s := m.Initialize(context.Background()); s.Status != model.SessionAnonymous {
		t.Fatalf("initial status = %s", s.Status)
	}
	return m, creds
}

// recordSnapshots fails the test if any delivered snapshot breaks the
// token/user invariant.
func recordSnapshots(t *testing.T, m *Manager) *[]model.Session {
	t.Helper()
	var mu sync.Mutex
	seen := &[]model.Session{}
	m.Subscribe(func(s model.Session) {
		if !s.Consistent() {
			t.Errorf("inconsistent snapshot delivered: %+v", s)
		}
		mu.Lock()
		*seen = append(*seen, s)
		mu.Unlock()
	})
	return seen
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("stored record", func(t *testing.T) {
		kv := store.NewMemoryStore()
		creds := store.NewCredentials(kv, nil)
		creds.Save(ctx, store.Record{AuthToken: "tok", User: &model.UserProfile{Username: "ana"}})

		m := New(&fakeAPI{}, creds, nil)
		if st := m.Status(); st != model.SessionInitializing {
			t.Fatalf("status before Initialize = %s", st)
		}
		s := m.Initialize(ctx)
		if s.Status != model.SessionAuthenticated || s.Token != "tok" || s.Username() != "ana" {
			t.Errorf("Initialize = %+v", s)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		m := New(&fakeAPI{}, store.NewCredentials(store.NewMemoryStore(), nil), nil)
		if s := m.Initialize(ctx); s.Status != model.SessionAnonymous {
			t.Errorf("status = %s", s.Status)
		}
	})

	t.Run("half record is discarded", func(t *testing.T) {
		kv := store.NewMemoryStore()
		kv.Set(ctx, store.KeyAuthToken, "tok")
		m := New(&fakeAPI{}, store.NewCredentials(kv, nil), nil)
		if s := m.Initialize(ctx); s.Status != model.SessionAnonymous {
			t.Errorf("status = %s", s.Status)
		}
		if kv.Len() != 0 {
			t.Errorf("half record left in store")
		}
	})

	t.Run("undecodable user data is discarded", func(t *testing.T) {
		var authHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		kv := store.NewMemoryStore()
		kv.Set(ctx, store.KeyAuthToken, "stale-tok")
		kv.Set(ctx, store.KeyUserData, "{not json")
		creds := store.NewCredentials(kv, nil)
		client := libraryapi.NewClient(libraryapi.DefaultConfig().WithBaseURL(srv.URL+"/api/"), creds, testLogger())
		m := New(client, creds, nil)

		if s := m.Initialize(ctx); s.Status != model.SessionAnonymous {
			t.Errorf("status = %s", s.Status)
		}
		if kv.Len() != 0 {
			t.Error("unusable record left in store")
		}
		if _, err := client.ListBooks(ctx, model.BookQuery{}); err != nil {
			t.Fatal(err)
		}
		if authHeader != "" {
			t.Errorf("Authorization = %q, want none for an anonymous session", authHeader)
		}
	})

	t.Run("runs once", func(t *testing.T) {
		kv := store.NewMemoryStore()
		creds := store.NewCredentials(kv, nil)
		m := New(&fakeAPI{}, creds, nil)
		m.Initialize(ctx)
		creds.Save(ctx, store.Record{AuthToken: "tok", User: &model.UserProfile{Username: "ana"}})
		if s := m.Initialize(ctx); s.Status != model.SessionAnonymous {
			t.Errorf("second Initialize re-read storage: %s", s.Status)
		}
	})
}

func TestLogin_Success(t *testing.T) {
	api := &fakeAPI{loginResp: okResponse()}
	m, creds := newManager(t, api)
	seen := recordSnapshots(t, m)

	s, err := m.Login(context.Background(), "ana", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != model.SessionAuthenticated || s.Token != "tok-1" {
		t.Errorf("session = %+v", s)
	}
	rec, err := creds.Load(context.Background())
	if err != nil || rec == nil || rec.AuthToken != "tok-1" || rec.User.Username != "ana" {
		t.Errorf("stored record = %+v, %v", rec, err)
	}
	if len(*seen) != 1 || (*seen)[0].Status != model.SessionAuthenticated {
		t.Errorf("listener saw %+v", *seen)
	}
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	api := &fakeAPI{loginErr: &libraryapi.Error{Op: "login", Kind: libraryapi.KindAuth, StatusCode: 400, Err: libraryapi.ErrInvalidCredentials}}
	m, creds := newManager(t, api)
	seen := recordSnapshots(t, m)

	_, err := m.Login(context.Background(), "ana", "wrong")
	if !errors.Is(err, libraryapi.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if m.Status() != model.SessionAnonymous {
		t.Errorf("status = %s", m.Status())
	}
	if tok, _ := creds.Token(context.Background()); tok != "" {
		t.Errorf("token stored after failed login: %q", tok)
	}
	if len(*seen) != 0 {
		t.Errorf("listener notified on failed login: %+v", *seen)
	}
}

func TestLogin_IncompleteResponseIsRejected(t *testing.T) {
	api := &fakeAPI{loginResp: &model.AuthResponse{Token: "tok"}}
	m, creds := newManager(t, api)

	if _, err := m.Login(context.Background(), "ana", "pw"); err == nil {
		t.Fatal("expected error for response without user")
	}
	if m.Status() != model.SessionAnonymous {
		t.Errorf("status = %s", m.Status())
	}
	if tok, _ := creds.Token(context.Background()); tok != "" {
		t.Errorf("token stored: %q", tok)
	}
}

type failingStore struct{ *store.MemoryStore }

func (failingStore) SetMany(context.Context, map[string]string) error {
	return errors.New("disk full")
}

func TestLogin_PersistFailureDoesNotAuthenticate(t *testing.T) {
	creds := store.NewCredentials(failingStore{store.NewMemoryStore()}, nil)
	m := New(&fakeAPI{loginResp: okResponse()}, creds, nil)
	m.Initialize(context.Background())

	if _, err := m.Login(context.Background(), "ana", "pw"); err == nil {
		t.Fatal("expected persist error")
	}
	if m.Status() != model.SessionAnonymous || m.Token() != "" {
		t.Errorf("session after failed persist = %+v", m.Snapshot())
	}
}

func TestRegister_PasswordMismatchNeverHitsNetwork(t *testing.T) {
	api := &fakeAPI{loginResp: okResponse()}
	m, _ := newManager(t, api)

	_, err := m.Register(context.Background(), model.Registration{
		Username:        "ana",
		Email:           "ana@example.org",
		FullName:        "Ana",
		Password:        "abc123",
		ConfirmPassword: "abc124",
	})
	if !errors.Is(err, model.ErrPasswordMismatch) {
		t.Fatalf("err = %v, want ErrPasswordMismatch", err)
	}
	if libraryapi.KindOf(err) != libraryapi.KindValidation {
		t.Errorf("kind = %s", libraryapi.KindOf(err))
	}
	if api.regCalls != 0 {
		t.Errorf("register endpoint called %d times", api.regCalls)
	}
	if m.Status() != model.SessionAnonymous {
		t.Errorf("status = %s", m.Status())
	}
}

func TestRegister_SuccessAuthenticates(t *testing.T) {
	api := &fakeAPI{loginResp: okResponse()}
	m, _ := newManager(t, api)

	s, err := m.Register(context.Background(), model.Registration{
		Username: "ana", Email: "ana@example.org", Password: "pw", ConfirmPassword: "pw",
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != model.SessionAuthenticated {
		t.Errorf("status = %s", s.Status)
	}
}

func TestLogout_Unconditional(t *testing.T) {
	remote := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"4xx", &libraryapi.Error{Op: "logout", Kind: libraryapi.KindBackendValidation, StatusCode: 400}},
		{"5xx", &libraryapi.Error{Op: "logout", Kind: libraryapi.KindServer, StatusCode: 500}},
		{"network", &libraryapi.Error{Op: "logout", Kind: libraryapi.KindNetwork, Err: errors.New("connection refused")}},
		{"timeout", &libraryapi.Error{Op: "logout", Kind: libraryapi.KindNetwork, Err: libraryapi.ErrTimeout}},
	}
	for _, tt := range remote {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{loginResp: okResponse(), logoutErr: tt.err}
			m, creds := newManager(t, api)
			ctx := context.Background()
			if _, err := m.Login(ctx, "ana", "pw"); err != nil {
				t.Fatal(err)
			}
			seen := recordSnapshots(t, m)

			if err := m.Logout(ctx); err != nil {
				t.Errorf("Logout returned %v", err)
			}
			if api.logoutCalls != 1 {
				t.Errorf("remote logout calls = %d", api.logoutCalls)
			}
			if m.Status() != model.SessionAnonymous || m.Token() != "" {
				t.Errorf("session = %+v", m.Snapshot())
			}
			if tok, _ := creds.Token(ctx); tok != "" {
				t.Errorf("token left in store: %q", tok)
			}
			if rec, _ := creds.Load(ctx); rec != nil {
				t.Errorf("record left in store: %+v", rec)
			}
			if len(*seen) != 1 || (*seen)[0].Status != model.SessionAnonymous {
				t.Errorf("listener saw %+v", *seen)
			}
		})
	}
}

func TestLogout_CancelledContextStillClears(t *testing.T) {
	api := &fakeAPI{loginResp: okResponse(), logoutErr: context.Canceled}
	m, creds := newManager(t, api)
	m.Login(context.Background(), "ana", "pw")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Logout(ctx)

	if tok, _ := creds.Token(context.Background()); tok != "" {
		t.Errorf("token left in store: %q", tok)
	}
	if m.Status() != model.SessionAnonymous {
		t.Errorf("status = %s", m.Status())
	}
}

// Drives the manager through the real HTTP adapter so 401 handling and
// remote logout failures are exercised end to end.
func TestManager_WithHTTPAdapter(t *testing.T) {
	var mu sync.Mutex
	logoutStatus := http.StatusInternalServerError
	expireToken := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login/":
			w.Write([]byte(`{"token":"abc","user":{"id":1,"username":"ana"}}`))
		case "/api/auth/logout/":
			w.WriteHeader(logoutStatus)
		case "/api/books/":
			if expireToken {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Invalid token."}`))
				return
			}
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	creds := store.NewCredentials(store.NewMemoryStore(), nil)
	client := libraryapi.NewClient(libraryapi.DefaultConfig().WithBaseURL(srv.URL+"/api/"), creds, testLogger())
	m := New(client, creds, testLogger())
	client.OnUnauthorized(m.HandleUnauthorized)
	m.Initialize(ctx)

	t.Run("server error on logout", func(t *testing.T) {
		if _, err := m.Login(ctx, "ana", "pw"); err != nil {
			t.Fatal(err)
		}
		if err := m.Logout(ctx); err != nil {
			t.Fatal(err)
		}
		if m.Status() != model.SessionAnonymous {
			t.Errorf("status = %s", m.Status())
		}
	})

	t.Run("401 from any endpoint resets session", func(t *testing.T) {
		if _, err := m.Login(ctx, "ana", "pw"); err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		expireToken = true
		mu.Unlock()

		_, err := client.ListBooks(ctx, model.BookQuery{})
		if !libraryapi.IsUnauthorized(err) {
			t.Fatalf("err = %v, want 401", err)
		}
		if tok, _ := creds.Token(ctx); tok != "" {
			t.Errorf("token left in store: %q", tok)
		}
		if m.Status() != model.SessionAnonymous {
			t.Errorf("status = %s", m.Status())
		}
	})

	t.Run("unreachable server on logout", func(t *testing.T) {
		mu.Lock()
		expireToken = false
		mu.Unlock()
		if _, err := m.Login(ctx, "ana", "pw"); err != nil {
			t.Fatal(err)
		}
		srv.Close()
		if err := m.Logout(ctx); err != nil {
			t.Fatal(err)
		}
		if tok, _ := creds.Token(ctx); tok != "" || m.Status() != model.SessionAnonymous {
			t.Errorf("after logout token=%q status=%s", tok, m.Status())
		}
	})
}

func TestHandleUnauthorized(t *testing.T) {
	m, _ := newManager(t, &fakeAPI{loginResp: okResponse()})
	m.Login(context.Background(), "ana", "pw")
	seen := recordSnapshots(t, m)

	m.HandleUnauthorized()
	m.HandleUnauthorized()

	if m.Status() != model.SessionAnonymous {
		t.Errorf("status = %s", m.Status())
	}
	if len(*seen) != 1 {
		t.Errorf("listener saw %d changes, want 1", len(*seen))
	}
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	m, creds := newManager(t, &fakeAPI{loginResp: okResponse()})

	if err := m.UpdateUser(ctx, &model.UserProfile{Username: "x"}); !errors.Is(err, libraryapi.ErrNotAuthenticated) {
		t.Errorf("UpdateUser while anonymous = %v", err)
	}

	m.Login(ctx, "ana", "pw")
	if err := m.UpdateUser(ctx, &model.UserProfile{ID: 1, Username: "ana", FullName: "Ana Lima"}); err != nil {
		t.Fatal(err)
	}
	if got := m.Snapshot().User.FullName; got != "Ana Lima" {
		t.Errorf("session user full name = %q", got)
	}
	rec, _ := creds.Load(ctx)
	if rec == nil || rec.AuthToken != "tok-1" || rec.User.FullName != "Ana Lima" {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m, _ := newManager(t, &fakeAPI{loginResp: okResponse()})
	m.Login(context.Background(), "ana", "pw")

	s := m.Snapshot()
	s.User.Username = "mallory"
	if m.Snapshot().Username() != "ana" {
		t.Error("mutating a snapshot changed the manager's state")
	}
}

func TestSessionAtomicityUnderConcurrency(t *testing.T) {
	m, _ := newManager(t, &fakeAPI{loginResp: okResponse()})
	recordSnapshots(t, m)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if s := m.Snapshot(); !s.Consistent() {
				t.Errorf("inconsistent snapshot: %+v", s)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); m.Login(ctx, "ana", "pw") }()
		go func() { defer wg.Done(); m.Logout(ctx) }()
		go func() { defer wg.Done(); m.HandleUnauthorized() }()
	}
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
}
