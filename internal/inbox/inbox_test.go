package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/me/libra/internal/tentative"
	"github.com/me/libra/pkg/libraryapi"
	"github.com/me/libra/pkg/model"
)

type fakeAPI struct {
	mu       sync.Mutex
	items    []model.Notification
	listErr  error
	readErr  error
	clearErr error
	reads    int
	lists    int
	onRead   func(id int64) error
}

func (f *fakeAPI) ListNotifications(context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Notification(nil), f.items...), nil
}

func (f *fakeAPI) MarkNotificationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	f.reads++
	err, hook := f.readErr, f.onRead
	f.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	return err
}

func (f *fakeAPI) ClearNotifications(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearErr
}

func (f *fakeAPI) add(n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]model.Notification{n}, f.items...)
}

func fixture() *fakeAPI {
	return &fakeAPI{items: []model.Notification{
		{ID: 1, Title: "Request received", Message: "Your request for Dune was received."},
		{ID: 2, Title: "Due soon", Message: "Solaris is due tomorrow.", Read: true},
	}}
}

func TestInbox_LoadAndUnread(t *testing.T) {
	in := New(fixture(), nil)
	if err := in.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(in.Items()) != 2 || in.Unread() != 1 {
		t.Errorf("items=%d unread=%d", len(in.Items()), in.Unread())
	}
}

func TestInbox_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := fixture()
		in := New(api, nil)
		in.Load(ctx)
		if err := in.MarkRead(ctx, 1); err != nil {
			t.Fatal(err)
		}
		if in.Unread() != 0 {
			t.Errorf("unread = %d", in.Unread())
		}
	})

	t.Run("rollback", func(t *testing.T) {
		api := fixture()
		api.readErr = errors.New("boom")
		in := New(api, nil)
		in.Load(ctx)
		if err := in.MarkRead(ctx, 1); err == nil {
			t.Fatal("expected error")
		}
		if in.Unread() != 1 {
			t.Errorf("unread after failure = %d, want 1", in.Unread())
		}
	})

	t.Run("already read", func(t *testing.T) {
		api := fixture()
		in := New(api, nil)
		in.Load(ctx)
		if err := in.MarkRead(ctx, 2); err != nil {
			t.Fatal(err)
		}
		if api.reads != 0 {
			t.Error("backend called for an already-read notification")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		in := New(fixture(), nil)
		in.Load(ctx)
		if err := in.MarkRead(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestInbox_OverlappingMarkReads(t *testing.T) {
	ctx := context.Background()
	api := fixture()
	api.add(model.Notification{ID: 3, Title: "Approved", Message: "Dune is ready for pickup."})

	release := make(chan struct{})
	started := make(chan struct{})
	api.onRead = func(id int64) error {
		if id != 1 {
			return nil
		}
		close(started)
		<-release
		return errors.New("rejected")
	}

	in := New(api, nil)
	if err := in.Load(ctx); err != nil {
		t.Fatal(err)
	}
	done := make(chan error)
	go func() { done <- in.MarkRead(ctx, 1) }()
	<-started

	if err := in.MarkRead(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if err := in.ClearAll(ctx); !errors.Is(err, tentative.ErrInFlight) {
		t.Errorf("ClearAll during a mark-read: err = %v, want ErrInFlight", err)
	}
	close(release)
	if err := <-done; err == nil {
		t.Fatal("expected the rejected mark-read to fail")
	}

	read := map[int64]bool{}
	for _, n := range in.Items() {
		read[n.ID] = n.Read
	}
	if read[1] {
		t.Error("notification 1 still shows read after the backend refused")
	}
	if !read[3] {
		t.Error("notification 3 lost its accepted read state")
	}
	if in.Unread() != 1 {
		t.Errorf("unread = %d, want 1", in.Unread())
	}
}

func TestInbox_ClearAll(t *testing.T) {
	ctx := context.Background()

	api := fixture()
	in := New(api, nil)
	in.Load(ctx)
	if err := in.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	if len(in.Items()) != 0 {
		t.Errorf("items after clear = %d", len(in.Items()))
	}

	api = fixture()
	api.clearErr = errors.New("boom")
	in = New(api, nil)
	in.Load(ctx)
	if err := in.ClearAll(ctx); err == nil {
		t.Fatal("expected error")
	}
	if len(in.Items()) != 2 {
		t.Errorf("items after failed clear = %d, want 2", len(in.Items()))
	}
}

func TestInbox_WatchReportsOnlyNew(t *testing.T) {
	api := fixture()
	in := New(api, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []model.Notification, 4)
	done := make(chan error)
	go func() {
		done <- in.Watch(ctx, 5*time.Millisecond, func(ns []model.Notification) { got <- ns })
	}()

	// Let the baseline poll happen before adding.
	for deadline := time.Now().Add(2 * time.Second); ; time.Sleep(time.Millisecond) {
		api.mu.Lock()
		n := api.lists
		api.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("baseline poll never happened")
		}
	}
	api.add(model.Notification{ID: 3, Title: "Approved"})

	select {
	case ns := <-got:
		if len(ns) != 1 || ns[0].ID != 3 {
			t.Errorf("reported %+v, want only #3", ns)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("new notification not reported")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v after cancel", err)
	}
}

func TestInbox_WatchStopsOnUnauthorized(t *testing.T) {
	api := fixture()
	api.listErr = &libraryapi.Error{Op: "list notifications", Kind: libraryapi.KindAuth, StatusCode: 401, Err: libraryapi.ErrUnauthorized}
	in := New(api, nil)

	err := in.Watch(context.Background(), time.Millisecond, func([]model.Notification) {})
	if !libraryapi.IsUnauthorized(err) {
		t.Errorf("err = %v", err)
	}
}
