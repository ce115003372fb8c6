// Package inbox holds the member's notifications.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/libra/internal/logging"
	"github.com/me/libra/internal/tentative"
	"github.com/me/libra/pkg/libraryapi"
	"github.com/me/libra/pkg/model"
)

// API is the notification part of the backend.
type API interface {
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	ClearNotifications(ctx context.Context) error
}

// ErrNotFound is returned for an id that is not in the loaded list.
var ErrNotFound = errors.New("notification not found")

// Inbox is the loaded notification list with optimistic updates.
type Inbox struct {
	api    API
	logger *slog.Logger
	items  *tentative.State[[]model.Notification]
}

// New creates an empty Inbox.
func New(api API, logger *slog.Logger) *Inbox {
	logger = logging.Or(logger)
	return &Inbox{
		api:    api,
		logger: logger.With("component", "inbox"),
		items:  tentative.NewState[[]model.Notification](nil),
	}
}

// Load fetches the notification list.
func (in *Inbox) Load(ctx context.Context) error {
	items, err := in.api.ListNotifications(ctx)
	if err != nil {
		return err
	}
	in.items.Set(items)
	return nil
}

// Items returns the loaded notifications in backend order.
func (in *Inbox) Items() []model.Notification {
	return append([]model.Notification(nil), in.items.Get()...)
}

// Unread returns the number of unread notifications.
func (in *Inbox) Unread() int {
	return model.CountUnread(in.items.Get())
}

// MarkRead marks id as read immediately and reverts if the backend refuses.
// Marking an already-read notification does nothing.
func (in *Inbox) MarkRead(ctx context.Context, id int64) error {
	var found, alreadyRead bool
	for _, n := range in.items.Get() {
		if n.ID == id {
			found, alreadyRead = true, n.Read
		}
	}
	if !found {
		return ErrNotFound
	}
	if alreadyRead {
		return nil
	}

	_, outcome, err := tentative.Do(ctx, in.items, tentative.Mutation[[]model.Notification, struct{}]{
		Key: fmt.Sprintf("read-%d", id),
		Apply: func(cur []model.Notification) []model.Notification {
			return setRead(cur, id, true)
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, in.api.MarkNotificationRead(ctx, id)
		},
		Revert: func(cur, _ []model.Notification) []model.Notification {
			return setRead(cur, id, false)
		},
	})
	if outcome == tentative.RolledBack {
		in.logger.Info("mark read rejected, reverted", "id", id, "error", err)
	}
	return err
}

func setRead(items []model.Notification, id int64, read bool) []model.Notification {
	next := append([]model.Notification(nil), items...)
	for i := range next {
		if next[i].ID == id {
			next[i].Read = read
		}
	}
	return next
}

// ClearAll empties the list immediately and restores it if the backend
// refuses. While a mark-read is saving it returns
// tentative.ErrInFlight.
func (in *Inbox) ClearAll(ctx context.Context) error {
	_, outcome, err := tentative.Do(ctx, in.items, tentative.Mutation[[]model.Notification, struct{}]{
		Key:       "clear",
		Exclusive: true,
		Apply:     func([]model.Notification) []model.Notification { return nil },
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, in.api.ClearNotifications(ctx)
		},
	})
	if outcome == tentative.RolledBack {
		in.logger.Info("clear all rejected, reverted", "error", err)
	}
	return err
}

// Watch polls the backend every interval and calls fn with notifications
// that were not present in any earlier poll. The first poll only records
// what already exists. Watch returns nil when ctx is done and the error
// when the session is rejected; other poll failures are logged and retried
// on the next tick.
func (in *Inbox) Watch(ctx context.Context, interval time.Duration, fn func([]model.Notification)) error {
	seen := make(map[int64]struct{})
	first := true

	poll := func() error {
		if err := in.Load(ctx); err != nil {
			return err
		}
		var fresh []model.Notification
		for _, n := range in.items.Get() {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			if !first {
				fresh = append(fresh, n)
			}
		}
		first = false
		if len(fresh) > 0 {
			fn(fresh)
		}
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := poll(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if libraryapi.IsUnauthorized(err) {
				return err
			}
			in.logger.Warn("poll notifications", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
