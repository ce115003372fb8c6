// Package bookview keeps a book's favorite and borrowing state consistent
// with the backend.
//
// A View is activated (fetched) whenever the book is shown. Its action
// affordance is derived purely from the book's availability and the
// member's borrowing status. Favorite toggles and request cancellations are
// applied optimistically and rolled back if the backend rejects them.
package bookview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/libra/internal/logging"
	"github.com/me/libra/internal/session"
	"github.com/me/libra/internal/tentative"
	"github.com/me/libra/pkg/libraryapi"
	"github.com/me/libra/pkg/model"
)

// API is the part of the backend a View uses.
type API interface {
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	ListBorrowings(ctx context.Context, q model.BorrowingQuery) ([]model.Borrowing, error)
	AddFavorite(ctx context.Context, id int64) (*model.Book, error)
	RemoveFavorite(ctx context.Context, id int64) error
	RequestBorrow(ctx context.Context, bookID int64, due model.Date) (*model.Borrowing, error)
	CancelBorrowRequest(ctx context.Context, borrowingID int64) error
}

// Control keys for single-flight.
const (
	KeyFavorite = "favorite"
	KeyBorrow   = "borrow"
)

var (
	// ErrNotLoaded is returned by actions before the first Activate.
	ErrNotLoaded = errors.New("book details not loaded yet")

	// ErrNothingToCancel is returned when there is no pending request.
	ErrNothingToCancel = errors.New("no pending borrow request for this book")

	// ErrDueDateInPast is returned for a due date before today.
	ErrDueDateInPast = errors.New("cannot select a past date")
)

// Borrow is the member's derived relationship with the book.
type Borrow struct {
	Status model.BorrowingStatus
	Record *model.Borrowing
	Err    error
}

// View is the reconciled state of one book.
type View struct {
	api      API
	sessions session.Reader
	bookID   int64
	logger   *slog.Logger
	now      func() time.Time

	activation atomic.Uint64

	mu   sync.Mutex
	book *model.Book

	favorite *tentative.State[bool]
	borrow   *tentative.State[Borrow]
}

// Option configures a View.
type Option func(*View)

// WithClock overrides the clock used to validate due dates.
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		v.now = now
	}
}

// New creates an unloaded View for bookID.
func New(api API, sessions session.Reader, bookID int64, logger *slog.Logger, opts ...Option) *View {
	logger = logging.Or(logger)
	v := &View{
		api:      api,
		sessions: sessions,
		bookID:   bookID,
		logger:   logger.With("component", "bookview", "book_id", bookID),
		now:      time.Now,
		favorite: tentative.NewState(false),
		borrow:   tentative.NewState(Borrow{Status: model.StatusNone}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Activate fetches the book and, with a session, the member's borrowings
// for it. A borrowing fetch failure yields StatusError rather than an error.
// Results of an activation overtaken by a newer one are discarded.
func (v *View) Activate(ctx context.Context) error {
	gen := v.activation.Add(1)

	book, err := v.api.GetBook(ctx, v.bookID)
	if err != nil {
		return err
	}

	borrow := Borrow{Status: model.StatusNone}
	if v.sessions.Snapshot().IsAuthenticated() {
		records, err := v.api.ListBorrowings(ctx, model.BorrowingQuery{BookID: v.bookID})
		if err != nil {
			v.logger.Warn("borrowing status unavailable", "error", err)
			borrow = Borrow{Status: model.StatusError, Err: err}
		} else {
			borrow.Status, borrow.Record = model.DeriveBorrowingStatus(records, v.bookID)
		}
	}

	if v.favorite.Detached() {
		return tentative.ErrDetached
	}
	if v.activation.Load() != gen {
		v.logger.Debug("discarding superseded activation")
		return nil
	}

	v.mu.Lock()
	v.book = book
	v.mu.Unlock()
	v.favorite.Set(book.IsFavorite)
	v.borrow.Set(borrow)
	return nil
}

// Book returns a copy of the loaded book with the current favorite flag,
// or nil before the first Activate.
func (v *View) Book() *model.Book {
	v.mu.Lock()
	if v.book == nil {
		v.mu.Unlock()
		return nil
	}
	b := *v.book
	v.mu.Unlock()
	b.IsFavorite = v.favorite.Get()
	return &b
}

// IsFavorite returns the displayed favorite flag.
func (v *View) IsFavorite() bool {
	return v.favorite.Get()
}

// Borrowing returns the derived borrowing status.
func (v *View) Borrowing() Borrow {
	return v.borrow.Get()
}

// Affordance returns the action to offer for the book.
func (v *View) Affordance() model.Affordance {
	v.mu.Lock()
	book := v.book
	v.mu.Unlock()
	if book == nil {
		return model.AffordanceStatusUnknown
	}
	return model.AffordanceFor(book.AvailableCopies(), v.borrow.Get().Status)
}

// Busy reports whether the control identified by key has a change in flight.
func (v *View) Busy(key string) bool {
	if key == KeyFavorite {
		return v.favorite.InFlight(key)
	}
	return v.borrow.InFlight(key)
}

// ToggleFavorite flips the favorite flag immediately and asks the backend to
// match. On failure the flag is restored and the error returned.
func (v *View) ToggleFavorite(ctx context.Context) (bool, error) {
	if !v.sessions.Snapshot().IsAuthenticated() {
		return v.favorite.Get(), libraryapi.ErrNotAuthenticated
	}
	if v.Book() == nil {
		return false, ErrNotLoaded
	}

	var target bool
	updated, outcome, err := tentative.Do(ctx, v.favorite, tentative.Mutation[bool, *model.Book]{
		Key: KeyFavorite,
		Apply: func(cur bool) bool {
			target = !cur
			return target
		},
		Call: func(ctx context.Context) (*model.Book, error) {
			if target {
				return v.api.AddFavorite(ctx, v.bookID)
			}
			return nil, v.api.RemoveFavorite(ctx, v.bookID)
		},
		Commit: func(cur bool, b *model.Book) bool {
			if b != nil {
				return b.IsFavorite
			}
			return cur
		},
	})
	if outcome == tentative.RolledBack {
		v.logger.Info("favorite change rejected, reverted", "error", err)
	}
	if err != nil {
		return v.favorite.Get(), err
	}
	if updated != nil && outcome == tentative.Committed {
		v.mu.Lock()
		v.book = updated
		v.mu.Unlock()
	}
	return v.favorite.Get(), nil
}

// CancelRequest withdraws the pending borrow request. The status shows None
// immediately and is restored if the backend refuses.
func (v *View) CancelRequest(ctx context.Context) error {
	if !v.sessions.Snapshot().IsAuthenticated() {
		return libraryapi.ErrNotAuthenticated
	}
	cur := v.borrow.Get()
	if cur.Status != model.StatusRequested || cur.Record == nil {
		return ErrNothingToCancel
	}

	var rec *model.Borrowing
	_, outcome, err := tentative.Do(ctx, v.borrow, tentative.Mutation[Borrow, struct{}]{
		Key: KeyBorrow,
		Apply: func(prior Borrow) Borrow {
			if prior.Status == model.StatusRequested {
				rec = prior.Record
			}
			return Borrow{Status: model.StatusNone}
		},
		Call: func(ctx context.Context) (struct{}, error) {
			if rec == nil {
				return struct{}{}, ErrNothingToCancel
			}
			return struct{}{}, v.api.CancelBorrowRequest(ctx, rec.ID)
		},
	})
	if outcome == tentative.RolledBack {
		v.logger.Info("cancel rejected, reverted", "error", err)
	}
	return err
}

// RequestBorrow asks to borrow the book until due. It is only allowed when
// the affordance is Borrow. The status becomes Requested once the backend
// accepts.
func (v *View) RequestBorrow(ctx context.Context, due model.Date) (*model.Borrowing, error) {
	if !v.sessions.Snapshot().IsAuthenticated() {
		return nil, libraryapi.ErrNotAuthenticated
	}
	if v.Book() == nil {
		return nil, ErrNotLoaded
	}
	if a := v.Affordance(); a != model.AffordanceBorrow {
		return nil, fmt.Errorf("cannot borrow: %s", a.Label())
	}
	if due.IsZero() {
		return nil, libraryapi.NewValidationError("request borrow", errors.New("please select a due date"))
	}
	if due.Before(model.DateOf(v.now())) {
		return nil, libraryapi.NewValidationError("request borrow", ErrDueDateInPast)
	}

	rec, _, err := tentative.Do(ctx, v.borrow, tentative.Mutation[Borrow, *model.Borrowing]{
		Key: KeyBorrow,
		Call: func(ctx context.Context) (*model.Borrowing, error) {
			return v.api.RequestBorrow(ctx, v.bookID, due)
		},
		Commit: func(_ Borrow, rec *model.Borrowing) Borrow {
			return Borrow{Status: model.StatusRequested, Record: rec}
		},
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Detach marks the view as gone. In-flight calls complete but change
// nothing, and later actions return tentative.ErrDetached.
func (v *View) Detach() {
	v.favorite.Detach()
	v.borrow.Detach()
}
