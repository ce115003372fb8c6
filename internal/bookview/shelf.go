package bookview

import (
	"context"
	"log/slog"

	"github.com/me/libra/internal/logging"
	"github.com/me/libra/internal/tentative"
	"github.com/me/libra/pkg/model"
)

// ShelfAPI is the part of the backend a Shelf uses.
type ShelfAPI interface {
	ListBorrowings(ctx context.Context, q model.BorrowingQuery) ([]model.Borrowing, error)
	CancelBorrowRequest(ctx context.Context, borrowingID int64) error
}

// Shelf is the member's borrowings, split into current and history.
type Shelf struct {
	api     ShelfAPI
	logger  *slog.Logger
	records *tentative.State[[]model.Borrowing]
}

// NewShelf creates an empty Shelf.
func NewShelf(api ShelfAPI, logger *slog.Logger) *Shelf {
	logger = logging.Or(logger)
	return &Shelf{
		api:     api,
		logger:  logger.With("component", "shelf"),
		records: tentative.NewState[[]model.Borrowing](nil),
	}
}

// Load fetches all borrowings of the member.
func (s *Shelf) Load(ctx context.Context) error {
	records, err := s.api.ListBorrowings(ctx, model.BorrowingQuery{})
	if err != nil {
		return err
	}
	s.records.Set(records)
	return nil
}

// Current returns requested, active, overdue and pending-return records in
// backend order.
func (s *Shelf) Current() []model.Borrowing {
	return filter(s.records.Get(), true)
}

// History returns finished records in backend order.
func (s *Shelf) History() []model.Borrowing {
	return filter(s.records.Get(), false)
}

// Find returns the record with id, if loaded.
func (s *Shelf) Find(id int64) (*model.Borrowing, bool) {
	for _, b := range s.records.Get() {
		if b.ID == id {
			return &b, true
		}
	}
	return nil, false
}

func filter(records []model.Borrowing, current bool) []model.Borrowing {
	out := make([]model.Borrowing, 0, len(records))
	for _, b := range records {
		if b.IsCurrent() == current {
			out = append(out, b)
		}
	}
	return out
}

// Cancel withdraws the request with id. The record leaves the current list
// immediately, comes back if the backend refuses, and the shelf is reloaded
// after success.
func (s *Shelf) Cancel(ctx context.Context, id int64) error {
	rec, ok := s.Find(id)
	if !ok || !rec.IsCancellable() {
		return ErrNothingToCancel
	}

	_, outcome, err := tentative.Do(ctx, s.records, tentative.Mutation[[]model.Borrowing, struct{}]{
		Key: KeyBorrow,
		Apply: func(prior []model.Borrowing) []model.Borrowing {
			next := make([]model.Borrowing, 0, len(prior))
			for _, b := range prior {
				if b.ID == id {
					b.Status = model.BorrowingCancelled
				}
				next = append(next, b)
			}
			return next
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.CancelBorrowRequest(ctx, id)
		},
	})
	if err != nil {
		if outcome == tentative.RolledBack {
			s.logger.Info("cancel rejected, reverted", "borrowing_id", id, "error", err)
		}
		return err
	}
	if err := s.Load(ctx); err != nil {
		s.logger.Warn("reload after cancel", "error", err)
	}
	return nil
}
