package libraryapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/me/libra/pkg/model"
)

// ListBorrowings returns the member's borrowing records in backend order,
// optionally filtered to one book.
func (c *Client) ListBorrowings(ctx context.Context, q model.BorrowingQuery) ([]model.Borrowing, error) {
	const op = "list borrowings"
	query := url.Values{}
	if q.BookID != 0 {
		query.Set("book_id", strconv.FormatInt(q.BookID, 10))
	}
	data, err := c.doRaw(ctx, request{op: op, method: http.MethodGet, path: "borrow/", query: query})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Borrowing](op, data)
}

// GetBorrowing fetches one borrowing record.
func (c *Client) GetBorrowing(ctx context.Context, id int64) (*model.Borrowing, error) {
	var b model.Borrowing
	if err := c.do(ctx, request{op: "get borrowing", method: http.MethodGet, path: fmt.Sprintf("borrow/%d/", id)}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// RequestBorrow asks to borrow a book until due. The backend answers with the
// new record; if its body is empty a record with REQUESTED state is
// synthesized from the request.
func (c *Client) RequestBorrow(ctx context.Context, bookID int64, due model.Date) (*model.Borrowing, error) {
	var b model.Borrowing
	if err := c.do(ctx, request{
		op:     "request borrow",
		method: http.MethodPost,
		path:   "borrow/request-borrow/",
		body:   model.BorrowRequest{BookID: bookID, DueDate: due},
	}, &b); err != nil {
		return nil, err
	}
	if b.Status == "" {
		b.Status = model.BorrowingRequested
	}
	if b.BookRef() == 0 {
		b.BookID = bookID
	}
	if b.DueDate == nil {
		b.DueDate = &due
	}
	return &b, nil
}

// CancelBorrowRequest withdraws a pending request.
func (c *Client) CancelBorrowRequest(ctx context.Context, borrowingID int64) error {
	return c.do(ctx, request{
		op:     "cancel borrow request",
		method: http.MethodDelete,
		path:   fmt.Sprintf("borrow/%d/cancel_request/", borrowingID),
	}, nil)
}
