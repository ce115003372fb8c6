package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BookCopy is a physical copy of a book.
type BookCopy struct {
	CopyID string `json:"copy_id"`
	Book   *Book  `json:"book,omitempty"`
}

// Borrowing is one borrowing record of the member.
//
// Serializers differ in how they reference the book: a nested "book" object,
// a bare "book" id, a "book_id" field, or only through "book_copy.book".
// BookRef resolves all of them.
type Borrowing struct {
	ID          int64          `json:"id"`
	Book        *Book          `json:"-"`
	BookID      int64          `json:"book_id,omitempty"`
	BookCopy    *BookCopy      `json:"book_copy,omitempty"`
	Status      BorrowingState `json:"status"`
	RequestDate *time.Time     `json:"request_date,omitempty"`
	IssueDate   *time.Time     `json:"issue_date,omitempty"`
	DueDate     *Date          `json:"due_date,omitempty"`
	ReturnDate  *time.Time     `json:"return_date,omitempty"`
	IsActive    bool           `json:"is_active"`
}

type borrowingAlias Borrowing

type borrowingWire struct {
	borrowingAlias
	Book json.RawMessage `json:"book,omitempty"`
}

// UnmarshalJSON decodes the polymorphic "book" field.
func (b *Borrowing) UnmarshalJSON(data []byte) error {
	var w borrowingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = Borrowing(w.borrowingAlias)

	raw := bytes.TrimSpace(w.Book)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '{':
		var book Book
		if err := json.Unmarshal(raw, &book); err != nil {
			return fmt.Errorf("borrowing %d: book: %w", b.ID, err)
		}
		b.Book = &book
	default:
		var id int64
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("borrowing %d: book id: %w", b.ID, err)
		}
		if b.BookID == 0 {
			b.BookID = id
		}
	}
	return nil
}

// MarshalJSON encodes the book as a nested object.
func (b Borrowing) MarshalJSON() ([]byte, error) {
	type out struct {
		borrowingAlias
		Book *Book `json:"book,omitempty"`
	}
	return json.Marshal(out{borrowingAlias: borrowingAlias(b), Book: b.Book})
}

// BookRef returns the id of the book this record refers to, or 0.
func (b *Borrowing) BookRef() int64 {
	switch {
	case b.BookID != 0:
		return b.BookID
	case b.Book != nil:
		return b.Book.ID
	case b.BookCopy != nil && b.BookCopy.Book != nil:
		return b.BookCopy.Book.ID
	}
	return 0
}

// ResolvedBook returns the nested book if the serializer included one.
func (b *Borrowing) ResolvedBook() *Book {
	if b.Book != nil {
		return b.Book
	}
	if b.BookCopy != nil {
		return b.BookCopy.Book
	}
	return nil
}

// IsCurrent reports whether the record belongs on the member's current shelf
// rather than in their history.
func (b *Borrowing) IsCurrent() bool {
	switch b.Status {
	case BorrowingRequested, BorrowingActive, BorrowingOverdue, BorrowingPendingReturn:
		return true
	}
	return false
}

// IsCancellable reports whether the member may still withdraw the request.
func (b *Borrowing) IsCancellable() bool {
	return b.Status == BorrowingRequested
}

// BorrowingQuery filters the borrowing list endpoint.
type BorrowingQuery struct {
	BookID int64
}

// DeriveBorrowingStatus selects, in backend order, the first record for
// bookID whose state is Requested, Active or Overdue. No such record yields
// StatusNone and a nil record.
func DeriveBorrowingStatus(records []Borrowing, bookID int64) (BorrowingStatus, *Borrowing) {
	for i := range records {
		if records[i].BookRef() != bookID {
			continue
		}
		if status, ok := statusFor(records[i].Status); ok {
			rec := records[i]
			return status, &rec
		}
	}
	return StatusNone, nil
}

// Affordance is the action offered for a book given its availability and the
// member's borrowing status.
type Affordance string

const (
	AffordanceBorrow             Affordance = "BORROW"
	AffordanceCancelRequest      Affordance = "CANCEL_REQUEST"
	AffordanceCurrentlyBorrowing Affordance = "CURRENTLY_BORROWING"
	AffordanceUnavailable        Affordance = "UNAVAILABLE"
	AffordanceStatusUnknown      Affordance = "STATUS_UNKNOWN"
)

// Enabled reports whether the affordance is an actionable control.
func (a Affordance) Enabled() bool {
	return a == AffordanceBorrow || a == AffordanceCancelRequest
}

// Label is the text shown for the affordance.
func (a Affordance) Label() string {
	switch a {
	case AffordanceBorrow:
		return "Borrow"
	case AffordanceCancelRequest:
		return "Cancel request"
	case AffordanceCurrentlyBorrowing:
		return "Currently borrowing"
	case AffordanceUnavailable:
		return "Unavailable"
	default:
		return "Borrowing status unavailable"
	}
}

// AffordanceFor is a pure function of availability and borrowing status.
func AffordanceFor(availableCopies int, status BorrowingStatus) Affordance {
	switch status {
	case StatusRequested:
		return AffordanceCancelRequest
	case StatusActive, StatusOverdue:
		return AffordanceCurrentlyBorrowing
	case StatusNone:
		if availableCopies > 0 {
			return AffordanceBorrow
		}
		return AffordanceUnavailable
	default:
		return AffordanceStatusUnknown
	}
}
