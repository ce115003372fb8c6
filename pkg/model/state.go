package model

import "strings"

// SessionStatus is the lifecycle state of the client's authentication context.
type SessionStatus string

const (
	SessionInitializing  SessionStatus = "INITIALIZING"
	SessionAuthenticated SessionStatus = "AUTHENTICATED"
	SessionAnonymous     SessionStatus = "ANONYMOUS"
)

// String returns the string representation of the session status.
func (s SessionStatus) String() string {
	return string(s)
}

// ValidSessionTransitions defines the allowed session transitions.
// Anonymous → Anonymous is allowed so that a forced logout racing an explicit
// one is not an error.
var ValidSessionTransitions = map[SessionStatus][]SessionStatus{
	SessionInitializing:  {SessionAuthenticated, SessionAnonymous},
	SessionAnonymous:     {SessionAuthenticated, SessionAnonymous},
	SessionAuthenticated: {SessionAnonymous, SessionAuthenticated},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range ValidSessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BorrowingState is the backend's state of a single borrowing record.
type BorrowingState string

const (
	BorrowingRequested     BorrowingState = "REQUESTED"
	BorrowingActive        BorrowingState = "ACTIVE"
	BorrowingOverdue       BorrowingState = "OVERDUE"
	BorrowingPendingReturn BorrowingState = "PENDING_RETURN"
	BorrowingReturned      BorrowingState = "RETURNED"
	BorrowingReturnedLate  BorrowingState = "RETURNED_LATE"
	BorrowingRejected      BorrowingState = "REJECTED"
	BorrowingCancelled     BorrowingState = "CANCELLED"
	BorrowingLost          BorrowingState = "LOST_BY_BORROWER"
)

// NormalizeBorrowingState maps a backend status string onto a BorrowingState.
// Older backends used lowercase "pending" and "approved".
func NormalizeBorrowingState(s string) BorrowingState {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "PENDING":
		return BorrowingRequested
	case "APPROVED":
		return BorrowingActive
	default:
		return BorrowingState(v)
	}
}

// UnmarshalText normalizes the state while decoding.
func (s *BorrowingState) UnmarshalText(text []byte) error {
	*s = NormalizeBorrowingState(string(text))
	return nil
}

// Label returns the display label for the state.
func (s BorrowingState) Label() string {
	switch s {
	case BorrowingRequested:
		return "Requested"
	case BorrowingActive:
		return "On Loan"
	case BorrowingOverdue:
		return "Overdue"
	case BorrowingPendingReturn:
		return "Pending Return"
	case BorrowingReturned:
		return "Returned"
	case BorrowingReturnedLate:
		return "Returned Late"
	case BorrowingRejected:
		return "Rejected"
	case BorrowingCancelled:
		return "Cancelled"
	case BorrowingLost:
		return "Lost"
	default:
		return strings.ReplaceAll(string(s), "_", " ")
	}
}

// IsTerminal returns true if the borrowing is finished.
func (s BorrowingState) IsTerminal() bool {
	switch s {
	case BorrowingReturned, BorrowingReturnedLate, BorrowingRejected, BorrowingCancelled, BorrowingLost:
		return true
	}
	return false
}

// BorrowingStatus is the client-derived relationship between the member and
// a single book.
type BorrowingStatus string

const (
	StatusNone      BorrowingStatus = "NONE"
	StatusRequested BorrowingStatus = "REQUESTED"
	StatusActive    BorrowingStatus = "ACTIVE"
	StatusOverdue   BorrowingStatus = "OVERDUE"
	StatusError     BorrowingStatus = "ERROR"
)

// String returns the string representation of the borrowing status.
func (s BorrowingStatus) String() string {
	return string(s)
}

// statusFor maps a record state onto the derived status. ok is false for
// states that do not count as a live relationship.
func statusFor(state BorrowingState) (BorrowingStatus, bool) {
	switch state {
	case BorrowingRequested:
		return StatusRequested, true
	case BorrowingActive:
		return StatusActive, true
	case BorrowingOverdue:
		return StatusOverdue, true
	}
	return StatusNone, false
}
