package devserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/me/libra/pkg/model"
)

func (s *Server) handleListBorrowings(w http.ResponseWriter, r *http.Request) {
	var bookID int64
	if v := r.URL.Query().Get("book_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondFields(w, map[string][]string{"book_id": {"A valid integer is required."}})
			return
		}
		bookID = n
	}
	respondOK(w, s.lib.Borrowings(UserFromContext(r.Context()), bookID))
}

func (s *Server) handleGetBorrowing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b, err := s.lib.Borrowing(UserFromContext(r.Context()), id)
	if err != nil {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	respondOK(w, b)
}

func (s *Server) handleRequestBorrow(w http.ResponseWriter, r *http.Request) {
	var req model.BorrowRequest
	if err := decodeBody(r, &req); err != nil {
		respondFields(w, map[string][]string{"due_date": {"Date has wrong format. Use YYYY-MM-DD."}})
		return
	}
	fields := map[string][]string{}
	if req.BookID == 0 {
		fields["book_id"] = []string{fieldRequired}
	}
	if req.DueDate.IsZero() {
		fields["due_date"] = []string{fieldRequired}
	}
	if len(fields) > 0 {
		respondFields(w, fields)
		return
	}

	user := UserFromContext(r.Context())
	b, err := s.lib.RequestBorrow(user, req.BookID, req.DueDate)
	switch {
	case errors.Is(err, ErrNotFound):
		respondDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, ErrPastDueDate):
		respondFields(w, map[string][]string{"due_date": {"Due date cannot be in the past."}})
	case errors.Is(err, ErrNoCopies), errors.Is(err, ErrAlreadyBorrowing):
		respondErrorMsg(w, http.StatusBadRequest, capitalize(err.Error()))
	case err != nil:
		s.logger.Error("request borrow", "error", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error.")
	default:
		s.logger.Info("borrow requested", "user", user, "book_id", req.BookID, "borrowing_id", b.ID)
		respondCreated(w, b)
	}
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	err := s.lib.CancelRequest(UserFromContext(r.Context()), id)
	switch {
	case errors.Is(err, ErrNotFound):
		respondDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, ErrNotCancellable):
		respondErrorMsg(w, http.StatusBadRequest, capitalize(err.Error()))
	case err != nil:
		respondDetail(w, http.StatusInternalServerError, "Internal server error.")
	default:
		respondNoContent(w)
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:] + "."
}
