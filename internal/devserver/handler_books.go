package devserver

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/libra/pkg/model"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondDetail(w, http.StatusNotFound, "Invalid page.")
			return
		}
		page = n
	}

	books := s.lib.Books(UserFromContext(r.Context()), q.Get("search"), q.Get("genre"))
	start := (page - 1) * PageSize
	if start > 0 && start >= len(books) {
		respondDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	end := min(start+PageSize, len(books))

	resp := model.Page[model.Book]{Count: len(books), Results: books[start:end]}
	if end < len(books) {
		resp.Next = pageLink(r, page+1)
	}
	if page > 1 {
		resp.Previous = pageLink(r, page-1)
	}
	respondOK(w, resp)
}

// pageLink returns the absolute URL of page n of the current listing.
func pageLink(r *http.Request, n int) *string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b, err := s.lib.Book(UserFromContext(r.Context()), id)
	if err != nil {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	respondOK(w, b)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, true)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, false)
}

func (s *Server) setFavorite(w http.ResponseWriter, r *http.Request, fav bool) {
	id, ok := pathID(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	b, err := s.lib.SetFavorite(UserFromContext(r.Context()), id, fav)
	if err != nil {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if !fav {
		respondNoContent(w)
		return
	}
	respondOK(w, b)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	respondOK(w, s.lib.Favorites(UserFromContext(r.Context())))
}
