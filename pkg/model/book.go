package model

import (
	"strconv"
	"strings"
)

// Author of a book.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Genre of a book.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is the borrowable resource. The backend computes IsFavorite for the
// requesting member; AvailableCopiesCount and IsAvailable are omitted by some
// serializers, so both are optional.
type Book struct {
	ID                   int64    `json:"id"`
	ISBN                 string   `json:"isbn,omitempty"`
	Title                string   `json:"title"`
	Authors              []Author `json:"authors,omitempty"`
	Genres               []Genre  `json:"genres,omitempty"`
	CoverImage           string   `json:"cover_image,omitempty"`
	Summary              string   `json:"summary,omitempty"`
	PublicationYear      int      `json:"publication_year,omitempty"`
	Quantity             int      `json:"quantity"`
	AvailableCopiesCount *int     `json:"available_copies_count,omitempty"`
	IsAvailable          *bool    `json:"is_available,omitempty"`
	IsFavorite           bool     `json:"is_favorite"`
}

// AvailableCopies returns the number of copies that can be lent right now.
// available_copies_count is authoritative when present; otherwise quantity is
// used. An explicit is_available=false forces zero.
func (b *Book) AvailableCopies() int {
	if b.IsAvailable != nil && !*b.IsAvailable {
		return 0
	}
	n := b.Quantity
	if b.AvailableCopiesCount != nil {
		n = *b.AvailableCopiesCount
	}
	if n < 0 {
		return 0
	}
	return n
}

// AuthorNames joins author names, or returns "Unknown Author".
func (b *Book) AuthorNames() string {
	if len(b.Authors) == 0 {
		return "Unknown Author"
	}
	names := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// GenreNames joins genre names, or returns "N/A".
func (b *Book) GenreNames() string {
	if len(b.Genres) == 0 {
		return "N/A"
	}
	names := make([]string, 0, len(b.Genres))
	for _, g := range b.Genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

// AvailabilityLabel describes the stock in words.
func (b *Book) AvailabilityLabel() string {
	switch n := b.AvailableCopies(); {
	case n > 1:
		return strconv.Itoa(n) + " copies available"
	case n == 1:
		return "1 copy available"
	default:
		return "Out of stock"
	}
}

// Matches reports whether the query appears in the title, an author, or a
// genre (case-insensitive).
func (b *Book) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.ISBN), q) {
		return true
	}
	for _, a := range b.Authors {
		if strings.Contains(strings.ToLower(a.Name), q) {
			return true
		}
	}
	for _, g := range b.Genres {
		if strings.Contains(strings.ToLower(g.Name), q) {
			return true
		}
	}
	return false
}

// BookQuery filters the book list endpoint.
type BookQuery struct {
	Search string
	Genre  string
	Page   int
}

// BorrowRequest is the body of the borrow request endpoint.
type BorrowRequest struct {
	BookID  int64 `json:"book_id"`
	DueDate Date  `json:"due_date"`
}
