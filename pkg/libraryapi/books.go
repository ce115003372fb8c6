package libraryapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/me/libra/pkg/model"
)

// ListBooks returns the catalog, optionally filtered.
func (c *Client) ListBooks(ctx context.Context, q model.BookQuery) ([]model.Book, error) {
	const op = "list books"
	query := url.Values{}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.Genre != "" {
		query.Set("genre", q.Genre)
	}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	data, err := c.doRaw(ctx, request{op: op, method: http.MethodGet, path: "books/", query: query})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Book](op, data)
}

// GetBook fetches one book, including the member's is_favorite flag.
func (c *Client) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	var b model.Book
	if err := c.do(ctx, request{op: "get book", method: http.MethodGet, path: fmt.Sprintf("books/%d/", id)}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// AddFavorite marks a book as favorite. The backend may answer with the
// updated book; nil is returned when it does not.
func (c *Client) AddFavorite(ctx context.Context, id int64) (*model.Book, error) {
	data, err := c.doRaw(ctx, request{op: "add favorite", method: http.MethodPost, path: fmt.Sprintf("books/%d/favorite/", id)})
	if err != nil {
		return nil, err
	}
	return decodeOptionalBook(data), nil
}

// RemoveFavorite unmarks a book.
func (c *Client) RemoveFavorite(ctx context.Context, id int64) error {
	return c.do(ctx, request{op: "remove favorite", method: http.MethodDelete, path: fmt.Sprintf("books/%d/favorite/", id)}, nil)
}

// ListFavorites returns the member's favorite books.
func (c *Client) ListFavorites(ctx context.Context) ([]model.Book, error) {
	const op = "list favorites"
	data, err := c.doRaw(ctx, request{op: op, method: http.MethodGet, path: "books/favorites/"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Book](op, data)
}

// decodeOptionalBook returns the book in data if it looks like one.
func decodeOptionalBook(data []byte) *model.Book {
	var b model.Book
	if err := json.Unmarshal(data, &b); err != nil || b.ID == 0 {
		return nil
	}
	return &b
}

func decodeList[T any](op string, data []byte) ([]T, error) {
	items, err := model.DecodeList[T](data)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindUnknown, Message: "unexpected response from server", Err: err}
	}
	return items, nil
}
