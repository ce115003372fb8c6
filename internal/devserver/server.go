// Package devserver is an in-memory implementation of the library REST API
// used for local development and as the backend of integration tests.
package devserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/libra/internal/config"
	"github.com/me/libra/internal/logging"
)

// PageSize is the number of books per page of the book list.
const PageSize = 10

// Server serves the library API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.DevServerConfig
	startTime time.Time
	lib       *Library
}

// Option configures optional Server behaviour.
type Option func(*Server)

// WithClock replaces the library clock, for tests that need fixed dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.lib.mu.Lock()
		s.lib.now = now
		s.lib.mu.Unlock()
	}
}

// New creates a Server over lib with all routes registered.
func New(cfg config.DevServerConfig, lib *Library, logger *slog.Logger, opts ...Option) *Server {
	logger = logging.Or(logger)
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "devserver"),
		config:    cfg,
		startTime: time.Now(),
		lib:       lib,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Library returns the backing state.
func (s *Server) Library() *Library {
	return s.lib
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	if prefix := strings.Trim(s.config.PathPrefix, "/"); prefix != "" {
		r.Route("/"+prefix, s.apiRoutes)
	} else {
		s.apiRoutes(r)
	}
}

func (s *Server) apiRoutes(r chi.Router) {
	r.Get("/health/", s.handleHealth)

	// Anonymous access is allowed; a bad token is still rejected.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(false))
		r.Post("/auth/login/", s.handleLogin)
		r.Post("/auth/register/", s.handleRegister)
		r.Post("/auth/password_reset/", s.handlePasswordReset)
		r.Get("/books/", s.handleListBooks)
		r.Get("/books/{id}/", s.handleGetBook)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(true))

		r.Post("/auth/logout/", s.handleLogout)
		r.Get("/auth/profile/", s.handleGetProfile)
		r.Patch("/auth/profile/", s.handleUpdateProfile)
		r.Post("/auth/device/register/", s.handleRegisterDevice)

		r.Get("/books/favorites/", s.handleListFavorites)
		r.Post("/books/{id}/favorite/", s.handleAddFavorite)
		r.Delete("/books/{id}/favorite/", s.handleRemoveFavorite)

		r.Route("/borrow", func(r chi.Router) {
			r.Get("/", s.handleListBorrowings)
			r.Post("/request-borrow/", s.handleRequestBorrow)
			r.Get("/{id}/", s.handleGetBorrowing)
			r.Delete("/{id}/cancel_request/", s.handleCancelRequest)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Post("/{id}/mark_read/", s.handleMarkRead)
			r.Delete("/clear_all/", s.handleClearNotifications)
		})
	})
}
