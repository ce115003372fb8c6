package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUser      ctxKey = "user"
	ctxKeyToken     ctxKey = "token"
)

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// UserFromContext returns the authenticated username, or "".
func UserFromContext(ctx context.Context) string {
	if u, ok := ctx.Value(ctxKeyUser).(string); ok {
		return u
	}
	return ""
}

func tokenFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(ctxKeyToken).(string); ok {
		return t
	}
	return ""
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// tokenFromHeader accepts "Token <t>" and "Bearer <t>".
func tokenFromHeader(r *http.Request) string {
	h := r.Header.Get("Authorization")
	for _, scheme := range []string{"Token ", "Bearer "} {
		if strings.HasPrefix(h, scheme) {
			return strings.TrimSpace(h[len(scheme):])
		}
	}
	return ""
}

// authMiddleware resolves the Authorization header. Requests without a
// header pass through anonymously unless required is set; a header naming an
// unknown token is always rejected.
func (s *Server) authMiddleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := tokenFromHeader(r)
			if tok == "" {
				if required {
					respondDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			user, ok := s.lib.Authenticate(tok)
			if !ok {
				respondDetail(w, http.StatusUnauthorized, "Invalid token.")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			ctx = context.WithValue(ctx, ctxKeyToken, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
