package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	contextKeyShareID     contextKey = "share_id"
	contextKeyShareBookID contextKey = "share_book_id"
)

// requireShareSession validates the PASETO session token issued after a
// successful password check and attaches the share context. The token
// must belong to the share named in the URL.
func (s *Server) requireShareSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Missing authorization header", s.logger)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(w, "Invalid authorization header format", s.logger)
			return
		}

		share, err := s.services.Shares.ValidateSession(r.Context(), parts[1])
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}

		if token := chi.URLParam(r, "token"); token != "" && share.Token != token {
			response.Forbidden(w, "Session does not match this share", s.logger)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyShareID, share.ID)
		ctx = context.WithValue(ctx, contextKeyShareBookID, share.BookID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// shareBookID extracts the shared book ID from request context.
// Returns empty string outside a validated share session.
func shareBookID(ctx context.Context) string {
	if bookID, ok := ctx.Value(contextKeyShareBookID).(string); ok {
		return bookID
	}
	return ""
}

// clientIP returns the rate-limit key for a request. The RealIP
// middleware has already rewritten RemoteAddr where proxy headers apply.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
