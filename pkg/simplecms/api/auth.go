package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
)

type contextKey string

// AuthorIDKey holds the identity that write requests are attributed to.
const AuthorIDKey contextKey = "author_id"

// AuthorHeader names the header used when no token identifies the caller.
const AuthorHeader = "X-Author-ID"

// NewJWTAuth returns an HS256 verifier for secret.
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// RequireJWT rejects requests without a valid bearer token and stores the
// token subject as author id.
func RequireJWT(ja *jwtauth.JWTAuth) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		jwtauth.Verifier(ja),
		jwtauth.Authenticator,
		authorFromToken,
	}
}

func authorFromToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err == nil {
			if sub, ok := claims["sub"].(string); ok && sub != "" {
				r = r.WithContext(WithAuthor(r.Context(), sub))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithAuthor stores the author id in ctx.
func WithAuthor(ctx context.Context, authorID string) context.Context {
	return context.WithValue(ctx, AuthorIDKey, authorID)
}

// AuthorFromRequest returns the author set by authentication middleware,
// falling back to the X-Author-ID header.
func AuthorFromRequest(r *http.Request) string {
	if id, ok := r.Context().Value(AuthorIDKey).(string); ok && id != "" {
		return id
	}
	return r.Header.Get(AuthorHeader)
}
