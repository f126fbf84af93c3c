package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenSource returns the bearer token to send, or "" for none.
type TokenSource func() string

type anonymousKey struct{}

// WithoutBearer marks requests made with ctx as anonymous: BearerAuth
// leaves them without an Authorization header.
func WithoutBearer(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

func anonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey{}).(bool)
	return v
}

func BearerAuth(source TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if source == nil || anonymous(r.Context()) || r.Header.Get("Authorization") != "" {
				return next.RoundTrip(r)
			}

			token := strings.TrimSpace(source())
			if token == "" {
				return next.RoundTrip(r)
			}

			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}
