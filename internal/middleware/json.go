package middleware

import "net/http"

const contentTypeJSON = "application/json"

// JSON marks requests as JSON: Accept always, Content-Type when a body is sent.
func JSON() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			r = r.Clone(r.Context())
			if r.Header.Get("Accept") == "" {
				r.Header.Set("Accept", contentTypeJSON)
			}
			if r.Body != nil && r.Body != http.NoBody && r.Header.Get("Content-Type") == "" {
				r.Header.Set("Content-Type", contentTypeJSON)
			}
			return next.RoundTrip(r)
		})
	}
}
