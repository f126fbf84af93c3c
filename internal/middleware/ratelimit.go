package middleware

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"localhaven-cms/pkg/apierror"
)

const CodeRateLimited = "RATE_LIMITED"

// RateLimit rejects requests beyond rpm per minute without sending them.
// Zero or less means unlimited.
func RateLimit(rpm int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if rpm <= 0 {
			return next
		}

		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if !limiter.Allow() {
				return nil, apierror.New(CodeRateLimited, "too many requests", "", http.StatusTooManyRequests)
			}
			return next.RoundTrip(r)
		})
	}
}
