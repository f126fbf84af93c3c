package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// errorBody is used to pull error details out of a failed response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
				r = r.Clone(r.Context())
				r.Header.Set(requestIDHeader, requestID)
			}

			started := time.Now()
			resp, err := next.RoundTrip(r)
			duration := time.Since(started).Milliseconds()

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration_ms", duration,
			}

			if err != nil {
				logger.Warn("api request", append(attrs, "error", err)...)
				return nil, err
			}

			attrs = append(attrs, "status", resp.StatusCode)

			if resp.StatusCode >= 400 {
				// Buffer the body so the caller can still decode it.
				raw, readErr := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				resp.Body = io.NopCloser(bytes.NewReader(raw))
				if readErr != nil {
					return nil, readErr
				}

				var parsed errorBody
				if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
					attrs = append(attrs, "error_code", parsed.Code, "error_message", parsed.Message)
				}
				logger.Warn("api request", attrs...)
				return resp, nil
			}

			logger.Debug("api request", attrs...)
			return resp, nil
		})
	}
}
