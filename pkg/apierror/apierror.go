package apierror

import "fmt"

// APIError is the error shape returned by the auth API on a non-2xx response.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Message != "" {
		return e.Message
	}

	if e.HTTPStatus != 0 {
		return fmt.Sprintf("request failed with status %d", e.HTTPStatus)
	}

	return "request failed"
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}
