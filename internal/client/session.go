// Package client talks to the remote auth API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"localhaven-cms/internal/middleware"
	"localhaven-cms/internal/model"
	"localhaven-cms/pkg/apierror"
)

const (
	loginPath   = "/auth/login"
	logoutPath  = "/auth/logout"
	refreshPath = "/auth/refresh"
)

type Options struct {
	BaseURL string
	// Timeout bounds each request. Zero means none.
	Timeout time.Duration
	// RateLimitRPM throttles auth calls client side. Zero means unlimited.
	RateLimitRPM int
	// TokenSource supplies the bearer token for logout and refresh.
	TokenSource middleware.TokenSource
	Logger      *slog.Logger
	// Transport is the underlying round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// HTTPClient is the session transport: one JSON POST per call.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func New(opts Options) *HTTPClient {
	transport := middleware.Chain(opts.Transport,
		middleware.Logging(opts.Logger),
		middleware.RateLimit(opts.RateLimitRPM),
		middleware.Timeout(opts.Timeout),
		middleware.JSON(),
		middleware.BearerAuth(opts.TokenSource),
	)

	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Transport: transport},
	}
}

func (c *HTTPClient) Login(ctx context.Context, credentials model.LoginCredentials) (*model.Session, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}

	// Login never carries the stored session's token.
	var session model.Session
	if err := c.post(middleware.WithoutBearer(ctx), loginPath, credentials, &session); err != nil {
		return nil, err
	}

	fillExpiry(&session)
	return &session, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.post(ctx, logoutPath, nil, nil)
}

func (c *HTTPClient) RefreshToken(ctx context.Context) (*model.Session, error) {
	var session model.Session
	if err := c.post(ctx, refreshPath, nil, &session); err != nil {
		return nil, err
	}

	fillExpiry(&session)
	return &session, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apierror.APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("decode %s error response: %w", path, err)
		}
		apiErr.HTTPStatus = resp.StatusCode
		return &apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// fillExpiry takes expiresAt from the token's exp claim when the server
// left it out. Tokens that are not JWTs leave it zero.
func fillExpiry(session *model.Session) {
	if !session.ExpiresAt.IsZero() || session.Token == "" {
		return
	}

	token, _, err := jwt.NewParser().ParseUnverified(session.Token, jwt.MapClaims{})
	if err != nil {
		return
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	session.ExpiresAt = exp.UTC()
}
