package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhaven-cms/pkg/apierror"
)

// recorder is a terminal RoundTripper that captures the request it receives.
type recorder struct {
	got    *http.Request
	status int
	body   string
}

func (rec *recorder) RoundTrip(r *http.Request) (*http.Response, error) {
	rec.got = r
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(rec.body)),
		Request:    r,
	}, nil
}

func newRequest(t *testing.T, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://api.test/auth/logout", body)
	require.NoError(t, err)
	return req
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}

	rt := Chain(&recorder{}, tag("outer"), tag("inner"))
	_, err := rt.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestBearerAuth(t *testing.T) {
	token := ""
	rec := &recorder{}
	rt := Chain(rec, BearerAuth(func() string { return token }))

	original := newRequest(t, nil)
	_, err := rt.RoundTrip(original)
	require.NoError(t, err)
	assert.Empty(t, rec.got.Header.Get("Authorization"), "no session, no header")

	token = "tok-123"
	_, err = rt.RoundTrip(original)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", rec.got.Header.Get("Authorization"))
	assert.Empty(t, original.Header.Get("Authorization"), "caller's request is not modified")

	explicit := newRequest(t, nil)
	explicit.Header.Set("Authorization", "Bearer other")
	_, err = rt.RoundTrip(explicit)
	require.NoError(t, err)
	assert.Equal(t, "Bearer other", rec.got.Header.Get("Authorization"))

	anon := newRequest(t, nil).WithContext(WithoutBearer(context.Background()))
	_, err = rt.RoundTrip(anon)
	require.NoError(t, err)
	assert.Empty(t, rec.got.Header.Get("Authorization"), "anonymous requests carry no token")
}

func TestJSON(t *testing.T) {
	rec := &recorder{}
	rt := Chain(rec, JSON())

	_, err := rt.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "application/json", rec.got.Header.Get("Accept"))
	assert.Empty(t, rec.got.Header.Get("Content-Type"))

	_, err = rt.RoundTrip(newRequest(t, strings.NewReader(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, "application/json", rec.got.Header.Get("Content-Type"))
}

func TestRateLimit_Unlimited(t *testing.T) {
	rt := Chain(&recorder{}, RateLimit(0))

	for i := 0; i < 10; i++ {
		_, err := rt.RoundTrip(newRequest(t, nil))
		require.NoError(t, err)
	}
}

func TestRateLimit_Limited(t *testing.T) {
	rec := &recorder{}
	rt := Chain(rec, RateLimit(1))

	_, err := rt.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)

	// Burst of one: the second immediate request is refused locally.
	rec.got = nil
	_, err = rt.RoundTrip(newRequest(t, nil))
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeRateLimited, apiErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus)
	assert.Nil(t, rec.got, "request never reached the network")
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Chain(http.DefaultTransport, Timeout(20*time.Millisecond))}
	started := time.Now()
	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(started), time.Second)
}

func TestTimeout_BodyStillReadable(t *testing.T) {
	rt := Chain(&recorder{body: `{"ok":true}`}, Timeout(time.Second))

	resp, err := rt.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, `{"ok":true}`, string(raw))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := &recorder{status: http.StatusUnauthorized, body: `{"code":"UNAUTHORIZED","message":"bad credentials"}`}
	rt := Chain(rec, Logging(logger))

	resp, err := rt.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.got.Header.Get(requestIDHeader))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "bad credentials", "body is still readable after logging")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=401")
	assert.Contains(t, out, "error_code=UNAUTHORIZED")
	assert.Contains(t, out, "path=/auth/logout")
}
