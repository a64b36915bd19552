package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const goodPassword = "hunter2"

func newTestGuard(t *testing.T) *goGuard.Guard {
	t.Helper()

	cfg := goGuard.DefaultConfig()
	cfg.Delay.Base = time.Millisecond
	cfg.Delay.Max = 5 * time.Millisecond
	cfg.Eviction.Enabled = false

	g, err := goGuard.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func passwordVerifier(r *http.Request) (bool, error) {
	return r.Header.Get("X-Password") == goodPassword, nil
}

func loginRequest(remote, password, challenge string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remote
	req.Header.Set("X-Password", password)
	if challenge != "" {
		req.Header.Set(ChallengeHeader, challenge)
	}
	return req
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, ok := DecisionFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, goGuard.OutcomeAllow, d.Outcome)
		require.NotEmpty(t, goGuard.RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestLoginStatusMapping(t *testing.T) {
	g := newTestGuard(t)
	h := Login(g, passwordVerifier)(okHandler(t))
	remote := "203.0.113.5:41000"

	serve := func(password, challenge string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, loginRequest(remote, password, challenge))
		return rr
	}

	for i := 0; i < 3; i++ {
		rr := serve("wrong", "")
		require.Equal(t, http.StatusUnauthorized, rr.Code, "attempt %d", i+1)
		require.JSONEq(t, `{"error":"invalid credentials"}`, rr.Body.String())
	}

	rr := serve(goodPassword, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve("wrong", "captcha")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(goodPassword, "captcha")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	secs, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	require.Greater(t, secs, 0)
	require.LessOrEqual(t, secs, 15*60+1)
}

func TestLoginSuccessResets(t *testing.T) {
	g := newTestGuard(t)
	h := Login(g, passwordVerifier)(okHandler(t))
	remote := "198.51.100.20:5000"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, loginRequest(remote, "wrong", ""))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, loginRequest(remote, goodPassword, ""))
	require.Equal(t, http.StatusOK, rr.Code)

	st, err := g.Status(context.Background(), "198.51.100.20")
	require.NoError(t, err)
	require.Equal(t, goGuard.StateFresh, st.State)
}

func TestLoginRequestID(t *testing.T) {
	g := newTestGuard(t)
	h := Login(g, passwordVerifier)(okHandler(t))

	req := loginRequest("192.0.2.1:1", goodPassword, "")
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, loginRequest("192.0.2.1:1", goodPassword, ""))
	_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
	require.NoError(t, err)
}

func TestLoginUpstreamLimit(t *testing.T) {
	g := newTestGuard(t)
	h := Login(g, passwordVerifier, WithUpstreamLimit(2, time.Minute))(okHandler(t))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, loginRequest("192.0.2.50:1", goodPassword, ""))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, loginRequest("192.0.2.50:1", goodPassword, ""))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "60", rr.Header().Get("Retry-After"))

	snap := g.MetricsSnapshot()
	require.Equal(t, uint64(2), snap.Counters[goGuard.MetricAttemptAllowed], "upstream rejection must not reach the guard")
}

func TestLoginVerifierError(t *testing.T) {
	g := newTestGuard(t)
	h := Login(g, func(*http.Request) (bool, error) {
		return false, errors.New("directory down")
	})(okHandler(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, loginRequest("192.0.2.7:1", "x", ""))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLoginNilGuard(t *testing.T) {
	h := Login(nil, passwordVerifier)(okHandler(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, loginRequest("192.0.2.7:1", goodPassword, ""))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLoginIdentityFunc(t *testing.T) {
	g := newTestGuard(t)
	perUser := WithIdentityFunc(func(r *http.Request) string {
		return ClientIP(r, nil) + "|" + r.Header.Get("X-User")
	})
	h := Login(g, passwordVerifier, perUser)(okHandler(t))

	req := loginRequest("192.0.2.9:1", "wrong", "")
	req.Header.Set("X-User", "alice")
	h.ServeHTTP(httptest.NewRecorder(), req)

	st, err := g.Status(context.Background(), "192.0.2.9|alice")
	require.NoError(t, err)
	require.Equal(t, 1, st.Count)
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{name: "direct", remote: "203.0.113.1:1234", want: "203.0.113.1"},
		{name: "untrusted peer ignores header", remote: "203.0.113.1:1234", xff: []string{"1.2.3.4"}, want: "203.0.113.1"},
		{name: "trusted peer uses header", remote: "10.1.1.1:80", xff: []string{"198.51.100.9"}, want: "198.51.100.9"},
		{name: "rightmost untrusted hop wins", remote: "10.1.1.1:80", xff: []string{"6.6.6.6, 198.51.100.9, 10.2.2.2"}, want: "198.51.100.9"},
		{name: "multiple header lines", remote: "10.1.1.1:80", xff: []string{"6.6.6.6", "198.51.100.9"}, want: "198.51.100.9"},
		{name: "all trusted", remote: "10.1.1.1:80", xff: []string{"10.3.3.3"}, want: "10.3.3.3"},
		{name: "garbage stops walk", remote: "10.1.1.1:80", xff: []string{"evil, 10.3.3.3"}, want: "10.3.3.3"},
		{name: "ipv6 peer", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "mapped ipv4", remote: "[::ffff:203.0.113.7]:1", want: "203.0.113.7"},
		{name: "unparseable remote", remote: "pipe", want: "pipe"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for _, v := range tc.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			require.Equal(t, tc.want, ClientIP(req, trusted))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{goGuard.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: %w", goGuard.ErrChallengeRequired, goGuard.ErrChallengeInvalid), http.StatusBadRequest},
		{goGuard.ErrInvalidIdentity, http.StatusBadRequest},
		{goGuard.ErrVerificationFailed, http.StatusUnauthorized},
		{fmt.Errorf("%w: dial tcp", goGuard.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{goGuard.ErrGuardNotReady, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	require.Equal(t, 1, retryAfterSeconds(0))
	require.Equal(t, 1, retryAfterSeconds(300*time.Millisecond))
	require.Equal(t, 2, retryAfterSeconds(1001*time.Millisecond))
	require.Equal(t, 900, retryAfterSeconds(15*time.Minute))
}
