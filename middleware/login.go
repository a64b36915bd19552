package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/google/uuid"
)

// VerifyRequestFunc checks the credentials carried by r. It returns false for
// wrong credentials and an error only when the check itself failed.
type VerifyRequestFunc func(r *http.Request) (bool, error)

type decisionContextKey struct{}

// DecisionFromContext returns the guard decision for a request that passed [Login].
func DecisionFromContext(ctx context.Context) (goGuard.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(goGuard.Decision)
	return d, ok
}

// Login guards a login route. verify runs only when the guard allows the
// attempt; next runs only when verify succeeds.
func Login(guard *goGuard.Guard, verify VerifyRequestFunc, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := o.protect(guard, verify, w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// protect runs the upstream limit and the guard. On rejection it has already
// written the response.
func (o *options) protect(guard *goGuard.Guard, verify VerifyRequestFunc, w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	reqID := r.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, reqID)
	ctx := goGuard.WithRequestID(r.Context(), reqID)
	r = r.WithContext(ctx)

	if guard == nil || verify == nil {
		writeError(w, http.StatusServiceUnavailable)
		return r, false
	}

	if o.upstream != nil {
		res, err := o.upstream.Allow(ctx, ClientIP(r, o.trusted))
		switch {
		case err != nil:
			o.logger.Warn().Err(err).Str("request_id", reqID).Msg("upstream limiter failed; deferring to guard")
		case !res.Allowed:
			setRetryAfter(w, res.RetryAfter)
			writeError(w, http.StatusTooManyRequests)
			return r, false
		}
	}

	attempt := goGuard.Attempt{
		Identity:       o.identity(r),
		ChallengeToken: o.challenge(r),
	}
	d, err := guard.Protect(ctx, attempt, func(ctx context.Context, _ string) (bool, error) {
		return verify(r.WithContext(ctx))
	})
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusTooManyRequests {
			setRetryAfter(w, d.RetryAfter)
		}
		if status == http.StatusInternalServerError {
			o.logger.Error().Err(err).Str("request_id", reqID).Msg("login verification failed")
		}
		writeError(w, status)
		return r, false
	}

	return r.WithContext(context.WithValue(ctx, decisionContextKey{}, d)), true
}

// StatusFor maps a guard error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goGuard.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goGuard.ErrChallengeRequired), errors.Is(err, goGuard.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, goGuard.ErrVerificationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, goGuard.ErrStoreUnavailable), errors.Is(err, goGuard.ErrGuardNotReady),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "too many login attempts, try again later"
	case http.StatusBadRequest:
		return "challenge required after repeated failed attempts"
	case http.StatusUnauthorized:
		return "invalid credentials"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return "internal error"
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: messageFor(status)})
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
}
