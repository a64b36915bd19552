package middleware

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChallengeHeader carries the step-up token by default.
const ChallengeHeader = "X-Challenge-Token"

// RequestIDHeader is read from requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// Option configures [Login] and [GinLogin].
type Option func(*options)

type options struct {
	trusted   []netip.Prefix
	identity  func(*http.Request) string
	challenge func(*http.Request) string
	upstream  rate.Limiter
	logger    zerolog.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: zerolog.Nop(),
		challenge: func(r *http.Request) string {
			return r.Header.Get(ChallengeHeader)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.identity == nil {
		trusted := o.trusted
		o.identity = func(r *http.Request) string {
			return ClientIP(r, trusted)
		}
	}
	return o
}

// WithTrustedProxies lists peers whose X-Forwarded-For header is honored.
// Without it the socket peer address is always the identity.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(o *options) {
		o.trusted = append(o.trusted, prefixes...)
	}
}

// WithIdentityFunc replaces client-IP identity derivation, e.g. to throttle
// per IP and username pair.
func WithIdentityFunc(fn func(*http.Request) string) Option {
	return func(o *options) {
		o.identity = fn
	}
}

// WithChallengeTokenFunc replaces reading the token from [ChallengeHeader].
func WithChallengeTokenFunc(fn func(*http.Request) string) Option {
	return func(o *options) {
		if fn != nil {
			o.challenge = fn
		}
	}
}

// WithUpstreamLimit adds an in-process per-IP fixed window of limit requests
// per window ahead of the guard. Invalid values disable it.
func WithUpstreamLimit(limit int, window time.Duration) Option {
	return func(o *options) {
		cfg := rate.Config{Limit: limit, Window: window}
		if cfg.Validate() != nil {
			return
		}
		o.upstream = rate.NewMemory(cfg, nil)
	}
}

// WithRedisUpstreamLimit is [WithUpstreamLimit] shared through Redis. Redis
// errors let the request through to the guard.
func WithRedisUpstreamLimit(client redis.UniversalClient, limit int, window time.Duration) Option {
	return func(o *options) {
		cfg := rate.Config{Limit: limit, Window: window}
		if client == nil || cfg.Validate() != nil {
			return
		}
		o.upstream = rate.NewRedis(client, cfg)
	}
}

// WithLogger logs upstream limiter failures and unexpected guard errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
