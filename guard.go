package goGuard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/throttle"
	"github.com/rs/zerolog"
)

// Guard throttles credential verification per identity. All methods are safe
// for concurrent use. Attempts for different identities never contend;
// attempts for the same identity are counted in a single linear order.
type Guard struct {
	config    Config
	store     attempt.Store
	backend   string
	window    attempt.Window
	policy    throttle.Policy
	delay     throttle.Delay
	challenge ChallengeValidator
	clock     func() time.Time

	logger    zerolog.Logger
	logCloser io.Closer
	metrics   *Metrics
	audit     *audit.Dispatcher
	sweeper   *attempt.Sweeper

	closed    atomic.Bool
	closeOnce sync.Once
}

func (g *Guard) now() time.Time {
	if g == nil || g.clock == nil {
		return time.Now()
	}
	return g.clock()
}

func (g *Guard) ready() bool {
	return g != nil && g.store != nil && !g.closed.Load()
}

// Check records one attempt for a.Identity and decides whether it may proceed.
//
// The attempt is counted before the decision, so rejected attempts still
// escalate. On ChallengeRequired it returns ErrChallengeRequired; on Denied it
// returns ErrRateLimited with Decision.RetryAfter set. Neither applies a delay.
// When the store fails, the configured FailurePolicy decides: FailOpen returns
// Allow with Degraded set and a nil error, FailClosed returns Denied and an
// error wrapping ErrStoreUnavailable.
func (g *Guard) Check(ctx context.Context, a Attempt) (Decision, error) {
	if !g.ready() {
		return Decision{Outcome: OutcomeDenied, Identity: a.Identity}, ErrGuardNotReady
	}
	if err := attempt.ValidateIdentity(a.Identity); err != nil {
		return Decision{Outcome: OutcomeDenied, Identity: a.Identity}, err
	}

	now := g.now()
	rec, err := g.store.IncrementAndGet(ctx, a.Identity, now, g.window)
	if err != nil {
		if isContextErr(err) && ctx.Err() != nil {
			return Decision{Outcome: OutcomeDenied, Identity: a.Identity}, err
		}
		return g.storeFailure(ctx, a.Identity, err)
	}

	challengePresent := a.ChallengeToken != ""
	d := Decision{
		Outcome:  g.policy.Decide(rec.Count, challengePresent),
		Identity: a.Identity,
		Count:    rec.Count,
		Delay:    g.delay.Compute(rec.Count),
	}

	switch d.Outcome {
	case OutcomeDenied:
		d.RetryAfter = g.retryAfter(rec, now)
		g.metrics.Inc(MetricAttemptDenied)
		g.logger.Debug().Str("identity", a.Identity).Int("count", rec.Count).Dur("retry_after", d.RetryAfter).Msg("attempt denied")
		g.emitAudit(ctx, auditEventAttemptDenied, d, false, ErrRateLimited, nil)
		return d, ErrRateLimited

	case OutcomeChallengeRequired:
		g.metrics.Inc(MetricChallengeRequired)
		g.logger.Debug().Str("identity", a.Identity).Int("count", rec.Count).Msg("challenge required")
		g.emitAudit(ctx, auditEventChallengeRequired, d, false, ErrChallengeRequired, nil)
		return d, ErrChallengeRequired
	}

	if challengePresent && rec.Count > g.policy.ChallengeThreshold {
		if err := g.validateChallenge(ctx, a); err != nil {
			d.Outcome = OutcomeChallengeRequired
			g.metrics.Inc(MetricChallengeRejected)
			g.metrics.Inc(MetricChallengeRequired)
			g.emitAudit(ctx, auditEventChallengeRequired, d, false, err, nil)
			return d, err
		}
		g.metrics.Inc(MetricChallengeAccepted)
	}

	g.metrics.Inc(MetricAttemptAllowed)
	g.emitAudit(ctx, auditEventAttemptAllowed, d, true, nil, nil)
	return d, nil
}

func (g *Guard) validateChallenge(ctx context.Context, a Attempt) error {
	if g.challenge == nil {
		return nil
	}
	ok, err := g.challenge.ValidateChallenge(ctx, a.Identity, a.ChallengeToken)
	if err != nil {
		g.logger.Warn().Err(err).Msg("challenge validator failed")
		return fmt.Errorf("%w: %w", ErrChallengeRequired, ErrChallengeInvalid)
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrChallengeRequired, ErrChallengeInvalid)
	}
	return nil
}

// storeFailure applies the FailurePolicy to a store error.
func (g *Guard) storeFailure(ctx context.Context, identity string, err error) (Decision, error) {
	g.metrics.Inc(MetricStoreUnavailable)

	if g.config.Store.FailurePolicy == FailOpen {
		g.metrics.Inc(MetricFailOpen)
		g.logger.Warn().Err(err).Str("policy", "open").Msg("attempt store unavailable; allowing")
		d := Decision{
			Outcome:  OutcomeAllow,
			Identity: identity,
			Delay:    g.delay.Compute(1),
			Degraded: true,
		}
		g.emitAudit(ctx, auditEventStoreUnavailable, d, true, err, map[string]string{"policy": "open"})
		return d, nil
	}

	g.metrics.Inc(MetricFailClosed)
	g.logger.Warn().Err(err).Str("policy", "closed").Msg("attempt store unavailable; denying")
	d := Decision{
		Outcome:  OutcomeDenied,
		Identity: identity,
		Degraded: true,
	}
	g.emitAudit(ctx, auditEventStoreUnavailable, d, false, err, map[string]string{"policy": "closed"})
	if errors.Is(err, ErrStoreUnavailable) {
		return d, err
	}
	return d, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (g *Guard) retryAfter(rec attempt.Record, now time.Time) time.Duration {
	at := g.window.ResetAt(rec)
	if at.IsZero() {
		return 0
	}
	// ShouldReset uses a strict comparison, so the window is still live at
	// exactly ResetAt.
	wait := at.Sub(now) + time.Millisecond
	if wait < 0 {
		return 0
	}
	return wait
}

// Fail records a failed verification for an allowed attempt: it stamps the
// attempt time and then blocks the caller for Decision.Delay. Decisions that
// were not Allow return ErrDecisionNotAllowed without a delay. It returns
// ErrVerificationFailed, or ctx.Err() if the delay was cut short. A cancelled
// delay leaves the attempt count as Check recorded it.
func (g *Guard) Fail(ctx context.Context, d Decision) error {
	if !g.ready() {
		return ErrGuardNotReady
	}
	if err := attempt.ValidateIdentity(d.Identity); err != nil {
		return err
	}
	if d.Outcome != OutcomeAllow {
		return ErrDecisionNotAllowed
	}

	g.metrics.Inc(MetricVerificationFailure)

	if !d.Degraded {
		if err := g.store.Touch(ctx, d.Identity, g.now()); err != nil && !isContextErr(err) {
			g.metrics.Inc(MetricStoreUnavailable)
			g.logger.Warn().Err(err).Msg("attempt store touch failed")
		}
	}

	wait := g.delay.Compute(d.Count)
	start := time.Now()
	err := throttle.Apply(ctx, wait)
	g.metrics.Observe(MetricDelayLatency, time.Since(start))
	if err != nil {
		g.metrics.Inc(MetricDelayCancelled)
		g.emitAudit(ctx, auditEventVerificationFailed, d, false, err, nil)
		return err
	}
	if wait > 0 {
		g.metrics.Inc(MetricDelayApplied)
	}

	g.emitAudit(ctx, auditEventVerificationFailed, d, false, ErrVerificationFailed, map[string]string{"delay": wait.String()})
	return ErrVerificationFailed
}

// Succeed clears the record for identity after a verified credential.
func (g *Guard) Succeed(ctx context.Context, identity string) error {
	if !g.ready() {
		return ErrGuardNotReady
	}
	if err := attempt.ValidateIdentity(identity); err != nil {
		return err
	}

	g.metrics.Inc(MetricVerificationSuccess)
	if err := g.store.Reset(ctx, identity); err != nil {
		g.metrics.Inc(MetricStoreUnavailable)
		g.logger.Warn().Err(err).Msg("attempt store reset failed")
		return err
	}
	g.metrics.Inc(MetricIdentityReset)
	g.emitAudit(ctx, auditEventVerificationSucceeded, Decision{Identity: identity}, true, nil, nil)
	return nil
}

// Protect runs the full flow around verify: Check, then verify only if
// allowed, then Succeed or Fail. A verify error is returned as is and does
// not count as a failed credential. A failed Succeed after a good credential
// is logged, not returned.
func (g *Guard) Protect(ctx context.Context, a Attempt, verify VerifyFunc) (Decision, error) {
	if verify == nil {
		return Decision{Outcome: OutcomeDenied, Identity: a.Identity}, errors.New("verify func is nil")
	}

	d, err := g.Check(ctx, a)
	if err != nil {
		return d, err
	}

	ok, err := verify(ctx, a.Identity)
	if err != nil {
		return d, err
	}
	if !ok {
		return d, g.Fail(ctx, d)
	}

	if err := g.Succeed(ctx, a.Identity); err != nil {
		g.logger.Warn().Err(err).Msg("clearing attempts after success failed")
	}
	return d, nil
}

// Status reports where identity stands without recording an attempt. States
// describe what the next attempt would face.
func (g *Guard) Status(ctx context.Context, identity string) (Status, error) {
	if !g.ready() {
		return Status{}, ErrGuardNotReady
	}
	if err := attempt.ValidateIdentity(identity); err != nil {
		return Status{}, err
	}

	rec, ok, err := g.store.Get(ctx, identity)
	if err != nil {
		return Status{Identity: identity}, err
	}

	st := Status{Identity: identity, State: StateFresh}
	if !ok || rec.Count == 0 || g.window.ShouldReset(g.now(), rec) {
		return st, nil
	}

	st.Count = rec.Count
	st.WindowStart = rec.WindowStart
	st.LastAttempt = rec.LastAttempt
	st.ResetAt = g.window.ResetAt(rec)

	switch {
	case rec.Count >= g.policy.LockThreshold:
		st.State = StateLocked
	case rec.Count >= g.policy.ChallengeThreshold:
		st.State = StateChallengeRequired
	default:
		st.State = StateCounting
	}
	return st, nil
}

// ResetIdentity clears one identity, e.g. after an operator unlock.
func (g *Guard) ResetIdentity(ctx context.Context, identity string) error {
	if !g.ready() {
		return ErrGuardNotReady
	}
	if err := attempt.ValidateIdentity(identity); err != nil {
		return err
	}
	if err := g.store.Reset(ctx, identity); err != nil {
		g.metrics.Inc(MetricStoreUnavailable)
		return err
	}
	g.metrics.Inc(MetricIdentityReset)
	g.logger.Info().Str("identity", identity).Msg("identity reset")
	g.emitAudit(ctx, auditEventIdentityReset, Decision{Identity: identity}, true, nil, map[string]string{"source": "operator"})
	return nil
}

// ResetAll clears every identity.
func (g *Guard) ResetAll(ctx context.Context) error {
	if !g.ready() {
		return ErrGuardNotReady
	}
	if err := g.store.Clear(ctx); err != nil {
		g.metrics.Inc(MetricStoreUnavailable)
		return err
	}
	g.logger.Info().Msg("all identities reset")
	g.emitAudit(ctx, auditEventIdentitiesCleared, Decision{}, true, nil, nil)
	return nil
}

// Sweep evicts idle records now instead of waiting for the sweeper.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	if !g.ready() {
		return 0, ErrGuardNotReady
	}
	idle := g.config.Eviction.IdleThreshold
	if idle < g.window.Horizon() {
		idle = g.window.Horizon()
	}
	n, err := g.store.EvictIdle(ctx, g.now(), idle)
	g.onSweep(n, err)
	return n, err
}

func (g *Guard) onSweep(evicted int, err error) {
	g.metrics.Add(MetricIdentityEvicted, uint64(max(evicted, 0)))
	if err != nil && !isContextErr(err) {
		g.metrics.Inc(MetricStoreUnavailable)
	}
}

// Close stops the sweeper, flushes audit events, and releases the log file.
// Calls after the first are no-ops; other methods return ErrGuardNotReady.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		g.sweeper.Stop()
		g.audit.Close()
		if g.logCloser != nil {
			_ = g.logCloser.Close()
		}
	})
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (g *Guard) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot returns current counters plus the number of tracked identities.
func (g *Guard) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	s := g.metrics.Snapshot()
	if g.metrics.Enabled() && g.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if n, err := g.store.Len(ctx); err == nil {
			s.TrackedIdentities = int64(n)
		}
	}
	return s
}

// Config returns a copy of the resolved configuration.
func (g *Guard) Config() Config {
	if g == nil {
		return Config{}
	}
	return cloneConfig(g.config)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
