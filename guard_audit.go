package goGuard

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventAttemptAllowed        = "attempt_allowed"
	auditEventChallengeRequired     = "challenge_required"
	auditEventAttemptDenied         = "attempt_denied"
	auditEventVerificationFailed    = "verification_failed"
	auditEventVerificationSucceeded = "verification_succeeded"
	auditEventStoreUnavailable      = "store_unavailable"
	auditEventIdentityReset         = "identity_reset"
	auditEventIdentitiesCleared     = "identities_cleared"
)

// AuditErrorCode is the stable error label carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrChallengeRequired  AuditErrorCode = "challenge_required"
	auditErrChallengeInvalid   AuditErrorCode = "challenge_invalid"
	auditErrVerificationFailed AuditErrorCode = "verification_failed"
	auditErrStoreUnavailable   AuditErrorCode = "store_unavailable"
	auditErrInvalidIdentity    AuditErrorCode = "invalid_identity"
	auditErrCancelled          AuditErrorCode = "cancelled"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (g *Guard) auditEnabled() bool {
	return g != nil && g.audit != nil
}

func (g *Guard) emitAudit(ctx context.Context, eventType string, d Decision, success bool, err error, metadata map[string]string) {
	if !g.auditEnabled() {
		return
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: g.now().UTC(),
		EventType: eventType,
		Identity:  d.Identity,
		Count:     d.Count,
		Success:   success,
		RequestID: RequestIDFromContext(ctx),
		Metadata:  metadata,
	}
	if d.Identity != "" || d.Count > 0 {
		event.Outcome = d.Outcome.String()
	}
	if err != nil {
		event.Error = string(auditErrorCode(err))
	}

	g.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrChallengeRequired):
		return auditErrChallengeRequired
	case errors.Is(err, ErrVerificationFailed):
		return auditErrVerificationFailed
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrInvalidIdentity):
		return auditErrInvalidIdentity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCancelled
	default:
		return auditErrInternal
	}
}
