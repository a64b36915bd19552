package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef binds a guard counter to its exported name.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef binds a guard histogram to its exported name.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricAttemptAllowed, Name: "goguard_attempt_allowed_total", Help: "Attempts allowed through to verification."},
	{ID: goGuard.MetricChallengeRequired, Name: "goguard_challenge_required_total", Help: "Attempts rejected for a missing or invalid challenge."},
	{ID: goGuard.MetricChallengeAccepted, Name: "goguard_challenge_accepted_total", Help: "Challenge-tier attempts that presented an accepted token."},
	{ID: goGuard.MetricChallengeRejected, Name: "goguard_challenge_rejected_total", Help: "Challenge tokens refused by the validator."},
	{ID: goGuard.MetricAttemptDenied, Name: "goguard_attempt_denied_total", Help: "Attempts denied over the lock threshold."},
	{ID: goGuard.MetricVerificationFailure, Name: "goguard_verification_failure_total", Help: "Failed credential verifications."},
	{ID: goGuard.MetricVerificationSuccess, Name: "goguard_verification_success_total", Help: "Successful credential verifications."},
	{ID: goGuard.MetricDelayApplied, Name: "goguard_delay_applied_total", Help: "Failure delays served in full."},
	{ID: goGuard.MetricDelayCancelled, Name: "goguard_delay_cancelled_total", Help: "Failure delays cut short by cancellation."},
	{ID: goGuard.MetricStoreUnavailable, Name: "goguard_store_unavailable_total", Help: "Attempt store errors."},
	{ID: goGuard.MetricFailOpen, Name: "goguard_fail_open_total", Help: "Attempts allowed during a store outage."},
	{ID: goGuard.MetricFailClosed, Name: "goguard_fail_closed_total", Help: "Attempts denied during a store outage."},
	{ID: goGuard.MetricIdentityEvicted, Name: "goguard_identity_evicted_total", Help: "Idle identity records evicted."},
	{ID: goGuard.MetricIdentityReset, Name: "goguard_identity_reset_total", Help: "Identity records cleared by success or operator reset."},
	{ID: goGuard.MetricAuditBackpressure, Name: "goguard_audit_backpressure_total", Help: "Critical audit events that waited for dispatcher queue room."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricDelayLatency, Name: "goguard_delay_seconds", Help: "Failure delay actually served."},
}

// TrackedIdentitiesName is the gauge for records currently held by the store.
const TrackedIdentitiesName = "goguard_tracked_identities"

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goguard_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var HistogramBounds = []string{
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"10",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"10",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
