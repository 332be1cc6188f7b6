package rauth

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricSignupSuccess counts completed signups.
	MetricSignupSuccess MetricID = iota
	// MetricSignupRolledBack counts signups undone after a failed
	// verification dispatch.
	MetricSignupRolledBack
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected credentials.
	MetricLoginFailure
	// MetricMFARequired counts logins stopped for a missing one time
	// password.
	MetricMFARequired
	// MetricMFAFailure counts rejected one time passwords.
	MetricMFAFailure
	// MetricTokenReplay counts tokens rejected as revoked or already
	// consumed.
	MetricTokenReplay
	// MetricSessionCreated counts opened sessions.
	MetricSessionCreated
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricEmailVerified counts confirmed email verifications.
	MetricEmailVerified
	// MetricPasswordResetRequest counts issued reset tokens.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirm counts completed password resets.
	MetricPasswordResetConfirm
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricSignupSuccess:        "signup_success",
	MetricSignupRolledBack:     "signup_rolled_back",
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricMFARequired:          "mfa_required",
	MetricMFAFailure:           "mfa_failure",
	MetricTokenReplay:          "token_replay",
	MetricSessionCreated:       "session_created",
	MetricLogout:               "logout",
	MetricEmailVerified:        "email_verified",
	MetricPasswordResetRequest: "password_reset_request",
	MetricPasswordResetConfirm: "password_reset_confirm",
}

// Name returns the stable snake_case label of the metric.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine counters. All methods are safe for
// concurrent use.
type Metrics struct {
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the given counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
