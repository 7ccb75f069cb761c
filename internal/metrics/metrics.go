// Package metrics keeps lock-free in-process counters for the engine's
// flow outcomes. A Registry snapshot is cheap enough to poll from a scrape
// handler or a periodic reporter.
package metrics

import "sync/atomic"

// MetricID identifies one counter.
type MetricID uint8

const (
	LoginSuccess MetricID = iota
	LoginFailure
	LoginRateLimited
	CSRFRejected
	RegisterSuccess
	RegisterFailure
	ResetRequested
	ResetCodeVerified
	ResetCompleted
	MailFailure
	ProfileUpdated
	TokenRejected

	metricCount
)

var names = [metricCount]string{
	LoginSuccess:      "login_success",
	LoginFailure:      "login_failure",
	LoginRateLimited:  "login_rate_limited",
	CSRFRejected:      "csrf_rejected",
	RegisterSuccess:   "register_success",
	RegisterFailure:   "register_failure",
	ResetRequested:    "reset_requested",
	ResetCodeVerified: "reset_code_verified",
	ResetCompleted:    "reset_completed",
	MailFailure:       "mail_failure",
	ProfileUpdated:    "profile_updated",
	TokenRejected:     "token_rejected",
}

// Name returns the stable string name of id, or "" for an unknown id.
func Name(id MetricID) string {
	if id >= metricCount {
		return ""
	}
	return names[id]
}

// Registry holds the counters. A nil Registry accepts and drops all calls.
type Registry struct {
	counters [metricCount]atomic.Uint64
}

// NewRegistry returns a zeroed registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Inc increments one counter.
func (r *Registry) Inc(id MetricID) {
	if r == nil || id >= metricCount {
		return
	}
	r.counters[id].Add(1)
}

// Snapshot returns the current counter values keyed by id.
func (r *Registry) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricCount)
	if r == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out[id] = r.counters[id].Load()
	}
	return out
}
