// Package guard holds the pure coordination predicate the embedded scheduler
// uses to arbitrate with the standalone billing daemon. It is the
// lease/staleness test that stands in for a distributed lock: the only shared
// state is the daemon's heartbeat timestamp in the store.
package guard

import "time"

// WarningThreshold is how old a daemon heartbeat may be before the embedded
// scheduler takes over. It must exceed the daemon's billing interval (60
// minutes by default) plus margin for transient restarts, so a healthy
// daemon is never preempted mid-interval.
const WarningThreshold = 90 * time.Minute

// ShouldEmbeddedRun reports whether the in-process scheduler may run a
// billing pass. A nil heartbeat means no daemon ever registered; a heartbeat
// within WarningThreshold means a daemon is alive and the scheduler defers.
func ShouldEmbeddedRun(now time.Time, heartbeatAt *time.Time) bool {
	if heartbeatAt == nil {
		return true
	}
	return now.Sub(*heartbeatAt) > WarningThreshold
}

// IsStale reports whether a heartbeat is older than WarningThreshold. Used
// by the status projection; staleness is data, not an error.
func IsStale(now, heartbeatAt time.Time) bool {
	return now.Sub(heartbeatAt) > WarningThreshold
}
