// internal/app/hour_notifier.go
package app

import "sync"

// HourBoundaryNotifier remembers the last hour bucket it has seen and decides
// whether a new observation is a crossing. The zero value starts untracked:
// the first observation only sets the baseline.
type HourBoundaryNotifier struct {
	mu    sync.Mutex
	last  int64
	known bool
}

// Observe records bucket and reports whether it strictly exceeds the stored
// value. Comparison and update happen under one lock, so concurrent callers
// with the same bucket see at most one crossing. A lower bucket (clock moved
// backward) never lowers the stored value.
func (n *HourBoundaryNotifier) Observe(bucket int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.known {
		n.last = bucket
		n.known = true
		return false
	}
	if bucket <= n.last {
		return false
	}
	n.last = bucket
	return true
}

// LastHour returns the stored bucket and whether a baseline exists yet.
func (n *HourBoundaryNotifier) LastHour() (int64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last, n.known
}
