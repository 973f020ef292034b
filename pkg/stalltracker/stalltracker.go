/*
Package stalltracker implements the mutable ordinal-progress state machine
from spec §4.4: for each (node, layer) key it remembers the last ordinal
seen and when it last changed, and answers "how long has this key been
stalled" on demand.

A Tracker is owned exclusively by one Monitor Loop instance (spec §5's
shared-resource policy) and is not safe to share across loops without an
external mutex — mirroring the teacher's containerHealthMonitor.status,
which is likewise owned by a single goroutine's loop.
*/
package stalltracker

import (
	"time"

	"github.com/cuemby/beacon/pkg/types"
)

// Key identifies one tracked ordinal stream. A synthetic Node value (see
// engine.StallTrackerKey) is used for the cluster-wide liveness signal
// described in spec §4.4 step 2.
type Key struct {
	Node  string
	Layer types.Layer
}

// entry is the tracker's state for one Key.
type entry struct {
	lastOrdinal   int64
	lastChangedAt time.Time
}

// UpdateResult reports what Update observed. Advanced is true both on the
// first-ever observation of a key and on a strict ordinal increase — per
// spec §9's open question, this implementation resolves the ambiguity by
// treating "never seen before" as "not stalled", and callers that care
// about the distinction check FirstObservation.
type UpdateResult struct {
	Advanced         bool
	FirstObservation bool
	LastOrdinal      int64
	LastChangedAt    time.Time
}

// Tracker is the mutable (node, layer) -> (lastOrdinal, lastChangedAt) map
// described in spec §3.
type Tracker struct {
	entries map[Key]*entry
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[Key]*entry)}
}

// Update applies one OrdinalSnapshot's worth of evidence for key. It never
// decreases lastOrdinal (spec §3 invariant 3): a strictly larger ordinal
// advances the key and resets its clock; anything else leaves state
// untouched.
func (t *Tracker) Update(key Key, ordinal int64, now time.Time) UpdateResult {
	e, ok := t.entries[key]
	if !ok {
		e = &entry{lastOrdinal: ordinal, lastChangedAt: now}
		t.entries[key] = e
		return UpdateResult{Advanced: true, FirstObservation: true, LastOrdinal: ordinal, LastChangedAt: now}
	}

	if ordinal > e.lastOrdinal {
		e.lastOrdinal = ordinal
		e.lastChangedAt = now
		return UpdateResult{Advanced: true, LastOrdinal: ordinal, LastChangedAt: now}
	}

	return UpdateResult{Advanced: false, LastOrdinal: e.lastOrdinal, LastChangedAt: e.lastChangedAt}
}

// StaleSecs returns how long key has gone without an ordinal advance. ok
// is false if key has never been observed.
func (t *Tracker) StaleSecs(key Key, now time.Time) (secs float64, ok bool) {
	e, exists := t.entries[key]
	if !exists {
		return 0, false
	}
	return now.Sub(e.lastChangedAt).Seconds(), true
}

// LastOrdinal returns the last ordinal recorded for key.
func (t *Tracker) LastOrdinal(key Key) (int64, bool) {
	e, ok := t.entries[key]
	if !ok {
		return 0, false
	}
	return e.lastOrdinal, true
}

// ClusterStalled reports whether every tracked key on layer has been
// stale for at least threshold, per spec §4.4's cluster-wide stall rule.
// It returns false if no key on layer is tracked at all.
func (t *Tracker) ClusterStalled(layer types.Layer, now time.Time, threshold time.Duration) bool {
	found := false
	for key, e := range t.entries {
		if key.Layer != layer {
			continue
		}
		found = true
		if now.Sub(e.lastChangedAt) < threshold {
			return false
		}
	}
	return found
}
