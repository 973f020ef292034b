package orchestrator

import (
	"time"

	"github.com/cuemby/beacon/pkg/types"
)

// recordBufferCapacity bounds the ring buffer regardless of window length,
// so a pathological restart storm cannot grow it unbounded.
const recordBufferCapacity = 256

// RecordBuffer is the bounded in-memory ring buffer of RestartRecords the
// orchestrator uses for cooldown and rate-limit decisions (spec §3:
// "ring buffer (>= one hour of history)"). Eviction of records older than
// the caller-supplied window happens lazily on query, not on a separate
// timer, so the orchestrator stays single-threaded per spec §5.
type RecordBuffer struct {
	records []types.RestartRecord
}

// NewRecordBuffer creates an empty RecordBuffer.
func NewRecordBuffer() *RecordBuffer {
	return &RecordBuffer{}
}

// Add appends rec, evicting the oldest entry if the buffer is at capacity.
func (b *RecordBuffer) Add(rec types.RestartRecord) {
	b.records = append(b.records, rec)
	if len(b.records) > recordBufferCapacity {
		b.records = b.records[len(b.records)-recordBufferCapacity:]
	}
}

// Since returns every record with StartedAt within window of now, evicting
// anything older from the buffer as a side effect.
func (b *RecordBuffer) Since(now time.Time, window time.Duration) []types.RestartRecord {
	cutoff := now.Add(-window)
	i := 0
	for i < len(b.records) && b.records[i].StartedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.records = b.records[i:]
	}
	return b.records
}

// Last returns the most recently added record, if any.
func (b *RecordBuffer) Last() (types.RestartRecord, bool) {
	if len(b.records) == 0 {
		return types.RestartRecord{}, false
	}
	return b.records[len(b.records)-1], true
}
