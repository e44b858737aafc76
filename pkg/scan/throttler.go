package scan

import (
	"sync"
	"time"
)

const (
	// minimumProgressInterval is the floor on the throttler's time trigger.
	minimumProgressInterval = 100 * time.Millisecond
	// minimumProgressByteTrigger is the floor on the throttler's byte
	// trigger.
	minimumProgressByteTrigger = 64 * 1024
	// defaultProgressInterval is used when Options.ProgressInterval is zero.
	defaultProgressInterval = time.Second
	// defaultProgressByteTrigger is used when Options.ProgressByteTrigger is
	// zero.
	defaultProgressByteTrigger = 8 * 1024 * 1024
)

// progressThrottler converts a stream of per-entry advances into a coarse,
// user-paced stream of ProgressSnapshots. It is safe for concurrent use by
// multiple worker goroutines.
type progressThrottler struct {
	// lock serializes access to the throttler's decision state. It is held
	// only for the O(1) decision, never across I/O.
	lock sync.Mutex
	// interval is the minimum wall-time between emissions.
	interval time.Duration
	// byteTrigger is the minimum byte delta (combined with half the
	// interval) that can also trigger an emission. A value of
	// math.MaxUint64 disables the byte trigger.
	byteTrigger uint64
	// start is the wall-clock time at which the scan began.
	start time.Time
	// armed indicates whether the first call has been processed; the first
	// call never emits.
	armed bool
	// lastEmit is the wall-clock time of the last emission.
	lastEmit time.Time
	// lastEmitBytes is the processed-byte count as of the last emission.
	lastEmitBytes uint64
}

// newProgressThrottler constructs a throttler using the given interval and
// byte trigger, clamping both to their documented floors. A zero interval or
// byte trigger selects the package defaults before clamping.
func newProgressThrottler(interval time.Duration, byteTrigger uint64, start time.Time) *progressThrottler {
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	if interval < minimumProgressInterval {
		interval = minimumProgressInterval
	}
	if byteTrigger == 0 {
		byteTrigger = defaultProgressByteTrigger
	}
	if byteTrigger < minimumProgressByteTrigger {
		byteTrigger = minimumProgressByteTrigger
	}
	return &progressThrottler{
		interval:    interval,
		byteTrigger: byteTrigger,
		start:       start,
	}
}

// consider evaluates whether enough wall-time or bytes have elapsed since the
// last emission to justify a new ProgressSnapshot. It returns the snapshot
// and true if one should be emitted, or a zero value and false otherwise.
func (t *progressThrottler) consider(now time.Time, entries, bytes uint64) (ProgressSnapshot, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.armed {
		t.armed = true
		t.lastEmit = now
		t.lastEmitBytes = bytes
		return ProgressSnapshot{}, false
	}

	sinceLastEmit := now.Sub(t.lastEmit)
	byteDelta := bytes - t.lastEmitBytes

	timeTriggered := sinceLastEmit >= t.interval
	byteTriggered := t.byteTrigger != disabledByteTrigger &&
		sinceLastEmit >= t.interval/2 &&
		byteDelta >= t.byteTrigger

	if !timeTriggered && !byteTriggered {
		return ProgressSnapshot{}, false
	}

	snapshot := t.emitLocked(now, entries, bytes, sinceLastEmit, byteDelta)
	return snapshot, true
}

// disabledByteTrigger is the sentinel value for a fully-disabled byte
// trigger, per §4.4's "may be disabled by setting it to its maximum".
const disabledByteTrigger = ^uint64(0)

// emitLocked computes a snapshot and resets the throttler's emission
// bookkeeping. The caller must hold t.lock.
func (t *progressThrottler) emitLocked(now time.Time, entries, bytes uint64, elapsed time.Duration, byteDelta uint64) ProgressSnapshot {
	var throughput float64 = -1
	if elapsedNs := elapsed.Nanoseconds(); elapsedNs > 0 {
		throughput = float64(byteDelta) * 1e9 / float64(elapsedNs)
	}

	t.lastEmit = now
	t.lastEmitBytes = bytes

	return ProgressSnapshot{
		TimestampMs:                 now.Sub(t.start).Milliseconds(),
		ProcessedEntries:            entries,
		ProcessedBytes:              bytes,
		EstimatedCompletionRatio:    -1,
		RecentThroughputBytesPerSec: throughput,
	}
}

// forceEmit unconditionally produces a terminal snapshot with
// EstimatedCompletionRatio set to 1.0. It is the only path that marks
// completion.
func (t *progressThrottler) forceEmit(now time.Time, entries, bytes uint64) ProgressSnapshot {
	t.lock.Lock()
	defer t.lock.Unlock()

	elapsed := now.Sub(t.lastEmit)
	byteDelta := bytes - t.lastEmitBytes
	snapshot := t.emitLocked(now, entries, bytes, elapsed, byteDelta)
	snapshot.EstimatedCompletionRatio = 1.0
	return snapshot
}
