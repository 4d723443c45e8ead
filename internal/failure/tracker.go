package failure

import "time"

// Status is a single recorded outcome.
type Status struct {
	OK   bool
	Kind string
	At   time.Time
}

// Summary describes the tracked failures for observability.
type Summary struct {
	Count     int
	OldestAge time.Duration
}

// Tracker keeps a bounded, age-windowed ring of failure samples and is used
// to compute a rolling failure rate for circuit-breaking. A success pops the
// single oldest failure as a recovery signal. Single-writer discipline is
// expected at the call site; the tracker itself takes no locks.
type Tracker struct {
	failures []Status
	max      int
	maxAge   time.Duration
	now      func() time.Time
}

func NewTracker(max int, maxAge time.Duration) *Tracker {
	return &Tracker{
		max:    max,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Record folds one outcome into the ring. Successes remove the oldest
// tracked failure, if any. Failures first age out stale entries, then push,
// evicting the oldest when the ring is full. Record never fails.
func (t *Tracker) Record(status Status) {
	if status.OK {
		if len(t.failures) > 0 {
			t.failures = t.failures[1:]
		}
		return
	}

	if status.At.IsZero() {
		status.At = t.now()
	}
	t.dropAged()
	if len(t.failures) >= t.max {
		t.failures = t.failures[1:]
	}
	t.failures = append(t.failures, status)
}

func (t *Tracker) dropAged() {
	cutoff := t.now().Add(-t.maxAge)
	i := 0
	for i < len(t.failures) && t.failures[i].At.Before(cutoff) {
		i++
	}
	t.failures = t.failures[i:]
}

// Summary returns the tracked failure count and the age of the oldest one.
func (t *Tracker) Summary() Summary {
	if len(t.failures) == 0 {
		return Summary{}
	}
	return Summary{
		Count:     len(t.failures),
		OldestAge: t.now().Sub(t.failures[0].At),
	}
}

// Saturated reports whether the ring holds at least threshold failures.
func (t *Tracker) Saturated(threshold int) bool {
	return len(t.failures) >= threshold
}
