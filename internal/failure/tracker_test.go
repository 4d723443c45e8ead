package failure

import (
	"testing"
	"time"
)

func newTestTracker(max int, maxAge time.Duration, at *time.Time) *Tracker {
	tracker := NewTracker(max, maxAge)
	tracker.now = func() time.Time { return *at }
	return tracker
}

func TestTracker_SuccessPopsOneOldest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := newTestTracker(10, time.Hour, &now)

	for i := 0; i < 3; i++ {
		tracker.Record(Status{OK: false, Kind: "generic"})
		now = now.Add(time.Minute)
	}

	tracker.Record(Status{OK: true})

	summary := tracker.Summary()
	if summary.Count != 2 {
		t.Errorf("Summary().Count = %v, want 2 (one success pops one failure)", summary.Count)
	}
}

func TestTracker_CapacityEvictsOldest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := newTestTracker(3, time.Hour, &now)

	for i := 0; i < 5; i++ {
		tracker.Record(Status{OK: false})
		now = now.Add(time.Minute)
	}

	summary := tracker.Summary()
	if summary.Count != 3 {
		t.Errorf("Summary().Count = %v, want 3", summary.Count)
	}
	// the two oldest were evicted, so the oldest survivor is 3 minutes old
	if summary.OldestAge != 3*time.Minute {
		t.Errorf("Summary().OldestAge = %v, want 3m", summary.OldestAge)
	}
}

func TestTracker_WindowDropsAged(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := newTestTracker(10, 10*time.Minute, &now)

	tracker.Record(Status{OK: false})
	now = now.Add(11 * time.Minute)
	tracker.Record(Status{OK: false})

	summary := tracker.Summary()
	if summary.Count != 1 {
		t.Errorf("Summary().Count = %v, want 1 (aged failure dropped on next record)", summary.Count)
	}
	if summary.OldestAge != 0 {
		t.Errorf("Summary().OldestAge = %v, want 0", summary.OldestAge)
	}
}

func TestTracker_EmptySummary(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := newTestTracker(10, time.Hour, &now)

	summary := tracker.Summary()
	if summary.Count != 0 || summary.OldestAge != 0 {
		t.Errorf("Summary() = %+v, want zero value", summary)
	}

	// success on an empty tracker is a no-op
	tracker.Record(Status{OK: true})
	if tracker.Summary().Count != 0 {
		t.Errorf("Summary().Count = %v, want 0", tracker.Summary().Count)
	}
}

func TestTracker_Saturated(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := newTestTracker(10, time.Hour, &now)

	tests := []struct {
		name      string
		failures  int
		threshold int
		want      bool
	}{
		{name: "below threshold", failures: 2, threshold: 3, want: false},
		{name: "at threshold", failures: 3, threshold: 3, want: true},
		{name: "above threshold", failures: 5, threshold: 3, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker.failures = nil
			for i := 0; i < tt.failures; i++ {
				tracker.Record(Status{OK: false})
			}
			if got := tracker.Saturated(tt.threshold); got != tt.want {
				t.Errorf("Saturated(%d) = %v, want %v", tt.threshold, got, tt.want)
			}
		})
	}
}
