package timeutil

import (
	"testing"
	"time"
)

func TestRollingWindowLength(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		hours int
	}{
		{"Midday", time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC), 24},
		{"Just after midnight", time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC), 24},
		{"Across month boundary", time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC), 24},
		{"Shorter window", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := RollingWindow(tt.now, tt.hours)

			if got := w.Duration(); got != time.Duration(tt.hours)*time.Hour {
				t.Errorf("Expected %dh window, got %v", tt.hours, got)
			}
			if !w.End.Equal(tt.now) {
				t.Errorf("Expected upper bound %v, got %v", tt.now, w.End)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	w := RollingWindow(now, 24)

	tests := []struct {
		name     string
		instant  time.Time
		expected bool
	}{
		{"Exactly at start", w.Start, true},
		{"Inside", now.Add(-23 * time.Hour), true},
		{"Just before end", now.Add(-time.Nanosecond), true},
		{"Exactly at end", now, false},
		{"Before start", now.Add(-25 * time.Hour), false},
		{"After end", now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.instant); got != tt.expected {
				t.Errorf("Contains(%v) = %v, expected %v", tt.instant, got, tt.expected)
			}
		})
	}
}

func TestLocalDayBounds(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	// 2024-03-10 02:00 UTC is still 2024-03-09 21:00 in New York.
	now := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	w := LocalDayBounds(now, ny)

	wantStart := time.Date(2024, 3, 9, 5, 0, 0, 0, time.UTC) // midnight EST = 05:00 UTC
	if !w.Start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, w.Start)
	}

	// DST began at 02:00 local on 2024-03-10, so this local day is 23 hours.
	if got := w.Duration(); got != 23*time.Hour {
		t.Errorf("Expected 23h DST-transition day, got %v", got)
	}

	if !w.Contains(now) {
		t.Error("Expected bounds to contain the reference instant")
	}
}

func TestLocalDayBoundsUTC(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	w := LocalDayBounds(now, time.UTC)

	if !w.Start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start %v", w.Start)
	}
	if got := w.Duration(); got != 24*time.Hour {
		t.Errorf("Expected 24h day, got %v", got)
	}
}

func TestDayBucketUTC(t *testing.T) {
	tests := []struct {
		name     string
		instant  time.Time
		expected time.Time
	}{
		{
			"Midday truncates to midnight",
			time.Date(2024, 3, 10, 15, 45, 12, 0, time.UTC),
			time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			"Non-UTC instant buckets by UTC date",
			time.Date(2024, 3, 10, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayBucketUTC(tt.instant); !got.Equal(tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	c := FixedClock{Instant: instant}

	if !c.Now().Equal(instant) {
		t.Errorf("Expected %v, got %v", instant, c.Now())
	}
}
