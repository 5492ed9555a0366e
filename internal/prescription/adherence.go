package prescription

import (
	"context"
	"time"

	"github.com/clinicware/medtrack/internal/shared/metrics"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// DoseLogStore is the storage contract the adherence calculator and the dose
// window guard consume. Intervals are closed-open: [start, end).
type DoseLogStore interface {
	// CountDoseLogs counts dose logs for a prescription inside the interval.
	// A nil wasTaken counts every log; otherwise only logs with the given
	// taken flag.
	CountDoseLogs(ctx context.Context, prescriptionID types.ID, wasTaken *bool, start, end time.Time) (int, error)

	// ExistsDoseLog reports whether any dose log for the prescription falls
	// inside the interval, regardless of its taken flag.
	ExistsDoseLog(ctx context.Context, prescriptionID types.ID, start, end time.Time) (bool, error)

	// InsertDoseLog inserts a dose log. A day-bucket uniqueness collision is
	// reported via errors.ErrConflict so callers can treat it as an
	// idempotent no-op.
	InsertDoseLog(ctx context.Context, log *DoseLog) error
}

// Calculator derives a 0-100 adherence percentage for a prescription from
// its active date range, expected dose frequency, and recorded taken doses.
//
// Every degenerate input degrades to a defined number instead of an error:
// the score is purely informational and must never break a display path.
type Calculator struct {
	store DoseLogStore
}

// NewCalculator creates an adherence calculator.
func NewCalculator(store DoseLogStore) *Calculator {
	return &Calculator{store: store}
}

// Adherence computes the score as of the reference day (normally today).
//
//   - no start date: 0.0, there is no expectation to score against
//   - expectation window is start..min(end, today) inclusive; a future end
//     date never projects expectation beyond today
//   - end before start (inconsistent data): 0.0
//   - expected = inclusive day count * max(frequency, 1)
//   - taken = stored logs with was_taken inside [day(start), day(end+1))
//   - result = taken/expected * 100, unrounded
func (c *Calculator) Adherence(ctx context.Context, rx *Prescription, today types.Date) (float64, error) {
	metrics.RecordAdherenceComputation()

	if rx.StartDate == nil {
		return 0.0, nil
	}
	start := *rx.StartDate

	end := today
	if rx.EndDate != nil && rx.EndDate.Before(today) {
		end = *rx.EndDate
	}

	if end.Before(start) {
		return 0.0, nil
	}

	days := start.DaysUntil(end) + 1

	freq := rx.FrequencyPerDay
	if freq < 1 {
		freq = 1
	}

	expected := days * freq
	if expected <= 0 {
		return 0.0, nil
	}

	taken := true
	count, err := c.store.CountDoseLogs(ctx, rx.ID, &taken,
		start.Time(), end.AddDays(1).Time())
	if err != nil {
		return 0.0, err
	}

	return float64(count) / float64(expected) * 100.0, nil
}
