package prescription

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/metrics"
	"github.com/clinicware/medtrack/internal/shared/types"
	"github.com/clinicware/medtrack/internal/timeutil"
)

// Guard prevents a patient from logging a second dose event for the same
// prescription too frequently.
//
// Two duplicate protections exist and deliberately disagree near midnight
// UTC: this rolling-window check is what the write path exercises, while the
// storage layer's one-row-per-UTC-day uniqueness is a coarser backstop. The
// guard looks at *any* existing log inside the window, so a "missed" entry in
// the last 24 hours also blocks a new "taken" attempt.
type Guard struct {
	store       DoseLogStore
	windowHours int
}

// NewGuard creates a dose window guard. windowHours <= 0 defaults to 24.
func NewGuard(store DoseLogStore, windowHours int) *Guard {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &Guard{store: store, windowHours: windowHours}
}

// MayLogDose reports whether a new dose log may be written for the
// prescription right now. false is an informational "too soon", not an error.
func (g *Guard) MayLogDose(ctx context.Context, prescriptionID types.ID, now time.Time) (bool, error) {
	w := timeutil.RollingWindow(now, g.windowHours)

	exists, err := g.store.ExistsDoseLog(ctx, prescriptionID, w.Start, w.End)
	if err != nil {
		return false, errors.Wrap(err, "dose window check failed")
	}
	return !exists, nil
}

// LogTaken records a taken dose behind the guard. The guard check and the
// insert are not one transaction; instead the insert tolerates the storage
// uniqueness backstop, so two racing requests yield exactly one stored row.
//
// A nil log with a nil error means a concurrent request already logged the
// dose: the caller's intent is satisfied and the outcome is a success, not a
// failure. A TooSoon error means the guard itself rejected the attempt.
func (g *Guard) LogTaken(ctx context.Context, rx *Prescription, now time.Time, notes *string) (*DoseLog, error) {
	ok, err := g.MayLogDose(ctx, rx.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.RecordDoseRejection("too_soon")
		return nil, errors.TooSoon("a dose was already logged for this prescription in the last 24 hours")
	}

	log := &DoseLog{
		ID:             types.NewID(),
		PrescriptionID: rx.ID,
		TakenAt:        now.UTC(),
		WasTaken:       true,
		Notes:          notes,
	}

	if err := g.store.InsertDoseLog(ctx, log); err != nil {
		if stderrors.Is(err, errors.ErrConflict) {
			// Lost a race to a concurrent write; the dose is logged either way.
			metrics.RecordDoseRejection("conflict")
			return nil, nil
		}
		return nil, err
	}

	metrics.RecordDoseLog(true)
	return log, nil
}

// LogMissed records a missed dose. Missed entries are written without the
// rolling-window guard, matching the patient-facing flow; the day-bucket
// backstop still collapses duplicates into an idempotent no-op (nil, nil).
func (g *Guard) LogMissed(ctx context.Context, rx *Prescription, now time.Time, notes *string) (*DoseLog, error) {
	log := &DoseLog{
		ID:             types.NewID(),
		PrescriptionID: rx.ID,
		TakenAt:        now.UTC(),
		WasTaken:       false,
		Notes:          notes,
	}

	if err := g.store.InsertDoseLog(ctx, log); err != nil {
		if stderrors.Is(err, errors.ErrConflict) {
			metrics.RecordDoseRejection("conflict")
			return nil, nil
		}
		return nil, err
	}

	metrics.RecordDoseLog(false)
	return log, nil
}
