package prescription

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

func TestMayLogDose(t *testing.T) {
	rxID := types.NewID()
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastLog  time.Duration // how long before now the last log was written
		wasTaken bool
		allowed  bool
	}{
		{"no prior log", 0, false, true},
		{"log 23 hours ago blocks", -23 * time.Hour, true, false},
		{"log 25 hours ago allows", -25 * time.Hour, true, true},
		{"log exactly 24 hours ago blocks", -24 * time.Hour, true, false},
		{"missed log inside window also blocks", -2 * time.Hour, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeDoseStore{}
			if tt.lastLog != 0 {
				store.logs = []DoseLog{{
					ID:             types.NewID(),
					PrescriptionID: rxID,
					TakenAt:        now.Add(tt.lastLog),
					WasTaken:       tt.wasTaken,
				}}
			}

			guard := NewGuard(store, 24)
			ok, err := guard.MayLogDose(context.Background(), rxID, now)
			if err != nil {
				t.Fatalf("MayLogDose returned error: %v", err)
			}
			if ok != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v", tt.allowed, ok)
			}
		})
	}
}

func TestMayLogDoseIgnoresOtherPrescriptions(t *testing.T) {
	rxID := types.NewID()
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeDoseStore{logs: []DoseLog{{
		ID:             types.NewID(),
		PrescriptionID: types.NewID(),
		TakenAt:        now.Add(-time.Hour),
		WasTaken:       true,
	}}}

	ok, err := NewGuard(store, 24).MayLogDose(context.Background(), rxID, now)
	if err != nil {
		t.Fatalf("MayLogDose returned error: %v", err)
	}
	if !ok {
		t.Error("Expected another prescription's log not to block")
	}
}

func TestLogTakenRejectedTooSoon(t *testing.T) {
	rxID := types.NewID()
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeDoseStore{logs: []DoseLog{{
		ID:             types.NewID(),
		PrescriptionID: rxID,
		TakenAt:        now.Add(-3 * time.Hour),
		WasTaken:       true,
	}}}

	rx := &Prescription{ID: rxID, FrequencyPerDay: 1}
	log, err := NewGuard(store, 24).LogTaken(context.Background(), rx, now, nil)
	if log != nil {
		t.Error("Expected no log to be written")
	}
	if !stderrors.Is(err, errors.ErrTooSoon) {
		t.Errorf("Expected ErrTooSoon, got %v", err)
	}
	if len(store.logs) != 1 {
		t.Errorf("Expected store unchanged, got %d logs", len(store.logs))
	}
}

func TestLogTakenSuccess(t *testing.T) {
	rxID := types.NewID()
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeDoseStore{}
	rx := &Prescription{ID: rxID, FrequencyPerDay: 1}

	log, err := NewGuard(store, 24).LogTaken(context.Background(), rx, now, nil)
	if err != nil {
		t.Fatalf("LogTaken returned error: %v", err)
	}
	if log == nil {
		t.Fatal("Expected a dose log")
	}
	if !log.WasTaken {
		t.Error("Expected was_taken=true")
	}
	if !log.TakenAt.Equal(now) {
		t.Errorf("Expected taken_at %v, got %v", now, log.TakenAt)
	}
	if len(store.logs) != 1 {
		t.Errorf("Expected 1 stored log, got %d", len(store.logs))
	}
}

// A uniqueness collision during insert means a concurrent request already
// logged the dose; the caller sees a nil log with a nil error.
func TestLogTakenConflictIsIdempotentSuccess(t *testing.T) {
	rxID := types.NewID()
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeDoseStore{insertErr: errors.Conflict("dose already logged for this day")}
	rx := &Prescription{ID: rxID, FrequencyPerDay: 1}

	log, err := NewGuard(store, 24).LogTaken(context.Background(), rx, now, nil)
	if err != nil {
		t.Errorf("Expected nil error on conflict, got %v", err)
	}
	if log != nil {
		t.Error("Expected nil log on conflict")
	}
}

func TestLogMissedSkipsGuard(t *testing.T) {
	rxID := types.NewID()
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	// A recent log would block a taken entry, but missed entries are
	// written without the rolling-window check.
	store := &fakeDoseStore{logs: []DoseLog{{
		ID:             types.NewID(),
		PrescriptionID: rxID,
		TakenAt:        now.Add(-2 * time.Hour),
		WasTaken:       true,
	}}}

	rx := &Prescription{ID: rxID, FrequencyPerDay: 1}
	log, err := NewGuard(store, 24).LogMissed(context.Background(), rx, now, nil)
	if err != nil {
		t.Fatalf("LogMissed returned error: %v", err)
	}
	if log == nil {
		t.Fatal("Expected a dose log")
	}
	if log.WasTaken {
		t.Error("Expected was_taken=false")
	}
}

func TestLogMissedConflictIsIdempotentSuccess(t *testing.T) {
	store := &fakeDoseStore{insertErr: errors.Conflict("dose already logged for this day")}
	rx := &Prescription{ID: types.NewID(), FrequencyPerDay: 1}
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	log, err := NewGuard(store, 24).LogMissed(context.Background(), rx, now, nil)
	if err != nil {
		t.Errorf("Expected nil error on conflict, got %v", err)
	}
	if log != nil {
		t.Error("Expected nil log on conflict")
	}
}

func TestNewGuardDefaultWindow(t *testing.T) {
	guard := NewGuard(&fakeDoseStore{}, 0)
	if guard.windowHours != 24 {
		t.Errorf("Expected default window of 24 hours, got %d", guard.windowHours)
	}
}
