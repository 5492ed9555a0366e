package prescription

import (
	"context"
	"testing"
	"time"

	"github.com/clinicware/medtrack/internal/shared/types"
)

// fakeDoseStore is an in-memory DoseLogStore for tests.
type fakeDoseStore struct {
	logs      []DoseLog
	insertErr error
}

func (f *fakeDoseStore) CountDoseLogs(ctx context.Context, prescriptionID types.ID, wasTaken *bool, start, end time.Time) (int, error) {
	count := 0
	for _, l := range f.logs {
		if l.PrescriptionID != prescriptionID {
			continue
		}
		if l.TakenAt.Before(start) || !l.TakenAt.Before(end) {
			continue
		}
		if wasTaken != nil && l.WasTaken != *wasTaken {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeDoseStore) ExistsDoseLog(ctx context.Context, prescriptionID types.ID, start, end time.Time) (bool, error) {
	for _, l := range f.logs {
		if l.PrescriptionID != prescriptionID {
			continue
		}
		if !l.TakenAt.Before(start) && l.TakenAt.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDoseStore) InsertDoseLog(ctx context.Context, log *DoseLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.logs = append(f.logs, *log)
	return nil
}

func datePtr(year int, month time.Month, day int) *types.Date {
	d := types.NewDate(year, month, day)
	return &d
}

func takenLogsOn(prescriptionID types.ID, days ...time.Time) []DoseLog {
	logs := make([]DoseLog, 0, len(days))
	for _, d := range days {
		logs = append(logs, DoseLog{
			ID:             types.NewID(),
			PrescriptionID: prescriptionID,
			TakenAt:        d,
			WasTaken:       true,
		})
	}
	return logs
}

func TestAdherenceScore(t *testing.T) {
	rxID := types.NewID()
	today := types.NewDate(2024, time.January, 10)

	// 15 taken doses spread across the first ten days of January.
	var instants []time.Time
	base := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		instants = append(instants, base.AddDate(0, 0, i))
	}
	for i := 0; i < 5; i++ {
		instants = append(instants, base.AddDate(0, 0, i).Add(12*time.Hour))
	}

	tests := []struct {
		name     string
		rx       Prescription
		logs     []DoseLog
		expected float64
	}{
		{
			name: "partial adherence",
			rx: Prescription{
				ID:              rxID,
				FrequencyPerDay: 2,
				StartDate:       datePtr(2024, time.January, 1),
			},
			logs:     takenLogsOn(rxID, instants...),
			expected: 75.0, // 15 taken / (10 days * 2 per day)
		},
		{
			name: "future end date clamps to today",
			rx: Prescription{
				ID:              rxID,
				FrequencyPerDay: 2,
				StartDate:       datePtr(2024, time.January, 1),
				EndDate:         datePtr(2024, time.February, 1),
			},
			logs:     takenLogsOn(rxID, instants...),
			expected: 75.0,
		},
		{
			name: "no start date",
			rx: Prescription{
				ID:              rxID,
				FrequencyPerDay: 2,
			},
			logs:     takenLogsOn(rxID, instants...),
			expected: 0.0,
		},
		{
			name: "end before start",
			rx: Prescription{
				ID:              rxID,
				FrequencyPerDay: 2,
				StartDate:       datePtr(2024, time.January, 5),
				EndDate:         datePtr(2024, time.January, 2),
			},
			logs:     takenLogsOn(rxID, instants...),
			expected: 0.0,
		},
		{
			name: "zero frequency floors to one",
			rx: Prescription{
				ID:              rxID,
				FrequencyPerDay: 0,
				StartDate:       datePtr(2024, time.January, 1),
			},
			logs:     takenLogsOn(rxID, instants[:5]...),
			expected: 50.0, // 5 taken / (10 days * 1)
		},
		{
			name: "no logs",
			rx: Prescription{
				ID:              rxID,
				FrequencyPerDay: 2,
				StartDate:       datePtr(2024, time.January, 1),
			},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeDoseStore{logs: tt.logs}
			calc := NewCalculator(store)

			score, err := calc.Adherence(context.Background(), &tt.rx, today)
			if err != nil {
				t.Fatalf("Adherence returned error: %v", err)
			}
			if score != tt.expected {
				t.Errorf("Expected %.1f, got %.1f", tt.expected, score)
			}
		})
	}
}

func TestAdherenceIgnoresMissedAndForeignLogs(t *testing.T) {
	rxID := types.NewID()
	otherID := types.NewID()
	today := types.NewDate(2024, time.March, 2)

	store := &fakeDoseStore{logs: []DoseLog{
		{ID: types.NewID(), PrescriptionID: rxID, TakenAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC), WasTaken: true},
		{ID: types.NewID(), PrescriptionID: rxID, TakenAt: time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC), WasTaken: false},
		{ID: types.NewID(), PrescriptionID: otherID, TakenAt: time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC), WasTaken: true},
	}}

	rx := &Prescription{
		ID:              rxID,
		FrequencyPerDay: 1,
		StartDate:       datePtr(2024, time.March, 1),
	}

	score, err := NewCalculator(store).Adherence(context.Background(), rx, today)
	if err != nil {
		t.Fatalf("Adherence returned error: %v", err)
	}
	// 1 taken out of 2 expected; the missed log and the other
	// prescription's log do not count.
	if score != 50.0 {
		t.Errorf("Expected 50.0, got %.1f", score)
	}
}

func TestAdherenceCanExceedHundred(t *testing.T) {
	rxID := types.NewID()
	today := types.NewDate(2024, time.May, 1)

	// Three taken logs on a one-day, once-daily prescription.
	base := time.Date(2024, time.May, 1, 6, 0, 0, 0, time.UTC)
	store := &fakeDoseStore{logs: takenLogsOn(rxID, base, base.Add(time.Hour), base.Add(2*time.Hour))}

	rx := &Prescription{
		ID:              rxID,
		FrequencyPerDay: 1,
		StartDate:       datePtr(2024, time.May, 1),
	}

	score, err := NewCalculator(store).Adherence(context.Background(), rx, today)
	if err != nil {
		t.Fatalf("Adherence returned error: %v", err)
	}
	if score != 300.0 {
		t.Errorf("Expected 300.0, got %.1f", score)
	}
}
