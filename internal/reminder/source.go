package reminder

import (
	"context"

	"github.com/clinicware/medtrack/internal/medication"
	"github.com/clinicware/medtrack/internal/patient"
	"github.com/clinicware/medtrack/internal/prescription"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// PrescriptionStore is the slice of the prescription repository the reminder
// source needs.
type PrescriptionStore interface {
	ListRemindersDue(ctx context.Context, day types.Date) ([]prescription.Prescription, error)
	MarkReminderSent(ctx context.Context, id types.ID, sent types.Date) error
}

// PatientDirectory resolves patient contact details.
type PatientDirectory interface {
	Get(ctx context.Context, id types.ID) (*patient.Patient, error)
}

// MedicationDirectory resolves medication display names.
type MedicationDirectory interface {
	Get(ctx context.Context, id types.ID) (*medication.Medication, error)
}

// RepositorySource assembles deliverable reminders from the prescription,
// patient, and medication repositories.
type RepositorySource struct {
	prescriptions PrescriptionStore
	patients      PatientDirectory
	medications   MedicationDirectory
}

// NewRepositorySource creates a repository-backed reminder source
func NewRepositorySource(rx PrescriptionStore, pa PatientDirectory, med MedicationDirectory) *RepositorySource {
	return &RepositorySource{prescriptions: rx, patients: pa, medications: med}
}

// RemindersDue resolves each due prescription into a reminder with the
// patient's contact channels and a composed message.
func (s *RepositorySource) RemindersDue(ctx context.Context, day types.Date) ([]Reminder, error) {
	due, err := s.prescriptions.ListRemindersDue(ctx, day)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due reminders")
	}

	reminders := make([]Reminder, 0, len(due))
	for _, rx := range due {
		pa, err := s.patients.Get(ctx, rx.PatientID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve reminder patient")
		}
		med, err := s.medications.Get(ctx, rx.MedicationID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve reminder medication")
		}

		r := Reminder{
			PrescriptionID: rx.ID,
			PatientID:      pa.ID,
			PatientName:    pa.FullName(),
			Email:          pa.Email,
			Phone:          pa.Phone,
			MedicationName: med.Name,
			Dosage:         rx.Dosage,
			Day:            day,
		}
		compose(&r)
		reminders = append(reminders, r)
	}

	return reminders, nil
}

// MarkReminderSent records delivery on the prescription row
func (s *RepositorySource) MarkReminderSent(ctx context.Context, prescriptionID types.ID, day types.Date) error {
	return s.prescriptions.MarkReminderSent(ctx, prescriptionID, day)
}
