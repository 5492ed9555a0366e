package reminder

import (
	"context"
	"fmt"

	"github.com/clinicware/medtrack/internal/shared/types"
)

// Reminder is one due dose reminder, resolved from a prescription and the
// patient's contact channels, ready for delivery.
type Reminder struct {
	PrescriptionID types.ID
	PatientID      types.ID
	PatientName    string
	Email          *string
	Phone          *string

	MedicationName string
	Dosage         string
	Day            types.Date

	Subject string
	Body    string
}

// Provider delivers a reminder over one channel.
type Provider interface {
	Send(ctx context.Context, r *Reminder) error
}

// Source yields the prescriptions due a reminder and records delivery. The
// sent marker is what keeps a prescription from being reminded twice in one
// day; a failed delivery leaves it unmarked so the next scan retries it.
type Source interface {
	RemindersDue(ctx context.Context, day types.Date) ([]Reminder, error)
	MarkReminderSent(ctx context.Context, prescriptionID types.ID, day types.Date) error
}

func compose(r *Reminder) {
	r.Subject = fmt.Sprintf("Medication reminder: %s", r.MedicationName)
	r.Body = fmt.Sprintf(
		"Hi %s, this is your reminder to take %s (%s) today.",
		r.PatientName, r.MedicationName, r.Dosage,
	)
}
