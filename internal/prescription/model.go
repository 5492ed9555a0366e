package prescription

import (
	"time"

	"github.com/clinicware/medtrack/internal/shared/types"
)

// Prescription ties one patient to one medication with a dosing schedule.
type Prescription struct {
	ID           types.ID `json:"id"`
	PatientID    types.ID `json:"patient_id"`
	MedicationID types.ID `json:"medication_id"`

	Dosage          string      `json:"dosage"`
	FrequencyPerDay int         `json:"frequency_per_day"`
	StartDate       *types.Date `json:"start_date,omitempty"`
	EndDate         *types.Date `json:"end_date,omitempty"`
	Notes           *string     `json:"notes,omitempty"`

	ReminderEnabled      bool        `json:"reminder_enabled"`
	ReminderLastSentDate *types.Date `json:"reminder_last_sent_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveOn reports whether the prescription's date window covers the given
// day. A missing start or end bound is treated as open on that side.
func (p Prescription) ActiveOn(day types.Date) bool {
	if p.StartDate != nil && day.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && day.After(*p.EndDate) {
		return false
	}
	return true
}

// HasBoundedWindow reports whether both start and end dates are set and the
// given day falls inside them. Reminder enablement requires a bounded,
// currently active window.
func (p Prescription) HasBoundedWindow(day types.Date) bool {
	return p.StartDate != nil && p.EndDate != nil &&
		!day.Before(*p.StartDate) && !day.After(*p.EndDate)
}

// DoseLog is a single recorded event (taken or missed) for a prescription.
// Rows are append-only from this service's perspective.
type DoseLog struct {
	ID             types.ID  `json:"id"`
	PrescriptionID types.ID  `json:"prescription_id"`
	TakenAt        time.Time `json:"taken_at"`
	WasTaken       bool      `json:"was_taken"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreatePrescriptionRequest is the staff request to prescribe.
type CreatePrescriptionRequest struct {
	PatientID       types.ID    `json:"patient_id"`
	MedicationID    types.ID    `json:"medication_id"`
	Dosage          string      `json:"dosage"`
	FrequencyPerDay int         `json:"frequency_per_day"`
	StartDate       *types.Date `json:"start_date,omitempty"`
	EndDate         *types.Date `json:"end_date,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
}

// LogDoseRequest is the payload for recording a dose event.
type LogDoseRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// PrescriptionView is a prescription joined with its medication and score,
// as shown on the patient's medication list.
type PrescriptionView struct {
	Prescription
	MedicationName     string  `json:"medication_name"`
	MedicationStrength *string `json:"medication_strength,omitempty"`
	ActiveToday        bool    `json:"active_today"`
	Adherence          float64 `json:"adherence"`
}
