package patient

import (
	"time"

	"github.com/clinicware/medtrack/internal/shared/types"
)

// Patient is an identity record for a person the clinic treats.
//
// The full national identifier is never persisted: the record carries only
// its last four digits (indexed, not unique on its own) and a salted one-way
// hash of the full string, which is nil until the identifier is captured.
type Patient struct {
	ID        types.ID    `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	DOB       *types.Date `json:"dob,omitempty"`
	SSNLast4  string      `json:"ssn_last4,omitempty"`

	// SSNFullHash is the salted digest of the full identifier, nil when not
	// yet captured. Never exposed in JSON.
	SSNFullHash *string `json:"-"`

	// Contact channels for dose reminders, either may be absent.
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the patient's display name.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// CreatePatientRequest is the staff request to register a patient.
// SSNFull is hashed immediately and discarded; only last4 + hash persist.
type CreatePatientRequest struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	DOB       *types.Date `json:"dob,omitempty"`
	SSNFull   string      `json:"ssn_full,omitempty"`
	Email     *string     `json:"email,omitempty"`
	Phone     *string     `json:"phone,omitempty"`
}

// LoginRequest is the patient self-service login payload.
type LoginRequest struct {
	SSNFull string     `json:"ssn_full"`
	DOB     types.Date `json:"dob"`
}

// LoginResponse carries the session token for a resolved identity.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	PatientID types.ID  `json:"patient_id"`
	Name      string    `json:"name"`
}
