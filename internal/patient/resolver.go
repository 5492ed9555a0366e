package patient

import (
	"context"
	"log"

	"github.com/clinicware/medtrack/internal/shared/crypto"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// CandidateFinder narrows patients by partial identifying input.
type CandidateFinder interface {
	FindByLast4AndDOB(ctx context.Context, last4 string, dob types.Date) ([]Patient, error)
}

// IdentityResolver authenticates a patient from partial, non-enumerable
// credentials: the last four digits of the national identifier plus date of
// birth select a candidate set, and the full raw credential is verified
// against each candidate's stored one-way hash. The resolution must land on
// exactly one identity or fail.
type IdentityResolver struct {
	finder CandidateFinder
	hasher crypto.Hasher
}

// NewIdentityResolver creates an identity resolver.
func NewIdentityResolver(finder CandidateFinder, hasher crypto.Hasher) *IdentityResolver {
	return &IdentityResolver{finder: finder, hasher: hasher}
}

// Resolve disambiguates the credential/DOB pair to at most one patient.
//
// The hash check runs against the raw credential exactly as typed, separators
// included, while the candidate key is computed from the digit-stripped form.
// A patient who types the identifier differently than when it was captured
// can therefore fail verification on the correct account; that literal-string
// comparison is the contract and is not normalized away here.
//
// Outcomes:
//   - exactly one verified candidate: that patient, nil error
//   - zero verified: a generic no-match failure, identical whether or not the
//     last4/DOB pair selected any records (no account enumeration signal)
//   - more than one verified: an ambiguous-match failure for staff follow-up;
//     never auto-selects
func (r *IdentityResolver) Resolve(ctx context.Context, rawCredential string, dob types.Date) (*Patient, error) {
	cred := types.NationalIDCredential(rawCredential)

	last4, err := cred.Last4()
	if err != nil {
		return nil, errors.Validation("invalid national ID", map[string]string{
			"ssn_full": err.Error(),
		})
	}

	candidates, err := r.finder.FindByLast4AndDOB(ctx, last4, dob)
	if err != nil {
		return nil, errors.Wrap(err, "candidate lookup failed")
	}

	var verified []Patient
	for _, candidate := range candidates {
		if candidate.SSNFullHash == nil {
			continue
		}
		if r.hasher.Verify(*candidate.SSNFullHash, cred.Raw()) {
			verified = append(verified, candidate)
		}
	}

	switch len(verified) {
	case 1:
		return &verified[0], nil
	case 0:
		return nil, errors.NoMatch()
	default:
		// Staff-facing signal only; the login surface reports this to the
		// patient exactly like a no-match.
		log.Printf("identity resolution ambiguous: %d verified candidates for last4=%s", len(verified), last4)
		return nil, errors.Ambiguous("multiple patients verified against the supplied credential")
	}
}
