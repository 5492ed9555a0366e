package patient

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/clinicware/medtrack/internal/shared/crypto"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// fakeFinder is an in-memory CandidateFinder for tests.
type fakeFinder struct {
	patients []Patient
}

func (f *fakeFinder) FindByLast4AndDOB(ctx context.Context, last4 string, dob types.Date) ([]Patient, error) {
	var out []Patient
	for _, p := range f.patients {
		if p.SSNLast4 != last4 {
			continue
		}
		if p.DOB == nil || !p.DOB.Equal(dob) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func testPatient(t *testing.T, hasher crypto.Hasher, first string, dob types.Date, credential string) Patient {
	t.Helper()

	cred := types.NationalIDCredential(credential)
	last4, err := cred.Last4()
	if err != nil {
		t.Fatalf("test credential invalid: %v", err)
	}
	hash, err := hasher.Hash(cred.Raw())
	if err != nil {
		t.Fatalf("failed to hash test credential: %v", err)
	}
	return Patient{
		ID:          types.NewID(),
		FirstName:   first,
		LastName:    "Doe",
		DOB:         &dob,
		SSNLast4:    last4,
		SSNFullHash: &hash,
	}
}

func TestResolveSingleMatch(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	dob := types.NewDate(1990, time.May, 15)

	john := testPatient(t, hasher, "John", dob, "123-45-6789")
	// Shares last4 and DOB but was captured with a different full identifier.
	jane := testPatient(t, hasher, "Jane", dob, "987-65-6789")

	resolver := NewIdentityResolver(&fakeFinder{patients: []Patient{jane, john}}, hasher)

	resolved, err := resolver.Resolve(context.Background(), "123-45-6789", dob)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolved.ID != john.ID {
		t.Errorf("Expected %s, got %s", john.ID, resolved.ID)
	}
}

func TestResolveNoVerifiedCandidate(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	dob := types.NewDate(1990, time.May, 15)

	john := testPatient(t, hasher, "John", dob, "123-45-6789")
	resolver := NewIdentityResolver(&fakeFinder{patients: []Patient{john}}, hasher)

	tests := []struct {
		name       string
		credential string
		dob        types.Date
	}{
		{"wrong full identifier with same last4", "999-99-6789", dob},
		{"wrong date of birth", "123-45-6789", types.NewDate(1991, time.May, 15)},
		{"no candidates at all", "111-11-1111", dob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), tt.credential, tt.dob)
			if !stderrors.Is(err, errors.ErrNotFound) {
				t.Fatalf("Expected not-found, got %v", err)
			}

			// Every no-match is byte-identical regardless of whether any
			// candidate records existed.
			appErr := &errors.AppError{}
			if !stderrors.As(err, &appErr) {
				t.Fatal("Expected an AppError")
			}
			if appErr.Code != "NO_MATCH" {
				t.Errorf("Expected code NO_MATCH, got %s", appErr.Code)
			}
			if appErr.Details != nil {
				t.Errorf("Expected no details, got %v", appErr.Details)
			}
		})
	}
}

// The stored hash covers the raw credential exactly as captured, separators
// included. Typing the same digits in a different format fails verification.
func TestResolveRawCredentialIsNotNormalized(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	dob := types.NewDate(1990, time.May, 15)

	john := testPatient(t, hasher, "John", dob, "123-45-6789")
	resolver := NewIdentityResolver(&fakeFinder{patients: []Patient{john}}, hasher)

	_, err := resolver.Resolve(context.Background(), "123456789", dob)
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Expected not-found for reformatted credential, got %v", err)
	}
}

func TestResolveAmbiguousMatch(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	dob := types.NewDate(1990, time.May, 15)

	// Two records captured with the same full identifier (a data-entry
	// duplicate): both verify, neither may be auto-selected.
	a := testPatient(t, hasher, "John", dob, "123-45-6789")
	b := testPatient(t, hasher, "Jon", dob, "123-45-6789")

	resolver := NewIdentityResolver(&fakeFinder{patients: []Patient{a, b}}, hasher)

	_, err := resolver.Resolve(context.Background(), "123-45-6789", dob)
	if !stderrors.Is(err, errors.ErrAmbiguous) {
		t.Fatalf("Expected ambiguous, got %v", err)
	}
}

func TestResolveSkipsCandidatesWithoutHash(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	dob := types.NewDate(1990, time.May, 15)

	john := testPatient(t, hasher, "John", dob, "123-45-6789")
	noHash := Patient{
		ID:        types.NewID(),
		FirstName: "Ghost",
		LastName:  "Doe",
		DOB:       &dob,
		SSNLast4:  "6789",
	}

	resolver := NewIdentityResolver(&fakeFinder{patients: []Patient{noHash, john}}, hasher)

	resolved, err := resolver.Resolve(context.Background(), "123-45-6789", dob)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolved.ID != john.ID {
		t.Errorf("Expected %s, got %s", john.ID, resolved.ID)
	}
}

func TestResolveRejectsShortCredential(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	resolver := NewIdentityResolver(&fakeFinder{}, hasher)

	tests := []string{"678", "6-7-8", "", "abc"}
	for _, credential := range tests {
		t.Run(credential, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), credential, types.NewDate(1990, time.May, 15))
			if !stderrors.Is(err, errors.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	hasher := crypto.NewBcryptHasher(4)
	dob := types.NewDate(1990, time.May, 15)

	john := testPatient(t, hasher, "John", dob, "123-45-6789")
	jane := testPatient(t, hasher, "Jane", dob, "987-65-6789")
	resolver := NewIdentityResolver(&fakeFinder{patients: []Patient{jane, john}}, hasher)

	for i := 0; i < 3; i++ {
		resolved, err := resolver.Resolve(context.Background(), "123-45-6789", dob)
		if err != nil {
			t.Fatalf("Resolve returned error on attempt %d: %v", i, err)
		}
		if resolved.ID != john.ID {
			t.Errorf("Attempt %d: expected %s, got %s", i, john.ID, resolved.ID)
		}
	}
}
