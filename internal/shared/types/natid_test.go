package types

import (
	"testing"
	"time"
)

func TestNationalIDCredentialLast4(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"dashed", "123-45-6789", "6789", false},
		{"digits only", "123456789", "6789", false},
		{"spaces and dots", "123 45.6789", "6789", false},
		{"exactly four digits", "6789", "6789", false},
		{"three digits", "678", "", true},
		{"empty", "", "", true},
		{"letters only", "abcd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last4, err := NationalIDCredential(tt.input).Last4()
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Last4 returned error: %v", err)
			}
			if last4 != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, last4)
			}
		})
	}
}

// Raw preserves the credential exactly as typed. Two formats of the same
// digits are different raw credentials; hashing and verification depend on
// this.
func TestNationalIDCredentialRawPreservesSeparators(t *testing.T) {
	a := NationalIDCredential("123-45-6789")
	b := NationalIDCredential("123456789")

	if a.Raw() == b.Raw() {
		t.Error("Expected different raw forms for different formats")
	}
	if a.Digits() != b.Digits() {
		t.Errorf("Expected equal digit forms, got '%s' and '%s'", a.Digits(), b.Digits())
	}
}

func TestNationalIDCredentialMasked(t *testing.T) {
	masked := NationalIDCredential("123-45-6789").Masked()
	if masked != "***-**-6789" {
		t.Errorf("Unexpected mask: %s", masked)
	}
}

func TestDateArithmetic(t *testing.T) {
	start := NewDate(2024, time.January, 1)
	end := NewDate(2024, time.January, 10)

	if got := start.DaysUntil(end); got != 9 {
		t.Errorf("Expected 9 days, got %d", got)
	}
	if got := start.AddDays(9); !got.Equal(end) {
		t.Errorf("Expected %s, got %s", end, got)
	}
	if !start.Before(end) || end.Before(start) {
		t.Error("Expected start < end")
	}
}

func TestDateOfUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 on Jan 2 in UTC+5 is still Jan 1 in UTC.
	instant := time.Date(2024, time.January, 2, 2, 30, 0, 0, loc)

	d := DateOf(instant)
	if !d.Equal(NewDate(2024, time.January, 1)) {
		t.Errorf("Expected 2024-01-01, got %s", d)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("1990-05-15")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if !d.Equal(NewDate(1990, time.May, 15)) {
		t.Errorf("Unexpected date: %s", d)
	}

	if _, err := ParseDate("15/05/1990"); err == nil {
		t.Error("Expected an error for unsupported format")
	}
}
