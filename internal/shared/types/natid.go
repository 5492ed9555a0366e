package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// NationalIDCredential is the raw identifier string a patient types at login.
// It may contain separators ("123-45-6789") and is never persisted as-is:
// storage keeps only the last four digits plus a salted one-way hash of the
// full string. Candidate lookup uses the digit-stripped form, while hash
// verification runs against the raw string exactly as typed.
type NationalIDCredential string

// Digits returns the credential with all non-digit characters removed.
func (c NationalIDCredential) Digits() string {
	var b strings.Builder
	for _, r := range string(c) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Last4 returns the last four digits of the credential.
// An error indicates the input has fewer than four digits and is a plain
// validation failure, not a security signal.
func (c NationalIDCredential) Last4() (string, error) {
	digits := c.Digits()
	if len(digits) < 4 {
		return "", fmt.Errorf("national ID must contain at least 4 digits")
	}
	return digits[len(digits)-4:], nil
}

// Raw returns the credential exactly as typed, separators included.
func (c NationalIDCredential) Raw() string {
	return string(c)
}

// Masked returns a display form that exposes only the last four digits.
func (c NationalIDCredential) Masked() string {
	last4, err := c.Last4()
	if err != nil {
		return "****"
	}
	return "***-**-" + last4
}

// Date is a calendar date without a time component, stored and compared in
// UTC. Used for dates of birth and prescription start/end dates.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// ParseDate parses a date in ISO form (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the start-of-day instant for the date in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n calendar days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to other.
// Negative when other precedes d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// Before reports whether d precedes other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d follows other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// Equal reports whether both dates name the same calendar day.
func (d Date) Equal(other Date) bool {
	return d == other
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String returns the ISO form (2006-01-02).
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// Value implements driver.Valuer for database serialization.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time(), nil
}

// Scan implements sql.Scanner for database deserialization.
func (d *Date) Scan(value interface{}) error {
	if value == nil {
		*d = Date{}
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*d = DateOf(v)
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
	return nil
}

// MarshalJSON renders the date as an ISO string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses an ISO date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
