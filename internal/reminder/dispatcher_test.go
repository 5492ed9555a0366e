package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/clinicware/medtrack/internal/audit"
	"github.com/clinicware/medtrack/internal/shared/types"
	"github.com/clinicware/medtrack/internal/timeutil"
)

// fakeSource is an in-memory Source for tests.
type fakeSource struct {
	due    []Reminder
	marked map[types.ID]types.Date
}

func newFakeSource(due ...Reminder) *fakeSource {
	return &fakeSource{due: due, marked: make(map[types.ID]types.Date)}
}

func (f *fakeSource) RemindersDue(ctx context.Context, day types.Date) ([]Reminder, error) {
	return f.due, nil
}

func (f *fakeSource) MarkReminderSent(ctx context.Context, prescriptionID types.ID, day types.Date) error {
	f.marked[prescriptionID] = day
	return nil
}

func strPtr(s string) *string { return &s }

func testReminder(email, phone *string) Reminder {
	r := Reminder{
		PrescriptionID: types.NewID(),
		PatientID:      types.NewID(),
		PatientName:    "John Doe",
		Email:          email,
		Phone:          phone,
		MedicationName: "Lisinopril",
		Dosage:         "10 mg",
		Day:            types.NewDate(2024, time.June, 15),
	}
	compose(&r)
	return r
}

func newTestDispatcher(source Source, email, sms Provider) *Dispatcher {
	clock := timeutil.FixedClock{Instant: time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)}
	return NewDispatcher(source, email, sms, clock, audit.Nop{}, DefaultConfig())
}

func TestDeliverPrefersEmail(t *testing.T) {
	r := testReminder(strPtr("john@example.com"), strPtr("+1-555-0100"))
	source := newFakeSource(r)
	email := NewMockProvider()
	sms := NewMockProvider()

	d := newTestDispatcher(source, email, sms)
	d.deliver(context.Background(), &r)

	if !email.SentTo(r.PrescriptionID) {
		t.Error("Expected delivery over email")
	}
	if sms.SentTo(r.PrescriptionID) {
		t.Error("Expected no SMS when email is available")
	}
	if _, ok := source.marked[r.PrescriptionID]; !ok {
		t.Error("Expected reminder marked sent")
	}
}

func TestDeliverFallsBackToSMS(t *testing.T) {
	r := testReminder(nil, strPtr("+1-555-0100"))
	source := newFakeSource(r)
	email := NewMockProvider()
	sms := NewMockProvider()

	d := newTestDispatcher(source, email, sms)
	d.deliver(context.Background(), &r)

	if !sms.SentTo(r.PrescriptionID) {
		t.Error("Expected delivery over SMS")
	}
	if _, ok := source.marked[r.PrescriptionID]; !ok {
		t.Error("Expected reminder marked sent")
	}
}

func TestDeliverSkipsWithoutContactChannel(t *testing.T) {
	r := testReminder(nil, nil)
	source := newFakeSource(r)
	email := NewMockProvider()
	sms := NewMockProvider()

	d := newTestDispatcher(source, email, sms)
	d.deliver(context.Background(), &r)

	if email.SentTo(r.PrescriptionID) || sms.SentTo(r.PrescriptionID) {
		t.Error("Expected no delivery without a contact channel")
	}
	if len(source.marked) != 0 {
		t.Error("Expected skipped reminder left unmarked")
	}
}

// A failed delivery leaves the sent marker untouched so the next scan
// retries the reminder.
func TestDeliverFailureLeavesUnmarked(t *testing.T) {
	r := testReminder(strPtr("john@example.com"), nil)
	source := newFakeSource(r)
	email := NewMockProvider()
	email.SetFailOnSend(true)

	d := newTestDispatcher(source, email, NewMockProvider())
	d.deliver(context.Background(), &r)

	if len(source.marked) != 0 {
		t.Error("Expected failed reminder left unmarked")
	}
}

func TestScanEnqueuesDueReminders(t *testing.T) {
	a := testReminder(strPtr("a@example.com"), nil)
	b := testReminder(strPtr("b@example.com"), nil)
	source := newFakeSource(a, b)

	d := newTestDispatcher(source, NewMockProvider(), NewMockProvider())
	d.scan(context.Background())

	if got := len(d.reminderCh); got != 2 {
		t.Errorf("Expected 2 queued reminders, got %d", got)
	}
}

func TestComposeMessage(t *testing.T) {
	r := testReminder(nil, nil)

	if r.Subject != "Medication reminder: Lisinopril" {
		t.Errorf("Unexpected subject: %s", r.Subject)
	}
	if r.Body == "" {
		t.Error("Expected a non-empty body")
	}
}
