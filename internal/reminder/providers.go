package reminder

import (
	"context"
	"fmt"
	"sync"

	"github.com/clinicware/medtrack/internal/shared/types"
)

// ConsoleProvider prints reminders to stdout. Used in development when no
// real delivery channel is wired up.
type ConsoleProvider struct {
	prefix string
}

// NewConsoleProvider creates a console logging provider
func NewConsoleProvider(prefix string) *ConsoleProvider {
	return &ConsoleProvider{prefix: prefix}
}

// Send logs the reminder to the console
func (p *ConsoleProvider) Send(ctx context.Context, r *Reminder) error {
	fmt.Printf("\n[%s REMINDER]\n", p.prefix)
	fmt.Printf("  Prescription: %s\n", r.PrescriptionID)
	fmt.Printf("  Recipient:    %s (%s)\n", r.PatientName, r.PatientID)
	fmt.Printf("  Subject:      %s\n", r.Subject)
	fmt.Printf("  Body:         %s\n", r.Body)
	fmt.Println()
	return nil
}

// MockProvider records reminders in memory for tests.
type MockProvider struct {
	mu         sync.RWMutex
	sent       map[types.ID]*Reminder
	failOnSend bool
}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{sent: make(map[types.ID]*Reminder)}
}

// Send records the reminder (mock implementation)
func (p *MockProvider) Send(ctx context.Context, r *Reminder) error {
	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[r.PrescriptionID] = r
	return nil
}

// SetFailOnSend sets whether Send should fail
func (p *MockProvider) SetFailOnSend(fail bool) {
	p.failOnSend = fail
}

// Sent returns all recorded reminders
func (p *MockProvider) Sent() []*Reminder {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Reminder, 0, len(p.sent))
	for _, r := range p.sent {
		result = append(result, r)
	}
	return result
}

// SentTo reports whether a reminder was recorded for the prescription
func (p *MockProvider) SentTo(prescriptionID types.ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sent[prescriptionID]
	return ok
}
