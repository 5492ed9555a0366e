package reminder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clinicware/medtrack/internal/audit"
	"github.com/clinicware/medtrack/internal/shared/metrics"
	"github.com/clinicware/medtrack/internal/shared/types"
	"github.com/clinicware/medtrack/internal/timeutil"
)

// Dispatcher periodically scans for due dose reminders and delivers them
// through a worker pool. Delivery prefers email, falls back to SMS, and
// drops reminders for patients with no contact channel.
//
// A reminder is marked sent only after a provider accepts it, so a failed
// delivery is naturally retried on the next scan.
type Dispatcher struct {
	source Source
	email  Provider
	sms    Provider
	clock  timeutil.Clock
	trail  audit.Recorder

	workers      int
	scanInterval time.Duration

	reminderCh chan Reminder

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Config holds dispatcher tuning knobs
type Config struct {
	Workers      int
	ScanInterval time.Duration
	BufferSize   int
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		Workers:      2,
		ScanInterval: time.Hour,
		BufferSize:   256,
	}
}

// NewDispatcher creates a reminder dispatcher
func NewDispatcher(source Source, email, sms Provider, clock timeutil.Clock, trail audit.Recorder, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Hour
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	return &Dispatcher{
		source:       source,
		email:        email,
		sms:          sms,
		clock:        clock,
		trail:        trail,
		workers:      cfg.Workers,
		scanInterval: cfg.ScanInterval,
		reminderCh:   make(chan Reminder, cfg.BufferSize),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the scan loop and delivery workers
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	d.wg.Add(1)
	go d.scanLoop(ctx)

	return nil
}

// Stop stops the dispatcher and waits for in-flight deliveries
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not started")
	}
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()

	return nil
}

func (d *Dispatcher) scanLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.scanInterval)
	defer ticker.Stop()

	// One scan at startup so a restart does not wait a full interval.
	d.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.scan(ctx)
		}
	}
}

// scan enqueues every reminder due today. The queue is bounded; anything
// that does not fit stays unmarked and is picked up by the next scan.
func (d *Dispatcher) scan(ctx context.Context) {
	today := types.DateOf(d.clock.Now())

	due, err := d.source.RemindersDue(ctx, today)
	if err != nil {
		log.Printf("reminder scan failed: %v", err)
		return
	}

	for _, r := range due {
		select {
		case d.reminderCh <- r:
		default:
			return
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case r := <-d.reminderCh:
			d.deliver(ctx, &r)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, r *Reminder) {
	channel, provider := d.route(r)
	if provider == nil {
		metrics.RecordReminder("none", "skipped")
		log.Printf("reminder skipped: patient %s has no contact channel", r.PatientID)
		return
	}

	if err := provider.Send(ctx, r); err != nil {
		metrics.RecordReminder(channel, "failed")
		log.Printf("reminder delivery failed for prescription %s: %v", r.PrescriptionID, err)
		return
	}

	if err := d.source.MarkReminderSent(ctx, r.PrescriptionID, r.Day); err != nil {
		// Delivered but unmarked: the next scan will send a duplicate.
		// Better a duplicate reminder than a silently skipped dose.
		log.Printf("failed to mark reminder sent for prescription %s: %v", r.PrescriptionID, err)
	}

	metrics.RecordReminder(channel, "sent")
	d.trail.Record(ctx, "reminder.delivered", r.PrescriptionID, map[string]any{
		"patient_id": r.PatientID.String(),
		"channel":    channel,
		"day":        r.Day.String(),
	})
}

// route picks the delivery channel: email first, SMS fallback.
func (d *Dispatcher) route(r *Reminder) (string, Provider) {
	if r.Email != nil && *r.Email != "" && d.email != nil {
		return "email", d.email
	}
	if r.Phone != nil && *r.Phone != "" && d.sms != nil {
		return "sms", d.sms
	}
	return "", nil
}
