// Package legacy imports patient and medication records from the clinic's
// retired EHR, which still runs on SQL Server. The import is one-way and
// incremental: each poll picks up rows modified since the previous poll and
// writes them into the primary store with deterministic IDs, so re-imports
// collapse into conflicts instead of duplicates.
package legacy

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/google/uuid"

	"github.com/clinicware/medtrack/internal/medication"
	"github.com/clinicware/medtrack/internal/patient"
	"github.com/clinicware/medtrack/internal/shared/config"
	"github.com/clinicware/medtrack/internal/shared/crypto"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/metrics"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Namespace for deriving stable IDs from legacy primary keys.
var idNamespace = uuid.MustParse("8f1c9e2a-4b3d-4f60-9a71-5c2e8d0b6f17")

// PatientWriter is the slice of the patient repository the importer needs.
type PatientWriter interface {
	Create(ctx context.Context, p *patient.Patient) error
}

// MedicationWriter is the slice of the medication repository the importer needs.
type MedicationWriter interface {
	Create(ctx context.Context, m *medication.Medication) error
}

// Importer polls the legacy EHR and copies changed records into the
// primary store.
type Importer struct {
	db     *sql.DB
	cfg    config.LegacyConfig
	hasher crypto.Hasher

	patients    PatientWriter
	medications MedicationWriter

	mu       sync.Mutex
	running  bool
	lastPoll time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewImporter creates a legacy EHR importer
func NewImporter(cfg config.LegacyConfig, hasher crypto.Hasher, patients PatientWriter, medications MedicationWriter) *Importer {
	return &Importer{
		cfg:         cfg,
		hasher:      hasher,
		patients:    patients,
		medications: medications,
	}
}

// Start connects to the legacy database and begins polling
func (i *Importer) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return fmt.Errorf("importer already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		i.cfg.Host, i.cfg.Port, i.cfg.Database, i.cfg.User, i.cfg.Password,
	)
	if i.cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping legacy database: %w", err)
	}

	i.db = db
	i.running = true
	i.lastPoll = time.Now().Add(-i.cfg.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel

	i.wg.Add(1)
	go i.pollLoop(pollCtx)

	return nil
}

// Stop stops polling and closes the legacy connection
func (i *Importer) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return nil
	}

	if i.cancel != nil {
		i.cancel()
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if i.db != nil {
		i.db.Close()
	}

	i.running = false
	return nil
}

// Health checks legacy database connectivity
func (i *Importer) Health(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return fmt.Errorf("importer not running")
	}
	return i.db.PingContext(ctx)
}

func (i *Importer) pollLoop(ctx context.Context) {
	defer i.wg.Done()

	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.mu.Lock()
			since := i.lastPoll
			i.lastPoll = time.Now()
			i.mu.Unlock()

			if err := i.importMedications(ctx, since); err != nil {
				log.Printf("legacy medication import failed: %v", err)
			}
			if err := i.importPatients(ctx, since); err != nil {
				log.Printf("legacy patient import failed: %v", err)
			}
		}
	}
}

// importPatients copies patients modified since the watermark. The legacy
// system stores the national identifier in the clear; it is hashed on the
// way in and only the last four digits survive in plaintext.
func (i *Importer) importPatients(ctx context.Context, since time.Time) error {
	query := `
		SELECT PatientID, FirstName, LastName, DateOfBirth, SSN, Email, Phone
		FROM dbo.Patients
		WHERE LastModified > @since
		ORDER BY LastModified ASC`

	rows, err := i.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query legacy patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			legacyID, firstName, lastName string
			dob                           sql.NullTime
			ssn, email, phone             sql.NullString
		)
		if err := rows.Scan(&legacyID, &firstName, &lastName, &dob, &ssn, &email, &phone); err != nil {
			return fmt.Errorf("failed to scan legacy patient: %w", err)
		}

		p := &patient.Patient{
			ID:        stableID("patient", legacyID),
			FirstName: firstName,
			LastName:  lastName,
		}
		if dob.Valid {
			d := types.DateOf(dob.Time)
			p.DOB = &d
		}
		if email.Valid && email.String != "" {
			p.Email = &email.String
		}
		if phone.Valid && phone.String != "" {
			p.Phone = &phone.String
		}
		if ssn.Valid && ssn.String != "" {
			cred := types.NationalIDCredential(ssn.String)
			last4, err := cred.Last4()
			if err != nil {
				log.Printf("legacy patient %s has malformed identifier, importing without it", legacyID)
			} else {
				hash, err := i.hasher.Hash(cred.Raw())
				if err != nil {
					return fmt.Errorf("failed to hash legacy identifier: %w", err)
				}
				p.SSNLast4 = last4
				p.SSNFullHash = &hash
			}
		}

		if err := i.patients.Create(ctx, p); err != nil {
			if stderrors.Is(err, errors.ErrConflict) {
				continue // already imported
			}
			return fmt.Errorf("failed to import legacy patient %s: %w", legacyID, err)
		}
		metrics.RecordLegacyImport("patient", 1)
	}

	return rows.Err()
}

func (i *Importer) importMedications(ctx context.Context, since time.Time) error {
	query := `
		SELECT MedicationID, Name, Strength
		FROM dbo.Medications
		WHERE LastModified > @since
		ORDER BY LastModified ASC`

	rows, err := i.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query legacy medications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			legacyID, name string
			strength       sql.NullString
		)
		if err := rows.Scan(&legacyID, &name, &strength); err != nil {
			return fmt.Errorf("failed to scan legacy medication: %w", err)
		}

		m := &medication.Medication{
			ID:   stableID("medication", legacyID),
			Name: name,
		}
		if strength.Valid && strength.String != "" {
			m.Strength = &strength.String
		}

		if err := i.medications.Create(ctx, m); err != nil {
			if stderrors.Is(err, errors.ErrConflict) {
				continue
			}
			return fmt.Errorf("failed to import legacy medication %s: %w", legacyID, err)
		}
		metrics.RecordLegacyImport("medication", 1)
	}

	return rows.Err()
}

// stableID derives the same UUID for the same legacy row on every import.
func stableID(kind, legacyID string) types.ID {
	return types.ID(uuid.NewSHA1(idNamespace, []byte(kind+":"+legacyID)).String())
}
