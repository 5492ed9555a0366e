package prescription

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Repository provides database operations for prescriptions and dose logs
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new prescription repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new prescription
func (r *Repository) Create(ctx context.Context, p *Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, patient_id, medication_id, dosage, frequency_per_day,
			start_date, end_date, notes, reminder_enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.PatientID, p.MedicationID, p.Dosage, p.FrequencyPerDay,
		p.StartDate, p.EndDate, p.Notes, p.ReminderEnabled,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create prescription")
	}

	return nil
}

// Get retrieves a prescription by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Prescription, error) {
	query := `
		SELECT id, patient_id, medication_id, dosage, frequency_per_day,
			start_date, end_date, notes, reminder_enabled, reminder_last_sent_date,
			created_at, updated_at
		FROM prescriptions
		WHERE id = $1`

	p := &Prescription{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.PatientID, &p.MedicationID, &p.Dosage, &p.FrequencyPerDay,
		&p.StartDate, &p.EndDate, &p.Notes, &p.ReminderEnabled, &p.ReminderLastSentDate,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("prescription", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get prescription")
	}

	return p, nil
}

// ListByPatient lists a patient's prescriptions joined with their medication,
// ordered by medication name.
func (r *Repository) ListByPatient(ctx context.Context, patientID types.ID, limit, offset int) ([]PrescriptionView, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions WHERE patient_id = $1`, patientID,
	).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count prescriptions")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT p.id, p.patient_id, p.medication_id, p.dosage, p.frequency_per_day,
			p.start_date, p.end_date, p.notes, p.reminder_enabled, p.reminder_last_sent_date,
			p.created_at, p.updated_at,
			m.name, m.strength
		FROM prescriptions p
		JOIN medications m ON m.id = p.medication_id
		WHERE p.patient_id = $1
		ORDER BY m.name
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list prescriptions")
	}
	defer rows.Close()

	var views []PrescriptionView
	for rows.Next() {
		var v PrescriptionView
		if err := rows.Scan(
			&v.ID, &v.PatientID, &v.MedicationID, &v.Dosage, &v.FrequencyPerDay,
			&v.StartDate, &v.EndDate, &v.Notes, &v.ReminderEnabled, &v.ReminderLastSentDate,
			&v.CreatedAt, &v.UpdatedAt,
			&v.MedicationName, &v.MedicationStrength,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan prescription")
		}
		views = append(views, v)
	}

	return views, total, rows.Err()
}

// SetReminderEnabled flips the reminder flag for a prescription
func (r *Repository) SetReminderEnabled(ctx context.Context, id types.ID, enabled bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE prescriptions SET reminder_enabled = $2, updated_at = NOW() WHERE id = $1`,
		id, enabled,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update reminder flag")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("prescription", id.String())
	}
	return nil
}

// MarkReminderSent records the date a reminder was last sent
func (r *Repository) MarkReminderSent(ctx context.Context, id types.ID, sent types.Date) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE prescriptions SET reminder_last_sent_date = $2, updated_at = NOW() WHERE id = $1`,
		id, sent,
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark reminder sent")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("prescription", id.String())
	}
	return nil
}

// --- DoseLogStore implementation ---

// CountDoseLogs counts dose logs inside [start, end). A nil wasTaken counts
// every log regardless of its taken flag.
func (r *Repository) CountDoseLogs(ctx context.Context, prescriptionID types.ID, wasTaken *bool, start, end time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM dose_logs
		WHERE prescription_id = $1
		  AND taken_at >= $2 AND taken_at < $3
		  AND ($4::boolean IS NULL OR was_taken = $4)`

	var count int
	err := r.pool.QueryRow(ctx, query, prescriptionID, start, end, wasTaken).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count dose logs")
	}
	return count, nil
}

// ExistsDoseLog reports whether any dose log falls inside [start, end),
// taken or missed alike.
func (r *Repository) ExistsDoseLog(ctx context.Context, prescriptionID types.ID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM dose_logs
			WHERE prescription_id = $1
			  AND taken_at >= $2 AND taken_at < $3
		)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, prescriptionID, start, end).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check dose window")
	}
	return exists, nil
}

// InsertDoseLog inserts a dose log row. A unique violation on the
// (prescription, UTC day) backstop index surfaces as errors.ErrConflict.
func (r *Repository) InsertDoseLog(ctx context.Context, log *DoseLog) error {
	query := `
		INSERT INTO dose_logs (id, prescription_id, taken_at, was_taken, notes)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		log.ID, log.PrescriptionID, log.TakenAt, log.WasTaken, log.Notes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.Conflict("dose already logged for this day")
		}
		return errors.Wrap(err, "failed to insert dose log")
	}

	return nil
}

// ListDoseLogsByPatient lists a patient's dose history, newest first.
func (r *Repository) ListDoseLogsByPatient(ctx context.Context, patientID types.ID, limit int) ([]DoseLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT d.id, d.prescription_id, d.taken_at, d.was_taken, d.notes, d.created_at
		FROM dose_logs d
		JOIN prescriptions p ON p.id = d.prescription_id
		WHERE p.patient_id = $1
		ORDER BY d.taken_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list dose history")
	}
	defer rows.Close()

	var logs []DoseLog
	for rows.Next() {
		var d DoseLog
		if err := rows.Scan(&d.ID, &d.PrescriptionID, &d.TakenAt, &d.WasTaken, &d.Notes, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan dose log")
		}
		logs = append(logs, d)
	}

	return logs, rows.Err()
}

// ListRemindersDue returns active prescriptions with reminders enabled that
// have not been sent a reminder on or after the given day.
func (r *Repository) ListRemindersDue(ctx context.Context, day types.Date) ([]Prescription, error) {
	query := `
		SELECT id, patient_id, medication_id, dosage, frequency_per_day,
			start_date, end_date, notes, reminder_enabled, reminder_last_sent_date,
			created_at, updated_at
		FROM prescriptions
		WHERE reminder_enabled = TRUE
		  AND start_date <= $1
		  AND (end_date IS NULL OR end_date >= $1)
		  AND (reminder_last_sent_date IS NULL OR reminder_last_sent_date < $1)
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, day)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due reminders")
	}
	defer rows.Close()

	var due []Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(
			&p.ID, &p.PatientID, &p.MedicationID, &p.Dosage, &p.FrequencyPerDay,
			&p.StartDate, &p.EndDate, &p.Notes, &p.ReminderEnabled, &p.ReminderLastSentDate,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan prescription")
		}
		due = append(due, p)
	}

	return due, rows.Err()
}
