package prescription

import (
	"context"
	"time"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Dashboard is the clinic-wide monitoring rollup shown to staff.
type Dashboard struct {
	PatientCount      int                `json:"patient_count"`
	MedicationCount   int                `json:"medication_count"`
	PrescriptionCount int                `json:"prescription_count"`
	RecentLogs        []DoseLog          `json:"recent_logs"`
	PatientAdherence  []PatientAdherence `json:"patient_adherence"`
	DueToday          []PrescriptionView `json:"due_today"`
}

// PatientAdherence is a per-patient taken ratio over the trailing 30 days,
// worst first, so staff see who needs follow-up.
type PatientAdherence struct {
	PatientID types.ID `json:"patient_id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Adherence float64  `json:"adherence"`
}

// BuildDashboard assembles the staff rollup as of now.
func (r *Repository) BuildDashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	d := &Dashboard{}

	counts := `
		SELECT
			(SELECT COUNT(*) FROM patients),
			(SELECT COUNT(*) FROM medications),
			(SELECT COUNT(*) FROM prescriptions)`
	if err := r.pool.QueryRow(ctx, counts).Scan(
		&d.PatientCount, &d.MedicationCount, &d.PrescriptionCount,
	); err != nil {
		return nil, errors.Wrap(err, "failed to count dashboard totals")
	}

	recent, err := r.listRecentLogs(ctx, 10)
	if err != nil {
		return nil, err
	}
	d.RecentLogs = recent

	cutoff := now.UTC().Add(-30 * 24 * time.Hour)
	rollup, err := r.patientAdherenceSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	d.PatientAdherence = rollup

	due, err := r.listDueToday(ctx, types.DateOf(now))
	if err != nil {
		return nil, err
	}
	d.DueToday = due

	return d, nil
}

func (r *Repository) listRecentLogs(ctx context.Context, limit int) ([]DoseLog, error) {
	query := `
		SELECT id, prescription_id, taken_at, was_taken, notes, created_at
		FROM dose_logs
		ORDER BY taken_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent dose logs")
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

// patientAdherenceSince averages the taken flag across each patient's dose
// logs after the cutoff. This is a coarse ratio of taken-to-total logged
// events, not the per-prescription expectation score; it orders worst first.
func (r *Repository) patientAdherenceSince(ctx context.Context, cutoff time.Time) ([]PatientAdherence, error) {
	query := `
		SELECT pa.id, pa.first_name, pa.last_name,
			AVG(CASE WHEN d.was_taken THEN 1.0 ELSE 0.0 END) * 100.0
		FROM patients pa
		JOIN prescriptions p ON p.patient_id = pa.id
		JOIN dose_logs d ON d.prescription_id = p.id
		WHERE d.taken_at >= $1
		GROUP BY pa.id, pa.first_name, pa.last_name
		ORDER BY AVG(CASE WHEN d.was_taken THEN 1.0 ELSE 0.0 END) ASC`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll up patient adherence")
	}
	defer rows.Close()

	var rollup []PatientAdherence
	for rows.Next() {
		var pa PatientAdherence
		if err := rows.Scan(&pa.PatientID, &pa.FirstName, &pa.LastName, &pa.Adherence); err != nil {
			return nil, errors.Wrap(err, "failed to scan adherence rollup")
		}
		rollup = append(rollup, pa)
	}

	return rollup, rows.Err()
}

func (r *Repository) listDueToday(ctx context.Context, today types.Date) ([]PrescriptionView, error) {
	query := `
		SELECT p.id, p.patient_id, p.medication_id, p.dosage, p.frequency_per_day,
			p.start_date, p.end_date, p.notes, p.reminder_enabled, p.reminder_last_sent_date,
			p.created_at, p.updated_at,
			m.name, m.strength
		FROM prescriptions p
		JOIN medications m ON m.id = p.medication_id
		WHERE p.start_date <= $1
		  AND (p.end_date IS NULL OR p.end_date >= $1)
		ORDER BY m.name`

	rows, err := r.pool.Query(ctx, query, today)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list prescriptions due today")
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
			return nil, errors.Wrap(err, "failed to scan prescription")
		}
		v.ActiveToday = true
		views = append(views, v)
	}

	return views, rows.Err()
}
