package patient

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Repository provides database operations for patients
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new patient repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new patient record
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (id, first_name, last_name, dob, ssn_last4, ssn_full_hash, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.FirstName, p.LastName, p.DOB, nullIfEmpty(p.SSNLast4), p.SSNFullHash,
		p.Email, p.Phone,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient already exists")
		}
		return errors.Wrap(err, "failed to create patient")
	}

	return nil
}

// Get retrieves a patient by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	query := `
		SELECT id, first_name, last_name, dob, ssn_last4, ssn_full_hash, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1`

	p := &Patient{}
	var last4 *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.DOB, &last4, &p.SSNFullHash,
		&p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient")
	}
	if last4 != nil {
		p.SSNLast4 = *last4
	}

	return p, nil
}

// FindByLast4AndDOB returns every patient matching the partial identifier
// pair. The result is the candidate set for identity resolution: normally
// zero or one entries, but last4+birthday collisions are possible and callers
// must disambiguate cryptographically.
func (r *Repository) FindByLast4AndDOB(ctx context.Context, last4 string, dob types.Date) ([]Patient, error) {
	query := `
		SELECT id, first_name, last_name, dob, ssn_last4, ssn_full_hash, email, phone, created_at, updated_at
		FROM patients
		WHERE ssn_last4 = $1 AND dob = $2
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, last4, dob)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var l4 *string
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.DOB, &l4, &p.SSNFullHash,
			&p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan patient")
		}
		if l4 != nil {
			p.SSNLast4 = *l4
		}
		patients = append(patients, p)
	}

	return patients, rows.Err()
}

// List lists patients ordered by name
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count patients")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, first_name, last_name, dob, ssn_last4, ssn_full_hash, email, phone, created_at, updated_at
		FROM patients
		ORDER BY last_name, first_name
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var l4 *string
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.DOB, &l4, &p.SSNFullHash,
			&p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan patient")
		}
		if l4 != nil {
			p.SSNLast4 = *l4
		}
		patients = append(patients, p)
	}

	return patients, total, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
