package medication

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Medication is a catalog entry referenced by zero or more prescriptions.
type Medication struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Strength *string  `json:"strength,omitempty"`
}

// CreateMedicationRequest is the staff request to add a catalog entry.
type CreateMedicationRequest struct {
	Name     string  `json:"name"`
	Strength *string `json:"strength,omitempty"`
}

// Repository provides database operations for the medication catalog
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new medication repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new medication
func (r *Repository) Create(ctx context.Context, m *Medication) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO medications (id, name, strength) VALUES ($1, $2, $3)`,
		m.ID, m.Name, m.Strength,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("medication already exists")
		}
		return errors.Wrap(err, "failed to create medication")
	}
	return nil
}

// Get retrieves a medication by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Medication, error) {
	m := &Medication{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, strength FROM medications WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Strength)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("medication", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get medication")
	}
	return m, nil
}

// List lists the catalog ordered by name
func (r *Repository) List(ctx context.Context) ([]Medication, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, strength FROM medications ORDER BY name`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list medications")
	}
	defer rows.Close()

	var medications []Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.Name, &m.Strength); err != nil {
			return nil, errors.Wrap(err, "failed to scan medication")
		}
		medications = append(medications, m)
	}

	return medications, rows.Err()
}
