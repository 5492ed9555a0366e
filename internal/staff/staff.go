package staff

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// User is a clinic staff account. Staff authenticate with username and
// password; patients never have one of these.
type User struct {
	ID           types.ID  `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the staff login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token for an authenticated staff user.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    types.ID  `json:"user_id"`
	Username  string    `json:"username"`
}

// CreateUserRequest is the request to register a staff account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Repository provides database operations for staff accounts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new staff repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new staff account
func (r *Repository) Create(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO staff_users (id, username, email, password_hash) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("username or email already taken")
		}
		return errors.Wrap(err, "failed to create staff user")
	}
	return nil
}

// GetByUsername retrieves a staff account by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM staff_users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("staff user", username)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get staff user")
	}
	return u, nil
}
