package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicware/medtrack/internal/shared/config"
	"github.com/clinicware/medtrack/internal/shared/types"
)

type contextKey string

const userContextKey contextKey = "user"

// UserType distinguishes the two principals this service knows about.
type UserType string

const (
	UserTypePatient UserType = "patient"
	UserTypeStaff   UserType = "staff"
)

// User represents the authenticated principal from JWT claims.
// Patient tokens carry the resolved patient's ID; ownership checks against
// prescriptions use that ID explicitly, never ambient session state.
type User struct {
	ID       types.ID `json:"sub"`
	UserType UserType `json:"user_type"`
	Name     string   `json:"name,omitempty"`
}

// IsStaff reports whether the principal is a clinic staff member.
func (u *User) IsStaff() bool {
	return u != nil && u.UserType == UserTypeStaff
}

// Claims extends JWT registered claims with service-specific data
type Claims struct {
	jwt.RegisteredClaims
	UserType UserType `json:"user_type"`
	Name     string   `json:"name,omitempty"`
}

// TokenIssuer mints session tokens after identity resolution succeeds.
type TokenIssuer struct {
	secret          []byte
	patientTokenTTL time.Duration
	staffTokenTTL   time.Duration
}

// NewTokenIssuer creates a token issuer from auth config.
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		secret:          []byte(cfg.JWTSecret),
		patientTokenTTL: cfg.PatientTokenTTL,
		staffTokenTTL:   cfg.StaffTokenTTL,
	}
}

// IssuePatientToken mints a session token for a resolved patient identity.
func (t *TokenIssuer) IssuePatientToken(patientID types.ID, name string) (string, time.Time, error) {
	return t.issue(patientID, UserTypePatient, name, t.patientTokenTTL)
}

// IssueStaffToken mints a session token for a clinic staff member.
func (t *TokenIssuer) IssueStaffToken(staffID types.ID, name string) (string, time.Time, error) {
	return t.issue(staffID, UserTypeStaff, name, t.staffTokenTTL)
}

func (t *TokenIssuer) issue(subject types.ID, userType UserType, name string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    "medtrack",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserType: userType,
		Name:     name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeAuthError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			user := &User{
				ID:       types.ID(claims.Subject),
				UserType: claims.UserType,
				Name:     claims.Name,
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff creates middleware that restricts a route to clinic staff.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsStaff() {
			writeAuthError(w, http.StatusForbidden, "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying the given principal. Test helper.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
