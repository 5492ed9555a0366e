package staff

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/medtrack/internal/audit"
	"github.com/clinicware/medtrack/internal/shared/auth"
	"github.com/clinicware/medtrack/internal/shared/crypto"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Handler provides HTTP handlers for staff accounts
type Handler struct {
	repo   *Repository
	hasher crypto.Hasher
	issuer *auth.TokenIssuer
	trail  audit.Recorder
}

// NewHandler creates a new staff handler
func NewHandler(repo *Repository, hasher crypto.Hasher, issuer *auth.TokenIssuer, trail audit.Recorder) *Handler {
	return &Handler{repo: repo, hasher: hasher, issuer: issuer, trail: trail}
}

// Routes registers the staff account routes (already staff-gated)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireStaff)
	r.Post("/", h.CreateUser)

	return r
}

// Login authenticates a staff user. Mounted unauthenticated (and rate
// limited) from main. Unknown usernames and wrong passwords get the same
// response.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"username": "username and password are required",
		}))
		return
	}

	u, err := h.repo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			writeError(w, errors.Unauthorized("invalid credentials"))
			return
		}
		writeError(w, err)
		return
	}

	if !h.hasher.Verify(u.PasswordHash, req.Password) {
		writeError(w, errors.Unauthorized("invalid credentials"))
		return
	}

	token, expiresAt, err := h.issuer.IssueStaffToken(u.ID, u.Username)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	h.trail.Record(r.Context(), "staff.login", u.ID, nil)

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    u.ID,
		Username:  u.Username,
	})
}

// CreateUser registers a staff account (staff only)
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if req.Username == "" {
		details["username"] = "username is required"
	}
	if req.Email == "" {
		details["email"] = "email is required"
	}
	if len(req.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	u := &User{
		ID:           types.NewID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}

	if err := h.repo.Create(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}

	h.trail.Record(r.Context(), "staff.created", u.ID, nil)

	writeJSON(w, http.StatusCreated, u)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
