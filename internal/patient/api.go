package patient

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/medtrack/internal/audit"
	"github.com/clinicware/medtrack/internal/shared/auth"
	"github.com/clinicware/medtrack/internal/shared/crypto"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/metrics"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Handler provides HTTP handlers for the patient module
type Handler struct {
	repo     *Repository
	resolver *IdentityResolver
	hasher   crypto.Hasher
	issuer   *auth.TokenIssuer
	trail    audit.Recorder
}

// NewHandler creates a new patient handler
func NewHandler(repo *Repository, resolver *IdentityResolver, hasher crypto.Hasher, issuer *auth.TokenIssuer, trail audit.Recorder) *Handler {
	return &Handler{repo: repo, resolver: resolver, hasher: hasher, issuer: issuer, trail: trail}
}

// Routes registers the staff-facing patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireStaff)
	r.Get("/", h.ListPatients)
	r.Post("/", h.CreatePatient)
	r.Get("/{patientID}", h.GetPatient)

	return r
}

// Login authenticates a patient from partial credentials and issues a
// session token. Mounted unauthenticated (and rate limited) from main.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordPatientLogin("invalid")
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.DOB.IsZero() {
		metrics.RecordPatientLogin("invalid")
		writeError(w, errors.Validation("validation failed", map[string]string{
			"dob": "date of birth is required",
		}))
		return
	}

	// Resolution completes before any session state exists; there is no
	// half-authenticated state to observe.
	resolved, err := h.resolver.Resolve(r.Context(), req.SSNFull, req.DOB)
	if err != nil {
		h.writeLoginFailure(w, r, err)
		return
	}

	token, expiresAt, err := h.issuer.IssuePatientToken(resolved.ID, resolved.FullName())
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	metrics.RecordPatientLogin("found")
	h.trail.Record(r.Context(), "patient.login", resolved.ID, map[string]any{
		"outcome": "found",
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		PatientID: resolved.ID,
		Name:      resolved.FullName(),
	})
}

// writeLoginFailure maps resolver failures onto user-visible responses.
// Ambiguous matches are recorded for staff attention but answered with the
// same generic shape as a no-match, so the login surface never reveals
// whether the partial credentials selected any records.
func (h *Handler) writeLoginFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		metrics.RecordPatientLogin("invalid")
		writeError(w, err)
	case stderrors.Is(err, errors.ErrAmbiguous):
		metrics.RecordPatientLogin("ambiguous")
		h.trail.Record(r.Context(), "patient.login", "", map[string]any{
			"outcome": "ambiguous",
		})
		writeError(w, errors.NoMatch())
	case stderrors.Is(err, errors.ErrNotFound):
		metrics.RecordPatientLogin("no_match")
		h.trail.Record(r.Context(), "patient.login", "", map[string]any{
			"outcome": "no_match",
		})
		writeError(w, errors.NoMatch())
	default:
		writeError(w, err)
	}
}

// ListPatients lists patients (staff only)
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)

	patients, total, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": total,
	})
}

// GetPatient gets a patient by ID (staff only)
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// CreatePatient registers a new patient (staff only). A supplied full
// identifier is hashed immediately; the raw value is never stored.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.FirstName == "" || req.LastName == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"first_name": "first name is required",
			"last_name":  "last name is required",
		}))
		return
	}

	p := &Patient{
		ID:        types.NewID(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		DOB:       req.DOB,
		Email:     req.Email,
		Phone:     req.Phone,
	}

	if req.SSNFull != "" {
		cred := types.NationalIDCredential(req.SSNFull)
		last4, err := cred.Last4()
		if err != nil {
			writeError(w, errors.Validation("invalid national ID", map[string]string{
				"ssn_full": err.Error(),
			}))
			return
		}
		digest, err := h.hasher.Hash(cred.Raw())
		if err != nil {
			writeError(w, errors.Internal(err))
			return
		}
		p.SSNLast4 = last4
		p.SSNFullHash = &digest
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	h.trail.Record(r.Context(), "patient.created", p.ID, nil)

	writeJSON(w, http.StatusCreated, p)
}

// --- Helpers ---

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

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
