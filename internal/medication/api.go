package medication

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/medtrack/internal/shared/auth"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// Handler provides HTTP handlers for the medication catalog
type Handler struct {
	repo *Repository
}

// NewHandler creates a new medication handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the medication routes. The catalog is readable by any
// authenticated principal; only staff may modify it.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMedications)
	r.With(auth.RequireStaff).Post("/", h.CreateMedication)
	r.Get("/{medicationID}", h.GetMedication)

	return r
}

// ListMedications lists the catalog
func (h *Handler) ListMedications(w http.ResponseWriter, r *http.Request) {
	medications, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": medications})
}

// GetMedication gets a catalog entry by ID
func (h *Handler) GetMedication(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "medicationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid medication ID"))
		return
	}

	m, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// CreateMedication adds a catalog entry (staff only)
func (h *Handler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	var req CreateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		}))
		return
	}

	m := &Medication{
		ID:       types.NewID(),
		Name:     req.Name,
		Strength: req.Strength,
	}

	if err := h.repo.Create(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
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
