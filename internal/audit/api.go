package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/medtrack/internal/shared/auth"
)

// Handler exposes the audit trail to staff.
type Handler struct {
	trail *Trail
}

// NewHandler creates a new audit handler
func NewHandler(trail *Trail) *Handler {
	return &Handler{trail: trail}
}

// Routes registers the audit routes (staff only)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireStaff)
	r.Get("/", h.ListRecent)

	return r
}

// ListRecent returns the newest audit entries, newest first
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.trail.Recent(r.Context(), limit)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to read audit trail"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": entries})
}
