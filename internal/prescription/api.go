package prescription

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/medtrack/internal/audit"
	"github.com/clinicware/medtrack/internal/shared/auth"
	"github.com/clinicware/medtrack/internal/shared/errors"
	"github.com/clinicware/medtrack/internal/shared/metrics"
	"github.com/clinicware/medtrack/internal/shared/types"
	"github.com/clinicware/medtrack/internal/timeutil"
)

// Handler provides HTTP handlers for prescriptions and dose logging
type Handler struct {
	repo  *Repository
	calc  *Calculator
	guard *Guard
	clock timeutil.Clock
	trail audit.Recorder
}

// NewHandler creates a new prescription handler
func NewHandler(repo *Repository, calc *Calculator, guard *Guard, clock timeutil.Clock, trail audit.Recorder) *Handler {
	return &Handler{repo: repo, calc: calc, guard: guard, clock: clock, trail: trail}
}

// Routes registers the prescription routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPrescriptions)
	r.With(auth.RequireStaff).Post("/", h.CreatePrescription)

	r.Route("/{prescriptionID}", func(r chi.Router) {
		r.Get("/", h.GetPrescription)
		r.Get("/adherence", h.GetAdherence)
		r.Post("/doses", h.LogDoseTaken)
		r.Post("/missed", h.LogDoseMissed)
		r.Post("/reminder", h.EnableReminder)
	})

	return r
}

// ClinicRoutes registers the staff-only monitoring routes
func (h *Handler) ClinicRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireStaff)
	r.Get("/dashboard", h.GetDashboard)
	r.Post("/reminders/{prescriptionID}", h.SendReminder)

	return r
}

// ListPrescriptions lists prescriptions with medication details and scores.
// Patients see their own; staff must name a patient.
func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	patientID := user.ID
	if user.IsStaff() {
		id, err := types.ParseID(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, errors.BadRequest("patient_id is required"))
			return
		}
		patientID = id
	}

	limit, offset := paginationParams(r)
	views, total, err := h.repo.ListByPatient(r.Context(), patientID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.clock.Now()
	today := types.DateOf(now)
	for i := range views {
		views[i].ActiveToday = views[i].ActiveOn(today)
		score, err := h.calc.Adherence(r.Context(), &views[i].Prescription, today)
		if err != nil {
			writeError(w, err)
			return
		}
		views[i].Adherence = score
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  views,
		"total": total,
	})
}

// CreatePrescription prescribes a medication to a patient (staff only)
func (h *Handler) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	var req CreatePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if req.PatientID.IsZero() {
		details["patient_id"] = "patient is required"
	}
	if req.MedicationID.IsZero() {
		details["medication_id"] = "medication is required"
	}
	if req.Dosage == "" {
		details["dosage"] = "dosage is required"
	}
	if req.FrequencyPerDay < 1 {
		details["frequency_per_day"] = "frequency must be at least 1 per day"
	}
	if req.StartDate == nil {
		details["start_date"] = "start date is required"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	p := &Prescription{
		ID:              types.NewID(),
		PatientID:       req.PatientID,
		MedicationID:    req.MedicationID,
		Dosage:          req.Dosage,
		FrequencyPerDay: req.FrequencyPerDay,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Notes:           req.Notes,
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	h.trail.Record(r.Context(), "prescription.created", p.ID, map[string]any{
		"patient_id": p.PatientID.String(),
	})

	writeJSON(w, http.StatusCreated, p)
}

// GetPrescription gets a prescription by ID (owner or staff)
func (h *Handler) GetPrescription(w http.ResponseWriter, r *http.Request) {
	rx, err := h.loadAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rx)
}

// GetAdherence returns the adherence score as of today (owner or staff)
func (h *Handler) GetAdherence(w http.ResponseWriter, r *http.Request) {
	rx, err := h.loadAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}

	today := types.DateOf(h.clock.Now())
	score, err := h.calc.Adherence(r.Context(), rx, today)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prescription_id": rx.ID,
		"as_of":           today,
		"adherence":       score,
	})
}

// LogDoseTaken records a taken dose behind the rolling-window guard
func (h *Handler) LogDoseTaken(w http.ResponseWriter, r *http.Request) {
	rx, err := h.loadAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.clock.Now()
	if !rx.ActiveOn(types.DateOf(now)) {
		metrics.RecordDoseRejection("inactive")
		writeError(w, errors.BadRequest("prescription is not active today"))
		return
	}

	var req LogDoseRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.BadRequest("invalid request body"))
			return
		}
	}

	log, err := h.guard.LogTaken(r.Context(), rx, now, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	h.trail.Record(r.Context(), "dose.taken", rx.ID, map[string]any{
		"patient_id": rx.PatientID.String(),
	})

	if log == nil {
		// A concurrent request already wrote today's row; same outcome.
		writeJSON(w, http.StatusOK, map[string]any{"status": "already_logged"})
		return
	}

	writeJSON(w, http.StatusCreated, log)
}

// LogDoseMissed records a missed dose (no rolling-window guard)
func (h *Handler) LogDoseMissed(w http.ResponseWriter, r *http.Request) {
	rx, err := h.loadAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.clock.Now()
	if !rx.ActiveOn(types.DateOf(now)) {
		metrics.RecordDoseRejection("inactive")
		writeError(w, errors.BadRequest("prescription is not active today"))
		return
	}

	var req LogDoseRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.BadRequest("invalid request body"))
			return
		}
	}

	log, err := h.guard.LogMissed(r.Context(), rx, now, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	h.trail.Record(r.Context(), "dose.missed", rx.ID, map[string]any{
		"patient_id": rx.PatientID.String(),
	})

	if log == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "already_logged"})
		return
	}

	writeJSON(w, http.StatusCreated, log)
}

// EnableReminder turns on dose reminders for a prescription. Requires a
// bounded date window that covers today.
func (h *Handler) EnableReminder(w http.ResponseWriter, r *http.Request) {
	rx, err := h.loadAuthorized(r)
	if err != nil {
		writeError(w, err)
		return
	}

	today := types.DateOf(h.clock.Now())
	if !rx.HasBoundedWindow(today) {
		writeError(w, errors.BadRequest("cannot set a reminder for an inactive prescription"))
		return
	}

	if err := h.repo.SetReminderEnabled(r.Context(), rx.ID, true); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reminder_enabled": true})
}

// DoseHistory lists the calling patient's dose history, newest first.
// Staff may inspect any patient via the patient_id query parameter.
func (h *Handler) DoseHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	patientID := user.ID
	if user.IsStaff() {
		id, err := types.ParseID(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, errors.BadRequest("patient_id is required"))
			return
		}
		patientID = id
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.repo.ListDoseLogsByPatient(r.Context(), patientID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": logs})
}

// GetDashboard returns the clinic monitoring rollup (staff only)
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.BuildDashboard(r.Context(), h.clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// SendReminder marks a reminder as sent today for a prescription (staff only)
func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "prescriptionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid prescription ID"))
		return
	}

	rx, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	today := types.DateOf(h.clock.Now())
	if err := h.repo.MarkReminderSent(r.Context(), rx.ID, today); err != nil {
		writeError(w, err)
		return
	}

	h.trail.Record(r.Context(), "reminder.sent", rx.ID, map[string]any{
		"patient_id": rx.PatientID.String(),
		"sent_on":    today.String(),
	})

	writeJSON(w, http.StatusOK, map[string]any{"reminder_sent": today})
}

// loadAuthorized loads the prescription named in the URL and enforces the
// ownership contract: staff may access any prescription, a patient only
// their own. Ownership is checked against the token's patient ID, never
// ambient session state.
func (h *Handler) loadAuthorized(r *http.Request) (*Prescription, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	id, err := types.ParseID(chi.URLParam(r, "prescriptionID"))
	if err != nil {
		return nil, errors.BadRequest("invalid prescription ID")
	}

	rx, err := h.repo.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}

	if !user.IsStaff() && rx.PatientID != user.ID {
		return nil, errors.Forbidden("prescription belongs to another patient")
	}

	return rx, nil
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
