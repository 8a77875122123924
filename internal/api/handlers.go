package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dermaluz/agenda/internal/agenda"
	"github.com/dermaluz/agenda/internal/directory"
)

type Handlers struct {
	engine *agenda.Engine
	view   *agenda.View
	dirs   agenda.Directories
}

func NewHandlers(engine *agenda.Engine, view *agenda.View, dirs agenda.Directories) *Handlers {
	return &Handlers{engine: engine, view: view, dirs: dirs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleOpError maps the engine's failure taxonomy onto HTTP statuses.
// Validation problems are the caller's to fix, transition faults and slot
// conflicts are state disagreements, persistence failures are the store's.
func handleOpError(w http.ResponseWriter, err error) {
	var (
		vErr *agenda.ValidationError
		tErr *agenda.InvalidTransitionError
		pErr *agenda.PersistenceError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", vErr.Error())
	case errors.As(err, &tErr):
		writeError(w, http.StatusConflict, "invalid_transition", tErr.Error())
	case errors.Is(err, agenda.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot already holds an active appointment, pick another")
	case errors.Is(err, agenda.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.As(err, &pErr):
		writeError(w, http.StatusBadGateway, "persistence_failure", pErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func appointmentID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handlers) book(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.engine.Book(r.Context(), req.toEngine())
	if err != nil {
		handleOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *Handlers) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.engine.Edit(r.Context(), id, req.toEngine())
	if err != nil {
		handleOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.engine.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		handleOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handlers) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.engine.Complete(r.Context(), id, req.Notes, req.Photos)
	if err != nil {
		handleOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handlers) reassign(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.engine.Reassign(r.Context(), id, req.toEngine())
	if err != nil {
		handleOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// remove destroys an appointment. The confirm=true query parameter is the
// boundary confirmation step; without it nothing is touched.
func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "confirmation_required", "pass confirm=true to delete an appointment")
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		handleOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.engine.Get(r.Context(), id)
	if err != nil {
		handleOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	appts, err := h.engine.List(r.Context())
	if err != nil {
		handleOpError(w, err)
		return
	}
	if appts == nil {
		appts = []agenda.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *Handlers) week(w http.ResponseWriter, r *http.Request) {
	anchor := time.Now()
	if raw := r.URL.Query().Get("anchor"); raw != "" {
		parsed, err := agenda.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_anchor", "anchor must be YYYY-MM-DD")
			return
		}
		anchor = parsed
	}
	office := r.URL.Query().Get("office")

	days := agenda.WeekDays(anchor)
	dayStrs := make([]string, len(days))
	for i, d := range days {
		dayStrs[i] = d.Format(agenda.DateLayout)
	}

	writeJSON(w, http.StatusOK, WeekResponse{
		WeekStart: agenda.WeekStart(anchor).Format(agenda.DateLayout),
		Days:      dayStrs,
		Times:     agenda.TimeSlots(),
		Cells:     h.view.Week(anchor, office),
	})
}

func (h *Handlers) day(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := agenda.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appts := h.view.DayAppointments(date)
	if appts == nil {
		appts = []agenda.Appointment{}
	}
	writeJSON(w, http.StatusOK, DayResponse{Date: date, Appointments: appts})
}

// listDirectory serves one of the external selection lists verbatim.
func listDirectory(lookup directory.Lookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := lookup.List(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "persistence_failure", err.Error())
			return
		}
		if entries == nil {
			entries = []directory.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
