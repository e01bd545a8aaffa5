package api

import (
	"net/http"

	"github.com/careloop/careloop/internal/team"
	"github.com/go-chi/chi/v5"
)

type patientsHandler struct {
	service *team.Service
}

func newPatientsHandler(service *team.Service) *patientsHandler {
	return &patientsHandler{service: service}
}

// ListPatients returns the distinct patients across all teams.
func (h *patientsHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	if !h.service.Initialized() {
		writeServiceError(w, team.ErrNotInitialized)
		return
	}
	patients := h.service.Patients()
	if patients == nil {
		patients = []*team.User{}
	}
	writeJSON(w, http.StatusOK, patients)
}

// ListFlagged returns the flagged patient identifiers.
func (h *patientsHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"patientIds": h.service.FlaggedPatients(),
	})
}

// Flag marks a patient as flagged for the session user.
func (h *patientsHandler) Flag(w http.ResponseWriter, r *http.Request) {
	if err := h.service.FlagPatient(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"patientIds": h.service.FlaggedPatients(),
	})
}

// Unflag removes a patient flag.
func (h *patientsHandler) Unflag(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UnflagPatient(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"patientIds": h.service.FlaggedPatients(),
	})
}

// RemovePatient removes a patient membership from a team.
func (h *patientsHandler) RemovePatient(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID := chi.URLParam(r, "userID")
	if err := h.service.RemovePatient(r.Context(), teamID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser returns a user from the identity map, memberships included.
func (h *patientsHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u := h.service.User(chi.URLParam(r, "userID"))
	if u == nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
