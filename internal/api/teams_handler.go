package api

import (
	"net/http"

	"github.com/careloop/careloop/internal/team"
	"github.com/go-chi/chi/v5"
)

type teamsHandler struct {
	service *team.Service
}

func newTeamsHandler(service *team.Service) *teamsHandler {
	return &teamsHandler{service: service}
}

// stateResponse is the JSON shape for GET /state and POST /refresh.
type stateResponse struct {
	State       string `json:"state"`
	Initialized bool   `json:"initialized"`
	Error       string `json:"error,omitempty"`
}

func (h *teamsHandler) currentState() stateResponse {
	resp := stateResponse{
		Initialized: h.service.Initialized(),
	}
	switch h.service.State() {
	case team.StateLoading:
		resp.State = "loading"
	default:
		resp.State = "idle"
	}
	if err := h.service.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// Refresh triggers a reconciliation pass. With ?force=true the pass runs
// even when a graph is already published.
func (h *teamsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := h.service.Refresh(r.Context(), force); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.currentState())
}

// GetState reports the reconciliation state.
func (h *teamsHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentState())
}

// ListTeams returns the published teams, private team first.
func (h *teamsHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams := h.service.Teams()
	if teams == nil {
		writeServiceError(w, team.ErrNotInitialized)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// GetTeam returns a single team by identifier.
func (h *teamsHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	t := h.service.Team(chi.URLParam(r, "teamID"))
	if t == nil {
		writeError(w, http.StatusNotFound, "not_found", "team not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTeam creates a medical team.
func (h *teamsHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var in team.CreateTeamInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	t, err := h.service.CreateTeam(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// EditTeam updates a team's mutable fields.
func (h *teamsHandler) EditTeam(w http.ResponseWriter, r *http.Request) {
	var in team.EditTeamInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	in.ID = chi.URLParam(r, "teamID")

	if err := h.service.EditTeam(r.Context(), in); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Team(in.ID))
}

// LeaveTeam removes the session user from a team.
func (h *teamsHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LeaveTeam(r.Context(), chi.URLParam(r, "teamID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string          `json:"email"`
	Role  team.MemberRole `json:"role"`
}

// Invite invites a user by email into a team. A patient role goes through
// the patient invitation flow, anything else through the member flow.
func (h *teamsHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var in inviteRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	teamID := chi.URLParam(r, "teamID")
	var err error
	if in.Role == team.RolePatient {
		err = h.service.InvitePatient(r.Context(), teamID, in.Email)
	} else {
		err = h.service.InviteMember(r.Context(), teamID, in.Email, in.Role)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.service.Team(teamID))
}

// RemoveMember removes a professional member from a team.
func (h *teamsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID := chi.URLParam(r, "userID")
	if err := h.service.RemoveMember(r.Context(), teamID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeRoleRequest struct {
	Role team.MemberRole `json:"role"`
}

// ChangeMemberRole switches a member's role.
func (h *teamsHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	var in changeRoleRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	teamID := chi.URLParam(r, "teamID")
	userID := chi.URLParam(r, "userID")
	if err := h.service.ChangeMemberRole(r.Context(), teamID, userID, in.Role); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Team(teamID))
}
