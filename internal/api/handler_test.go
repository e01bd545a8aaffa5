package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/notification"
	"github.com/careloop/careloop/internal/prefs"
	"github.com/careloop/careloop/internal/team"
)

// stubTeamClient answers every backend call from canned data.
type stubTeamClient struct {
	teams  []team.TeamDTO
	roster []team.MemberDTO
	err    error
}

func (s *stubTeamClient) FetchTeams(ctx context.Context) ([]team.TeamDTO, error) {
	return s.teams, s.err
}

func (s *stubTeamClient) FetchRoster(ctx context.Context) ([]team.MemberDTO, error) {
	return s.roster, s.err
}

func (s *stubTeamClient) CreateTeam(ctx context.Context, in team.CreateTeamInput) (team.TeamDTO, error) {
	if s.err != nil {
		return team.TeamDTO{}, s.err
	}
	return team.TeamDTO{
		ID:   "team-created",
		Name: in.Name,
		Type: team.TypeMedical,
		Members: []team.MemberDTO{{
			TeamID: "team-created",
			UserID: "hcp-1",
			Role:   team.RoleAdmin,
			Status: team.StatusAccepted,
		}},
	}, nil
}

func (s *stubTeamClient) EditTeam(ctx context.Context, in team.EditTeamInput) error { return s.err }
func (s *stubTeamClient) LeaveTeam(ctx context.Context, teamID string) error        { return s.err }
func (s *stubTeamClient) DeleteTeam(ctx context.Context, teamID string) error       { return s.err }
func (s *stubTeamClient) RemoveMember(ctx context.Context, teamID, userID string) error {
	return s.err
}
func (s *stubTeamClient) ChangeMemberRole(ctx context.Context, teamID, userID string, role team.MemberRole) error {
	return s.err
}

func (s *stubTeamClient) InvitePatient(ctx context.Context, teamID, email string) (*notification.Invitation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &notification.Invitation{
		ID:     "inv-1",
		Type:   notification.TypePatientInvitation,
		Email:  email,
		Target: &notification.Target{ID: teamID},
	}, nil
}

func (s *stubTeamClient) InviteMember(ctx context.Context, teamID, email string, role team.MemberRole) (*notification.Invitation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &notification.Invitation{
		ID:     "inv-2",
		Type:   notification.TypeTeamInvitation,
		Email:  email,
		Target: &notification.Target{ID: teamID},
	}, nil
}

// stubNotifier is never ready, so passes skip invitation fetching.
type stubNotifier struct{}

func (stubNotifier) Ready() bool { return false }
func (stubNotifier) SentInvitations(ctx context.Context) ([]notification.Invitation, error) {
	return nil, nil
}
func (stubNotifier) CancelInvitation(ctx context.Context, id string) error { return nil }

func testService(t *testing.T) *team.Service {
	t.Helper()
	client := &stubTeamClient{
		teams: []team.TeamDTO{{
			ID:   "team-1",
			Name: "CHU Grenoble",
			Type: team.TypeMedical,
			Members: []team.MemberDTO{
				{TeamID: "team-1", UserID: "hcp-1", Email: "anna@clinic.example", Role: team.RoleAdmin, Status: team.StatusAccepted},
				{TeamID: "team-1", UserID: "hcp-2", Email: "ben@clinic.example", Role: team.RoleMember, Status: team.StatusAccepted},
			},
		}},
		roster: []team.MemberDTO{
			{TeamID: "team-1", UserID: "pat-1", Role: team.RolePatient, Status: team.StatusAccepted},
		},
	}
	session := team.Session{UserID: "hcp-1", Username: "anna@clinic.example", Role: team.UserRoleClinicianAdmin}
	return team.NewService(session, client, stubNotifier{}, prefs.NewMemory())
}

func newTestRouter(t *testing.T, refresh bool) http.Handler {
	t.Helper()
	svc := testService(t)
	if refresh {
		if err := svc.Refresh(context.Background(), true); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
	}
	return NewRouter(RouterDeps{Service: svc, Metrics: metrics.New()})
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doRequest(t, router, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestListTeamsBeforeInitialization(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doRequest(t, router, "GET", "/api/v1/teams", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListTeamsPrivateFirst(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "GET", "/api/v1/teams", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var teams []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &teams); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(teams))
	}
	if teams[0].ID != team.PrivateTeamID {
		t.Errorf("first team = %q, want private", teams[0].ID)
	}
}

func TestGetTeamNotFound(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "GET", "/api/v1/teams/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if env.Error.Code != "not_found" {
		t.Errorf("error code = %q, want not_found", env.Error.Code)
	}
}

func TestCreateTeamValidationFailure(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "POST", "/api/v1/teams", `{"phone":"+33 1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestCreateTeamSuccess(t *testing.T) {
	router := newTestRouter(t, true)
	body := `{"name":"New Practice","phone":"+49 30 1234","address":{"line1":"a","city":"b","zip":"c","country":"DE"}}`
	rec := doRequest(t, router, "POST", "/api/v1/teams", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID != "team-created" {
		t.Errorf("created id = %q", created.ID)
	}

	// The new team is served on subsequent reads.
	rec = doRequest(t, router, "GET", "/api/v1/teams/team-created", "")
	if rec.Code != http.StatusOK {
		t.Errorf("get created team status = %d", rec.Code)
	}
}

func TestInvitePatient(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "POST", "/api/v1/teams/team-1/invitations",
		`{"email":"new@patient.example","role":"patient"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, "GET", "/api/v1/users/new@patient.example", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("invited user not resolvable: %d", rec.Code)
	}
	var u struct {
		Members []struct {
			Status string `json:"invitationStatus"`
		} `json:"members"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &u)
	if len(u.Members) != 1 || u.Members[0].Status != "pending" {
		t.Errorf("unexpected memberships: %+v", u.Members)
	}
}

func TestInviteInvalidRole(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "POST", "/api/v1/teams/team-1/invitations",
		`{"email":"x@clinic.example","role":"boss"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestRemoveMember(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "DELETE", "/api/v1/teams/team-1/members/hcp-2", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	rec = doRequest(t, router, "GET", "/api/v1/teams/team-1", "")
	var tm struct {
		Members []struct {
			UserID string `json:"userId"`
		} `json:"members"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &tm)
	for _, m := range tm.Members {
		if m.UserID == "hcp-2" {
			t.Error("member still listed after removal")
		}
	}
}

func TestLeaveTeam(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "POST", "/api/v1/teams/team-1/leave", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, router, "GET", "/api/v1/teams/team-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("left team still resolvable: %d", rec.Code)
	}
}

func TestChangeMemberRole(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "PUT", "/api/v1/teams/team-1/members/hcp-2/role", `{"role":"admin"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var tm struct {
		Members []struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		} `json:"members"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &tm)
	found := false
	for _, m := range tm.Members {
		if m.UserID == "hcp-2" && m.Role == "admin" {
			found = true
		}
	}
	if !found {
		t.Errorf("role change not reflected: %+v", tm.Members)
	}
}

func TestRemovePatient(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "DELETE", "/api/v1/teams/team-1/patients/pat-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, router, "GET", "/api/v1/patients", "")
	var patients []struct {
		ID string `json:"userId"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &patients)
	if len(patients) != 0 {
		t.Errorf("patient still listed after removal: %+v", patients)
	}
}

func TestFlagAndUnflagPatient(t *testing.T) {
	router := newTestRouter(t, true)

	rec := doRequest(t, router, "PUT", "/api/v1/patients/pat-1/flag", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("flag status = %d", rec.Code)
	}
	var resp struct {
		PatientIDs []string `json:"patientIds"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.PatientIDs) != 1 || resp.PatientIDs[0] != "pat-1" {
		t.Errorf("flags = %v, want [pat-1]", resp.PatientIDs)
	}

	rec = doRequest(t, router, "DELETE", "/api/v1/patients/pat-1/flag", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unflag status = %d", rec.Code)
	}
	rec = doRequest(t, router, "GET", "/api/v1/patients/flagged", "")
	resp.PatientIDs = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.PatientIDs) != 0 {
		t.Errorf("flags = %v, want empty", resp.PatientIDs)
	}
}

func TestStateAndRefreshEndpoints(t *testing.T) {
	router := newTestRouter(t, false)

	rec := doRequest(t, router, "GET", "/api/v1/state", "")
	var st stateResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &st)
	if st.Initialized {
		t.Error("service should not be initialized before first refresh")
	}

	rec = doRequest(t, router, "POST", "/api/v1/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &st)
	if !st.Initialized || st.State != "idle" {
		t.Errorf("unexpected state after refresh: %+v", st)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reconciliation") {
		t.Error("metrics summary missing reconciliation section")
	}
}

func TestInvalidJSONBody(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doRequest(t, router, "POST", "/api/v1/teams", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doRequest(t, router, "GET", "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}
