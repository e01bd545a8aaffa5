package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careloop/careloop/internal/team"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *TeamService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTeamService(Config{
		BaseURL:      srv.URL,
		SessionToken: "tok-123",
		UserID:       "hcp-1",
		Timeout:      2 * time.Second,
	})
}

func TestFetchTeamsSendsSessionHeaders(t *testing.T) {
	var gotToken, gotTrace, gotPath string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Careloop-Session-Token")
		gotTrace = r.Header.Get("X-Careloop-Trace-Session")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode([]team.TeamDTO{{ID: "team-1", Name: "CHU"}})
	})

	teams, err := svc.FetchTeams(context.Background())
	if err != nil {
		t.Fatalf("FetchTeams failed: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != "team-1" {
		t.Errorf("unexpected teams: %+v", teams)
	}
	if gotPath != "/v1/teams" {
		t.Errorf("path = %q, want /v1/teams", gotPath)
	}
	if gotToken != "tok-123" {
		t.Errorf("session token = %q, want tok-123", gotToken)
	}
	if gotTrace == "" {
		t.Error("trace session header missing")
	}
}

func TestTraceSessionStableAcrossRequests(t *testing.T) {
	traces := map[string]bool{}
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		traces[r.Header.Get("X-Careloop-Trace-Session")] = true
		_ = json.NewEncoder(w).Encode([]team.TeamDTO{})
	})

	for i := 0; i < 3; i++ {
		if _, err := svc.FetchTeams(context.Background()); err != nil {
			t.Fatalf("FetchTeams failed: %v", err)
		}
	}
	if len(traces) != 1 {
		t.Errorf("expected one trace session across requests, got %d", len(traces))
	}
}

func TestFetchRosterScopedToUser(t *testing.T) {
	var gotPath string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode([]team.MemberDTO{
			{TeamID: "team-1", UserID: "pat-1", Role: team.RolePatient, Status: team.StatusAccepted},
		})
	})

	roster, err := svc.FetchRoster(context.Background())
	if err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}
	if gotPath != "/v1/users/hcp-1/patients" {
		t.Errorf("path = %q", gotPath)
	}
	if len(roster) != 1 || roster[0].UserID != "pat-1" {
		t.Errorf("unexpected roster: %+v", roster)
	}
}

func TestCreateTeamRoundTrip(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/teams" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in team.CreateTeamInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(team.TeamDTO{ID: "team-new", Name: in.Name, Type: team.TypeMedical})
	})

	dto, err := svc.CreateTeam(context.Background(), team.CreateTeamInput{
		Name:    "New Practice",
		Phone:   "+49 30 1234",
		Address: &team.Address{Line1: "a", City: "b", Zip: "c", Country: "DE"},
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if dto.ID != "team-new" || dto.Name != "New Practice" {
		t.Errorf("unexpected team: %+v", dto)
	}
}

func TestRemoveMemberBuildsPath(t *testing.T) {
	var gotMethod, gotPath string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := svc.RemoveMember(context.Background(), "team-1", "hcp-2"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/teams/team-1/members/hcp-2" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestLeaveTeamTargetsOwnMembership(t *testing.T) {
	var gotPath string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := svc.LeaveTeam(context.Background(), "team-1"); err != nil {
		t.Fatalf("LeaveTeam failed: %v", err)
	}
	if gotPath != "/v1/teams/team-1/members/hcp-1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestInvitePatientDecodesInvitation(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/teams/team-1/invitations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var in struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Role != string(team.RolePatient) {
			t.Errorf("role = %q, want patient", in.Role)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "inv-1",
			"type":  "medicalteam_patient_invitation",
			"email": in.Email,
		})
	})

	inv, err := svc.InvitePatient(context.Background(), "team-1", "new@patient.example")
	if err != nil {
		t.Fatalf("InvitePatient failed: %v", err)
	}
	if inv.ID != "inv-1" || inv.Email != "new@patient.example" {
		t.Errorf("unexpected invitation: %+v", inv)
	}
}

func TestStatusErrorOnFailure(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := svc.FetchTeams(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", se.Status)
	}
}
