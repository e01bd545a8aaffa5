// Package backend holds the HTTP clients for the team and roster APIs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/careloop/careloop/internal/notification"
	"github.com/careloop/careloop/internal/team"
	"github.com/google/uuid"
)

// Config holds the connection settings shared by the backend clients.
type Config struct {
	BaseURL      string
	SessionToken string
	UserID       string
	Timeout      time.Duration
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Status int
	Method string
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// TeamService is the HTTP implementation of the team/roster backend.
// Every request carries the session token and a per-client trace session
// identifier so backend logs can be correlated to one browser session.
type TeamService struct {
	base   string
	token  string
	userID string
	trace  string
	client *http.Client
}

// NewTeamService creates a client for the team API.
func NewTeamService(cfg Config) *TeamService {
	return &TeamService{
		base:   cfg.BaseURL,
		token:  cfg.SessionToken,
		userID: cfg.UserID,
		trace:  uuid.NewString(),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchTeams lists the teams the session user belongs to.
func (s *TeamService) FetchTeams(ctx context.Context) ([]team.TeamDTO, error) {
	var out []team.TeamDTO
	if err := s.do(ctx, http.MethodGet, "/v1/teams", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchRoster lists the patient memberships visible to the session user,
// flattened across teams.
func (s *TeamService) FetchRoster(ctx context.Context) ([]team.MemberDTO, error) {
	var out []team.MemberDTO
	path := fmt.Sprintf("/v1/users/%s/patients", s.userID)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTeam creates a medical team and returns the backend's view of it,
// including the creator's admin membership.
func (s *TeamService) CreateTeam(ctx context.Context, in team.CreateTeamInput) (team.TeamDTO, error) {
	var out team.TeamDTO
	if err := s.do(ctx, http.MethodPost, "/v1/teams", in, &out); err != nil {
		return team.TeamDTO{}, err
	}
	return out, nil
}

// EditTeam updates a team's mutable fields.
func (s *TeamService) EditTeam(ctx context.Context, in team.EditTeamInput) error {
	return s.do(ctx, http.MethodPut, "/v1/teams/"+in.ID, in, nil)
}

// LeaveTeam removes the session user's own membership.
func (s *TeamService) LeaveTeam(ctx context.Context, teamID string) error {
	path := fmt.Sprintf("/v1/teams/%s/members/%s", teamID, s.userID)
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteTeam deletes a whole team.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID string) error {
	return s.do(ctx, http.MethodDelete, "/v1/teams/"+teamID, nil, nil)
}

// RemoveMember removes a member from a team.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID string) error {
	path := fmt.Sprintf("/v1/teams/%s/members/%s", teamID, userID)
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

// ChangeMemberRole switches a member's role.
func (s *TeamService) ChangeMemberRole(ctx context.Context, teamID, userID string, role team.MemberRole) error {
	path := fmt.Sprintf("/v1/teams/%s/members/%s/role", teamID, userID)
	body := struct {
		Role team.MemberRole `json:"role"`
	}{Role: role}
	return s.do(ctx, http.MethodPut, path, body, nil)
}

// InvitePatient invites a patient by email and returns the created
// invitation.
func (s *TeamService) InvitePatient(ctx context.Context, teamID, email string) (*notification.Invitation, error) {
	return s.invite(ctx, teamID, email, team.RolePatient)
}

// InviteMember invites a professional by email with the given role and
// returns the created invitation.
func (s *TeamService) InviteMember(ctx context.Context, teamID, email string, role team.MemberRole) (*notification.Invitation, error) {
	return s.invite(ctx, teamID, email, role)
}

func (s *TeamService) invite(ctx context.Context, teamID, email string, role team.MemberRole) (*notification.Invitation, error) {
	body := struct {
		Email string          `json:"email"`
		Role  team.MemberRole `json:"role"`
	}{Email: email, Role: role}
	var out notification.Invitation
	path := fmt.Sprintf("/v1/teams/%s/invitations", teamID)
	if err := s.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request against the team API. A nil out skips response
// decoding; a nil in sends no body.
func (s *TeamService) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Careloop-Session-Token", s.token)
	req.Header.Set("X-Careloop-Trace-Session", s.trace)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Status: resp.StatusCode, Method: method, Path: path}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
