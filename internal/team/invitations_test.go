package team

import (
	"testing"
	"time"

	"github.com/careloop/careloop/internal/notification"
)

func invitation(id string, typ notification.Type, email, teamID string) notification.Invitation {
	inv := notification.Invitation{
		ID:        id,
		Type:      typ,
		CreatorID: testSession.UserID,
		Email:     email,
		Created:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if teamID != "" {
		inv.Target = &notification.Target{ID: teamID, Name: "Team " + teamID}
	}
	return inv
}

func TestAttachInvitationToPendingMember(t *testing.T) {
	g := Build(testSession, twoTeamDTOs())
	// hcp-3 is pending in team-2.
	g.AttachInvitations([]notification.Invitation{
		invitation("inv-1", notification.TypeTeamInvitation, "hcp-3@clinic.example", "team-2"),
	})

	m := g.User("hcp-3").Members[0]
	if m.Invitation == nil || m.Invitation.ID != "inv-1" {
		t.Fatalf("invitation not attached: %+v", m.Invitation)
	}
}

func TestAttachInvitationSkipsAcceptedMembers(t *testing.T) {
	g := Build(testSession, twoTeamDTOs())
	g.AttachInvitations([]notification.Invitation{
		invitation("inv-1", notification.TypeTeamInvitation, "hcp-2@clinic.example", "team-1"),
	})

	for _, m := range g.User("hcp-2").Members {
		if m.Invitation != nil {
			t.Fatalf("accepted membership must not carry an invitation: %+v", m)
		}
	}
}

func TestAttachInvitationRespectsTeamScope(t *testing.T) {
	raw := []TeamDTO{
		{ID: "team-1", Type: TypeMedical, Members: []MemberDTO{
			memberDTO("team-1", "hcp-9", RoleMember, StatusPending),
		}},
		{ID: "team-2", Type: TypeMedical, Members: []MemberDTO{
			memberDTO("team-2", "hcp-9", RoleMember, StatusPending),
		}},
	}
	g := Build(testSession, raw)
	g.AttachInvitations([]notification.Invitation{
		invitation("inv-1", notification.TypeTeamInvitation, "hcp-9@clinic.example", "team-2"),
	})

	u := g.User("hcp-9")
	for _, m := range u.Members {
		switch m.TeamID {
		case "team-2":
			if m.Invitation == nil {
				t.Error("scoped invitation missing on team-2 membership")
			}
		default:
			if m.Invitation != nil {
				t.Errorf("invitation leaked onto %q membership", m.TeamID)
			}
		}
	}
}

func TestAttachInvitationWithoutTargetMatchesAllPending(t *testing.T) {
	raw := []TeamDTO{
		{ID: "team-1", Type: TypeMedical, Members: []MemberDTO{
			memberDTO("team-1", "pat-9", RolePatient, StatusPending),
		}},
	}
	g := Build(testSession, raw)
	g.AttachInvitations([]notification.Invitation{
		invitation("inv-1", notification.TypeDirectShare, "pat-9@clinic.example", ""),
	})

	if g.User("pat-9").Members[0].Invitation == nil {
		t.Fatal("untargeted invitation should attach to pending membership")
	}
}

func TestAttachInvitationCreatesPlaceholderUser(t *testing.T) {
	g := Build(testSession, twoTeamDTOs())
	g.AttachInvitations([]notification.Invitation{
		invitation("inv-1", notification.TypePatientInvitation, "new@patient.example", "team-1"),
	})

	u := g.userByEmail("new@patient.example")
	if u == nil {
		t.Fatal("placeholder user not created")
	}
	if u.Profile != nil {
		t.Error("placeholder user should have no profile")
	}
	if u.Role != UserRolePatient {
		t.Errorf("placeholder role = %s, want patient", u.Role)
	}
	if len(u.Members) != 1 {
		t.Fatalf("expected a single pending membership, got %d", len(u.Members))
	}
	m := u.Members[0]
	if m.Status != StatusPending || m.TeamID != "team-1" || m.Invitation == nil {
		t.Errorf("unexpected placeholder membership: %+v", m)
	}
	// Team side must reference the same instance.
	found := false
	for _, tm := range g.Team("team-1").Members {
		if tm == m {
			found = true
		}
	}
	if !found {
		t.Error("placeholder membership missing from team side")
	}
}

func TestAttachDirectShareWithoutTeam(t *testing.T) {
	g := Build(testSession, twoTeamDTOs())
	g.AttachInvitations([]notification.Invitation{
		invitation("inv-1", notification.TypeDirectShare, "caregiver@example.com", ""),
	})

	u := g.userByEmail("caregiver@example.com")
	if u == nil {
		t.Fatal("placeholder user not created")
	}
	if len(u.Members) != 1 || u.Members[0].TeamID != "" {
		t.Fatalf("direct share should yield a team-less membership: %+v", u.Members)
	}
}
