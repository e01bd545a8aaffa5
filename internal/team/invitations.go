package team

import "github.com/careloop/careloop/internal/notification"

// AttachInvitations cross-references the pending invitations sent by the
// current user against the graph's memberships, mutating the graph in
// place. Invitations only ever attach to pending memberships within their
// scope; accepted memberships are never touched.
func (g *Graph) AttachInvitations(invitations []notification.Invitation) {
	for i := range invitations {
		inv := invitations[i]
		g.attachInvitation(&inv)
	}
}

func (g *Graph) attachInvitation(inv *notification.Invitation) {
	u := g.userByEmail(inv.Email)
	if u == nil {
		// The invitee has no membership yet: register a placeholder user
		// carrying a single pending membership.
		g.addInvitedUser(inv)
		return
	}
	for _, m := range u.Members {
		if m.Status == StatusPending && inv.Matches(m.TeamID) {
			m.Invitation = inv
		}
	}
}

// addInvitedUser creates a profile-less user for an invitation whose
// target is not in the graph. The membership joins the invitation's team
// when one is named; a direct-share invitation yields a team-less pending
// membership visible only from the user side.
func (g *Graph) addInvitedUser(inv *notification.Invitation) {
	u := &User{
		ID:       inv.Email,
		Username: inv.Email,
		Role:     UserRoleClinician,
	}
	role := RoleMember
	if inv.ForPatient() {
		u.Role = UserRolePatient
		role = RolePatient
	}
	g.users[u.ID] = u

	m := &Member{
		UserID:     u.ID,
		Role:       role,
		Status:     StatusPending,
		Invitation: inv,
	}
	if inv.Target != nil {
		if t, ok := g.teamIndex[inv.Target.ID]; ok {
			m.TeamID = t.ID
			t.Members = append(t.Members, m)
		}
	}
	u.Members = append(u.Members, m)
}

// userByEmail scans the identity map for a user whose login matches the
// invitation's target email.
func (g *Graph) userByEmail(email string) *User {
	for _, u := range g.users {
		if u.Username == email {
			return u
		}
	}
	return nil
}
