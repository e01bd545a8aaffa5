package team

import "github.com/careloop/careloop/internal/notification"

// Type distinguishes the synthetic private team from backend-owned teams.
type Type string

const (
	TypePrivate Type = "private"
	TypeMedical Type = "medical"
)

// PrivateTeamID is the reserved identifier of the per-user private team.
// The backend never returns it and the reconciler never removes it.
const PrivateTeamID = "private"

// MemberRole is the role a membership carries within one team.
type MemberRole string

const (
	RoleAdmin   MemberRole = "admin"
	RoleMember  MemberRole = "member"
	RoleViewer  MemberRole = "viewer"
	RolePatient MemberRole = "patient"
)

// MemberStatus tracks whether an invitation to join has been accepted.
type MemberStatus string

const (
	StatusPending  MemberStatus = "pending"
	StatusAccepted MemberStatus = "accepted"
)

// UserRole is the account-level role of a person.
type UserRole string

const (
	UserRolePatient        UserRole = "patient"
	UserRoleClinician      UserRole = "clinician"
	UserRoleClinicianAdmin UserRole = "clinician-admin"
	UserRoleViewer         UserRole = "viewer"
	UserRoleCaregiver      UserRole = "caregiver"
)

// Address holds the postal contact fields of a medical team.
type Address struct {
	Line1   string `json:"line1" yaml:"line1"`
	Line2   string `json:"line2,omitempty" yaml:"line2"`
	Zip     string `json:"zip" yaml:"zip"`
	City    string `json:"city" yaml:"city"`
	Country string `json:"country" yaml:"country"`
}

// Profile is the display profile of a user.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty"`
}

// Preferences holds per-user display preferences.
type Preferences struct {
	DisplayLanguageCode string `json:"displayLanguageCode,omitempty"`
}

// Settings holds per-user medical settings.
type Settings struct {
	Country string `json:"country,omitempty"`
	Units   string `json:"units,omitempty"`
}

// User is a person who participates in at least one team. A given user
// identifier maps to exactly one User instance per reconciliation pass.
type User struct {
	ID          string       `json:"userId"`
	Username    string       `json:"username"`
	Role        UserRole     `json:"role"`
	Profile     *Profile     `json:"profile,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
	Settings    *Settings    `json:"settings,omitempty"`

	// Members holds one back-reference per team the user belongs to,
	// in encounter order. Each element is shared with the owning
	// Team.Members slice.
	Members []*Member `json:"members"`
}

// InTeam reports whether the user has a membership in the given team.
func (u *User) InTeam(teamID string) bool {
	for _, m := range u.Members {
		if m.TeamID == teamID {
			return true
		}
	}
	return false
}

// HasPendingInvitation reports whether any of the user's memberships is
// still pending.
func (u *User) HasPendingInvitation() bool {
	for _, m := range u.Members {
		if m.Status == StatusPending {
			return true
		}
	}
	return false
}

// Team is a collaboration unit owning an ordered set of memberships.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Code    string   `json:"code,omitempty"`
	Type    Type     `json:"type"`
	OwnerID string   `json:"ownerId,omitempty"`
	Address *Address `json:"address,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`

	Members []*Member `json:"members"`
}

// IsAdmin reports whether userID holds the admin role in the team.
func (t *Team) IsAdmin(userID string) bool {
	for _, m := range t.Members {
		if m.Role == RoleAdmin && m.UserID == userID {
			return true
		}
	}
	return false
}

// IsOnlyAdmin reports whether userID is the one and only admin of the team.
func (t *Team) IsOnlyAdmin(userID string) bool {
	admins := 0
	mine := false
	for _, m := range t.Members {
		if m.Role == RoleAdmin {
			admins++
			mine = mine || m.UserID == userID
		}
	}
	return admins == 1 && mine
}

// MedicalMembers returns the non-patient memberships of the team.
func (t *Team) MedicalMembers() []*Member {
	members := make([]*Member, 0, len(t.Members))
	for _, m := range t.Members {
		if m.Role != RolePatient {
			members = append(members, m)
		}
	}
	return members
}

// NumMedicalMembers counts the non-patient memberships of the team.
func (t *Team) NumMedicalMembers() int {
	n := 0
	for _, m := range t.Members {
		if m.Role != RolePatient {
			n++
		}
	}
	return n
}

// Member is the many-to-many link between a User and a Team. Exactly one
// instance exists per link; it is referenced from both Team.Members and
// User.Members. It carries arena keys instead of pointers, so the graph
// stays acyclic and marshals cleanly.
type Member struct {
	TeamID     string                   `json:"teamId,omitempty"`
	UserID     string                   `json:"userId"`
	Role       MemberRole               `json:"role"`
	Status     MemberStatus             `json:"invitationStatus"`
	Invitation *notification.Invitation `json:"invitation,omitempty"`
}

// TeamDTO is a raw team record from the team source.
type TeamDTO struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Code    string      `json:"code"`
	Type    Type        `json:"type"`
	OwnerID string      `json:"ownerId"`
	Address *Address    `json:"address,omitempty"`
	Phone   string      `json:"phone,omitempty"`
	Email   string      `json:"email,omitempty"`
	Members []MemberDTO `json:"members"`
}

// MemberDTO is a raw membership record, either embedded in a TeamDTO or
// fetched on its own from the roster source.
type MemberDTO struct {
	TeamID      string       `json:"teamId"`
	UserID      string       `json:"userId"`
	Email       string       `json:"email"`
	Role        MemberRole   `json:"role"`
	Status      MemberStatus `json:"invitationStatus"`
	Profile     *Profile     `json:"profile,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
	Settings    *Settings    `json:"settings,omitempty"`
}

// Session identifies the signed-in user the reconciler works on behalf of.
// Transport credentials live with the backend clients, not here.
type Session struct {
	UserID      string
	Username    string
	Role        UserRole
	Profile     *Profile
	Preferences *Preferences
	Settings    *Settings
}
