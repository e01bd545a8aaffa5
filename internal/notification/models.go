package notification

import "time"

// Type classifies an invitation sent through the notification backend.
type Type string

const (
	// TypeDirectShare is a patient inviting a caregiver to view their data
	// directly, outside any care team.
	TypeDirectShare Type = "careteam_invitation"
	// TypeTeamInvitation invites a clinician to join a care team.
	TypeTeamInvitation Type = "medicalteam_invitation"
	// TypePatientInvitation invites a patient to share data with a care team.
	TypePatientInvitation Type = "medicalteam_patient_invitation"
)

// Target identifies the care team an invitation applies to. Direct-share
// invitations carry no target.
type Target struct {
	ID   string `json:"teamId"`
	Name string `json:"teamName"`
}

// Invitation is a pending invite sent by the current user, as returned by
// the notification backend.
type Invitation struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	CreatorID string    `json:"creatorId"`
	Email     string    `json:"email"`
	Target    *Target   `json:"target,omitempty"`
	Created   time.Time `json:"created"`
}

// ForPatient reports whether the invitation targets a patient rather than a
// care-team professional.
func (i *Invitation) ForPatient() bool {
	return i.Type == TypePatientInvitation || i.Type == TypeDirectShare
}

// Matches reports whether the invitation applies to the membership
// identified by teamID. An invitation without a target matches any team.
func (i *Invitation) Matches(teamID string) bool {
	return i.Target == nil || i.Target.ID == teamID
}
