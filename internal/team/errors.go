package team

import "errors"

// Errors returned by the Service. Validation and invariant errors are
// detected before any backend call, so a caller receiving one knows the
// graph was not touched.
var (
	ErrNotInitialized    = errors.New("team graph is not initialized")
	ErrReloadInProgress  = errors.New("a reconciliation pass is in progress")
	ErrTeamNotFound      = errors.New("team not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrMemberNotFound    = errors.New("member not found in team")
	ErrNotTeamMember     = errors.New("current user is not a member of this team")
	ErrInvalidMemberRole = errors.New("role must be one of: admin, member, viewer")
	ErrNameRequired      = errors.New("team name is required")
	ErrPhoneRequired     = errors.New("team phone is required")
	ErrAddressRequired   = errors.New("team address is required")
	ErrEmailRequired     = errors.New("email is required")
)
