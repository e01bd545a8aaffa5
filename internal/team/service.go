package team

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careloop/internal/notification"
	"golang.org/x/sync/errgroup"
)

// State is the orchestrator's reconciliation state.
type State int

const (
	// StateIdle means the published graph is current and no pass is running.
	StateIdle State = iota
	// StateLoading means a full reconciliation pass is in flight.
	StateLoading
)

// TeamClient is the team/roster backend the orchestrator consumes.
type TeamClient interface {
	FetchTeams(ctx context.Context) ([]TeamDTO, error)
	FetchRoster(ctx context.Context) ([]MemberDTO, error)
	CreateTeam(ctx context.Context, in CreateTeamInput) (TeamDTO, error)
	EditTeam(ctx context.Context, in EditTeamInput) error
	LeaveTeam(ctx context.Context, teamID string) error
	DeleteTeam(ctx context.Context, teamID string) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	ChangeMemberRole(ctx context.Context, teamID, userID string, role MemberRole) error
	InvitePatient(ctx context.Context, teamID, email string) (*notification.Invitation, error)
	InviteMember(ctx context.Context, teamID, email string, role MemberRole) (*notification.Invitation, error)
}

// NotificationClient is the notification backend the orchestrator consumes.
// Ready reports whether the subsystem has finished its own initialization;
// invitations are only fetched and attached once it has.
type NotificationClient interface {
	Ready() bool
	SentInvitations(ctx context.Context) ([]notification.Invitation, error)
	CancelInvitation(ctx context.Context, id string) error
}

// FlagStore reads and writes the current user's flagged-patient list.
type FlagStore interface {
	Get(ctx context.Context, userID string) ([]string, error)
	Set(ctx context.Context, userID string, patientIDs []string) error
}

// MetricsRecorder is an optional sink for reconciliation metrics.
type MetricsRecorder interface {
	ObservePass(result string, seconds float64)
	SetGraphSize(teams, users, patients int)
	AddRosterAnomalies(n int)
	IncFlagRepair()
	IncMutation(op, result string)
}

// CreateTeamInput holds the fields required to create a medical team.
type CreateTeamInput struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email,omitempty"`
	Address *Address `json:"address"`
}

// EditTeamInput holds the mutable fields of an existing team.
type EditTeamInput struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email,omitempty"`
	Address *Address `json:"address"`
}

// Service orchestrates reconciliation passes and keeps the published graph
// consistent with the backend after each successful mutating operation.
// All methods are safe for concurrent use; the single-flight state lives
// on the instance so independent Services never interfere.
type Service struct {
	session  Session
	teams    TeamClient
	notifier NotificationClient
	flags    FlagStore
	metrics  MetricsRecorder

	mu      sync.RWMutex
	state   State
	graph   *Graph
	lastErr error
	flagged []string
}

// NewService creates an orchestrator for the given session and backends.
func NewService(session Session, teams TeamClient, notifier NotificationClient, flags FlagStore) *Service {
	return &Service{
		session:  session,
		teams:    teams,
		notifier: notifier,
		flags:    flags,
	}
}

// SetMetrics sets the optional metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// State returns the current reconciliation state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error of the last failed pass, or nil after a success.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Initialized reports whether a graph has been published at least once.
func (s *Service) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph != nil
}

// Refresh runs a full reconciliation pass. A trigger that arrives while a
// pass is already loading is dropped, not queued: callers that need the
// result of a dropped trigger must poll State and re-trigger. Without
// force, a refresh after successful initialization is a no-op.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return nil
	}
	if s.graph != nil && !force {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	start := time.Now()
	graph, flagged, err := s.reconcile(ctx)

	s.mu.Lock()
	s.state = StateIdle
	if err != nil {
		s.lastErr = err
		if s.graph == nil {
			// First load failed: publish an empty graph so reads work
			// while the caller retries.
			s.graph = NewGraph(s.session)
		}
		s.mu.Unlock()
		s.observePass("error", time.Since(start))
		return err
	}
	s.graph = graph
	s.flagged = flagged
	s.lastErr = nil
	s.mu.Unlock()

	s.observePass("success", time.Since(start))
	if s.metrics != nil {
		s.metrics.SetGraphSize(len(graph.Teams()), graph.NumUsers(), len(graph.Patients()))
	}
	return nil
}

// reconcile is one fetch-build-merge-attach cycle. It builds a brand new
// graph and never touches the published one, so a failed pass leaves the
// previous graph intact.
func (s *Service) reconcile(ctx context.Context) (*Graph, []string, error) {
	var (
		rawTeams []TeamDTO
		roster   []MemberDTO
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		rawTeams, err = s.teams.FetchTeams(egCtx)
		if err != nil {
			return fmt.Errorf("fetching teams: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		roster, err = s.teams.FetchRoster(egCtx)
		if err != nil {
			return fmt.Errorf("fetching roster: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	slog.Info("reconciliation fetch complete", "teams", len(rawTeams), "rosterEntries", len(roster))

	flagged, err := s.flags.Get(ctx, s.session.UserID)
	if err != nil {
		// The flag list only feeds the repair rule; a read failure must
		// not block graph availability.
		slog.Warn("reading flagged patients failed", "error", err)
		flagged = nil
	}

	graph := Build(s.session, rawTeams)
	missing, anomalies := graph.MergeRoster(roster, s.session, flagged)
	if anomalies > 0 && s.metrics != nil {
		s.metrics.AddRosterAnomalies(anomalies)
	}

	valid := ReconcileFlags(flagged, missing)
	if len(missing) > 0 {
		slog.Warn("flagged patients missing from roster, repairing", "missing", missing)
		if err := s.flags.Set(ctx, s.session.UserID, valid); err != nil {
			slog.Warn("flag repair write failed", "error", err)
		} else if s.metrics != nil {
			s.metrics.IncFlagRepair()
		}
	}

	if s.notifier != nil && s.notifier.Ready() {
		invitations, err := s.notifier.SentInvitations(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching sent invitations: %w", err)
		}
		graph.AttachInvitations(invitations)
	}

	return graph, valid, nil
}

// guard rejects mutating operations while the graph is unavailable.
func (s *Service) guard() error {
	if s.state == StateLoading {
		return ErrReloadInProgress
	}
	if s.graph == nil {
		return ErrNotInitialized
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read queries over the published graph
// ---------------------------------------------------------------------------

// Teams returns the published teams, private team first.
func (s *Service) Teams() []*Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.Teams()
}

// Team returns a published team by identifier, or nil.
func (s *Service) Team(id string) *Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.Team(id)
}

// User returns a published user by identifier, or nil.
func (s *Service) User(id string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.User(id)
}

// MedicalTeams returns the backend-owned teams.
func (s *Service) MedicalTeams() []*Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.MedicalTeams()
}

// Patients returns the distinct patients across all teams.
func (s *Service) Patients() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.Patients()
}

// FlaggedPatients returns the flagged patient identifiers as of the last
// pass or flag mutation.
func (s *Service) FlaggedPatients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.flagged))
	copy(ids, s.flagged)
	return ids
}

// ---------------------------------------------------------------------------
// Mutating operations. Each one validates against the published graph,
// performs its backend call, and on success patches the graph in place.
// On failure the graph is left unmodified. Mutations are not serialized
// against each other; last write wins.
// ---------------------------------------------------------------------------

// InvitePatient invites a patient by email into a team. The membership is
// created pending, with the returned invitation attached immediately.
func (s *Service) InvitePatient(ctx context.Context, teamID, email string) error {
	if err := s.inviteInto(ctx, teamID, email, RolePatient); err != nil {
		s.incMutation("invite_patient", err)
		return err
	}
	s.incMutation("invite_patient", nil)
	return nil
}

// InviteMember invites a professional by email into a team with the given
// non-patient role.
func (s *Service) InviteMember(ctx context.Context, teamID, email string, role MemberRole) error {
	if role == RolePatient || (role != RoleAdmin && role != RoleMember && role != RoleViewer) {
		return ErrInvalidMemberRole
	}
	if err := s.inviteInto(ctx, teamID, email, role); err != nil {
		s.incMutation("invite_member", err)
		return err
	}
	s.incMutation("invite_member", nil)
	return nil
}

func (s *Service) inviteInto(ctx context.Context, teamID, email string, role MemberRole) error {
	if email == "" {
		return ErrEmailRequired
	}
	s.mu.RLock()
	err := s.guard()
	if err == nil && s.graph.Team(teamID) == nil {
		err = ErrTeamNotFound
	}
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	var inv *notification.Invitation
	if role == RolePatient {
		inv, err = s.teams.InvitePatient(ctx, teamID, email)
	} else {
		inv, err = s.teams.InviteMember(ctx, teamID, email, role)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.graph.Team(teamID)
	if t == nil {
		return ErrTeamNotFound
	}
	u := s.graph.userByEmail(email)
	if u == nil {
		u = &User{ID: email, Username: email, Role: userRoleFor(role)}
		s.graph.users[u.ID] = u
	}
	m := &Member{
		TeamID:     t.ID,
		UserID:     u.ID,
		Role:       role,
		Status:     StatusPending,
		Invitation: inv,
	}
	t.Members = append(t.Members, m)
	u.Members = append(u.Members, m)
	return nil
}

// CreateTeam validates the input, creates the team on the backend, and
// appends the returned team to the published graph.
func (s *Service) CreateTeam(ctx context.Context, in CreateTeamInput) (*Team, error) {
	if err := validateCreateTeam(in); err != nil {
		s.incMutation("create_team", err)
		return nil, err
	}
	s.mu.RLock()
	err := s.guard()
	s.mu.RUnlock()
	if err != nil {
		s.incMutation("create_team", err)
		return nil, err
	}

	dto, err := s.teams.CreateTeam(ctx, in)
	if err != nil {
		s.incMutation("create_team", err)
		return nil, err
	}

	s.mu.Lock()
	t := s.graph.AddTeamDTO(dto)
	s.mu.Unlock()
	s.incMutation("create_team", nil)
	return t, nil
}

func validateCreateTeam(in CreateTeamInput) error {
	if in.Name == "" {
		return ErrNameRequired
	}
	if in.Phone == "" {
		return ErrPhoneRequired
	}
	if in.Address == nil {
		return ErrAddressRequired
	}
	return nil
}

// EditTeam updates the mutable fields of a team in place. The Team
// reference is never replaced, so membership back-references stay valid.
func (s *Service) EditTeam(ctx context.Context, in EditTeamInput) error {
	s.mu.RLock()
	err := s.guard()
	if err == nil && s.graph.Team(in.ID) == nil {
		err = ErrTeamNotFound
	}
	s.mu.RUnlock()
	if err != nil {
		s.incMutation("edit_team", err)
		return err
	}

	if err := s.teams.EditTeam(ctx, in); err != nil {
		s.incMutation("edit_team", err)
		return err
	}

	s.mu.Lock()
	if t := s.graph.Team(in.ID); t != nil {
		t.Name = in.Name
		t.Phone = in.Phone
		t.Address = in.Address
		if in.Email != "" {
			t.Email = in.Email
		}
	}
	s.mu.Unlock()
	s.incMutation("edit_team", nil)
	return nil
}

// LeaveTeam removes the current user from a team. When the current user is
// the sole accepted clinician-role member left, the whole team is deleted
// on the backend instead. Either way the team disappears from the
// published graph.
func (s *Service) LeaveTeam(ctx context.Context, teamID string) error {
	s.mu.RLock()
	err := s.guard()
	var deleteWholeTeam bool
	if err == nil {
		t := s.graph.Team(teamID)
		switch {
		case t == nil:
			err = ErrTeamNotFound
		case !s.graph.memberOf(t, s.session.UserID):
			err = ErrNotTeamMember
		default:
			deleteWholeTeam = soleClinician(t, s.session.UserID)
		}
	}
	s.mu.RUnlock()
	if err != nil {
		s.incMutation("leave_team", err)
		return err
	}

	if deleteWholeTeam {
		err = s.teams.DeleteTeam(ctx, teamID)
	} else {
		err = s.teams.LeaveTeam(ctx, teamID)
	}
	if err != nil {
		s.incMutation("leave_team", err)
		return err
	}

	s.mu.Lock()
	if t := s.graph.Team(teamID); t != nil {
		s.graph.removeTeam(t)
	}
	s.mu.Unlock()
	s.incMutation("leave_team", nil)
	return nil
}

// memberOf reports whether userID has any membership in t.
func (g *Graph) memberOf(t *Team, userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// soleClinician reports whether userID is the only accepted non-patient
// member of t.
func soleClinician(t *Team, userID string) bool {
	clinicians := 0
	mine := false
	for _, m := range t.Members {
		if m.Role == RolePatient || m.Status != StatusAccepted {
			continue
		}
		clinicians++
		mine = mine || m.UserID == userID
	}
	return clinicians == 1 && mine
}

// RemoveMember removes a professional member from a team. A pending
// membership has its underlying invitation cancelled before removal.
func (s *Service) RemoveMember(ctx context.Context, teamID, userID string) error {
	return s.removeMembership(ctx, "remove_member", teamID, userID, false)
}

// RemovePatient removes a patient membership from a team. When the patient
// ends up with no membership at all and was flagged, the flag is removed
// from the preference store as well.
func (s *Service) RemovePatient(ctx context.Context, teamID, userID string) error {
	return s.removeMembership(ctx, "remove_patient", teamID, userID, true)
}

func (s *Service) removeMembership(ctx context.Context, op, teamID, userID string, patient bool) error {
	s.mu.RLock()
	err := s.guard()
	var member *Member
	if err == nil {
		t := s.graph.Team(teamID)
		if t == nil {
			err = ErrTeamNotFound
		} else {
			member = findMember(t, userID)
			if member == nil {
				err = ErrMemberNotFound
			}
		}
	}
	s.mu.RUnlock()
	if err != nil {
		s.incMutation(op, err)
		return err
	}

	// Pending member: the invitation must be cancelled before the
	// membership record goes away, or it would linger in the
	// notification backend with nothing to attach to.
	if member.Status == StatusPending && member.Invitation != nil && s.notifier != nil {
		if err := s.notifier.CancelInvitation(ctx, member.Invitation.ID); err != nil {
			s.incMutation(op, err)
			return fmt.Errorf("cancelling invitation: %w", err)
		}
	}

	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		s.incMutation(op, err)
		return err
	}

	s.mu.Lock()
	s.graph.removeMember(member)
	var unflag bool
	if patient {
		u := s.graph.User(userID)
		unflag = (u == nil || len(u.Members) == 0) && containsID(s.flagged, userID)
		if unflag {
			s.flagged = deleteID(s.flagged, userID)
		}
	}
	flagged := s.flagged
	s.mu.Unlock()

	if unflag {
		// Best effort, like the pass-time flag repair.
		if err := s.flags.Set(ctx, s.session.UserID, flagged); err != nil {
			slog.Warn("unflagging removed patient failed", "userId", userID, "error", err)
		}
	}
	s.incMutation(op, nil)
	return nil
}

func findMember(t *Team, userID string) *Member {
	for _, m := range t.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// ChangeMemberRole switches a member's role in place. Collection
// membership does not change.
func (s *Service) ChangeMemberRole(ctx context.Context, teamID, userID string, role MemberRole) error {
	if role == RolePatient || (role != RoleAdmin && role != RoleMember && role != RoleViewer) {
		return ErrInvalidMemberRole
	}
	s.mu.RLock()
	err := s.guard()
	if err == nil {
		t := s.graph.Team(teamID)
		if t == nil {
			err = ErrTeamNotFound
		} else if findMember(t, userID) == nil {
			err = ErrMemberNotFound
		}
	}
	s.mu.RUnlock()
	if err != nil {
		s.incMutation("change_role", err)
		return err
	}

	if err := s.teams.ChangeMemberRole(ctx, teamID, userID, role); err != nil {
		s.incMutation("change_role", err)
		return err
	}

	s.mu.Lock()
	if t := s.graph.Team(teamID); t != nil {
		if m := findMember(t, userID); m != nil {
			m.Role = role
		}
	}
	s.mu.Unlock()
	s.incMutation("change_role", nil)
	return nil
}

// FlagPatient adds a patient identifier to the current user's flagged
// list and persists it.
func (s *Service) FlagPatient(ctx context.Context, userID string) error {
	s.mu.Lock()
	if containsID(s.flagged, userID) {
		s.mu.Unlock()
		return nil
	}
	next := append(append([]string(nil), s.flagged...), userID)
	s.mu.Unlock()

	if err := s.flags.Set(ctx, s.session.UserID, next); err != nil {
		return fmt.Errorf("persisting flags: %w", err)
	}
	s.mu.Lock()
	s.flagged = next
	s.mu.Unlock()
	return nil
}

// UnflagPatient removes a patient identifier from the flagged list and
// persists the change.
func (s *Service) UnflagPatient(ctx context.Context, userID string) error {
	s.mu.Lock()
	if !containsID(s.flagged, userID) {
		s.mu.Unlock()
		return nil
	}
	next := deleteID(append([]string(nil), s.flagged...), userID)
	s.mu.Unlock()

	if err := s.flags.Set(ctx, s.session.UserID, next); err != nil {
		return fmt.Errorf("persisting flags: %w", err)
	}
	s.mu.Lock()
	s.flagged = next
	s.mu.Unlock()
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Service) observePass(result string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObservePass(result, elapsed.Seconds())
	}
}

func (s *Service) incMutation(op string, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.IncMutation(op, result)
}
