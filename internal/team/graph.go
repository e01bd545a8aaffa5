package team

// Graph is the reconciled in-memory view of teams, users and memberships
// produced by one reconciliation pass. Teams keep their fetch order; users
// live in an identity map so a person appearing in several teams resolves
// to a single User instance.
type Graph struct {
	teams     []*Team
	teamIndex map[string]*Team
	users     map[string]*User
}

// NewGraph creates a graph holding only the synthetic private team of the
// session owner.
func NewGraph(owner Session) *Graph {
	g := &Graph{
		teamIndex: make(map[string]*Team),
		users:     make(map[string]*User),
	}
	g.addTeam(&Team{
		ID:      PrivateTeamID,
		Name:    PrivateTeamID,
		Code:    PrivateTeamID,
		Type:    TypePrivate,
		OwnerID: owner.UserID,
	})
	return g
}

// Build converts raw team records into a graph. The private team always
// comes first; backend teams follow in fetch order, their memberships in
// DTO order.
func Build(owner Session, raw []TeamDTO) *Graph {
	g := NewGraph(owner)
	for _, dto := range raw {
		g.AddTeamDTO(dto)
	}
	return g
}

// AddTeamDTO converts a single raw team and its memberships and appends it
// to the graph. This is also the path used when a create-team operation
// succeeds.
func (g *Graph) AddTeamDTO(dto TeamDTO) *Team {
	t := &Team{
		ID:      dto.ID,
		Name:    dto.Name,
		Code:    dto.Code,
		Type:    dto.Type,
		OwnerID: dto.OwnerID,
		Address: dto.Address,
		Phone:   dto.Phone,
		Email:   dto.Email,
	}
	g.addTeam(t)
	for _, m := range dto.Members {
		g.addMember(t, m)
	}
	return t
}

func (g *Graph) addTeam(t *Team) {
	g.teams = append(g.teams, t)
	g.teamIndex[t.ID] = t
}

// addMember links the membership record to the team and to the (looked-up
// or newly created) user. A user listed twice in the same team yields two
// Member entries; the upstream data is taken as-is and deduplication is
// left to the callers that need distinct users.
func (g *Graph) addMember(t *Team, dto MemberDTO) *Member {
	u := g.lookupOrCreateUser(dto)
	m := &Member{
		TeamID: t.ID,
		UserID: u.ID,
		Role:   dto.Role,
		Status: dto.Status,
	}
	t.Members = append(t.Members, m)
	u.Members = append(u.Members, m)
	return m
}

// lookupOrCreateUser resolves the membership's user through the identity
// map, creating the User on first encounter. Later encounters reuse the
// existing record unchanged, whichever source produced it first.
func (g *Graph) lookupOrCreateUser(dto MemberDTO) *User {
	if u, ok := g.users[dto.UserID]; ok {
		return u
	}
	u := &User{
		ID:          dto.UserID,
		Username:    dto.Email,
		Role:        userRoleFor(dto.Role),
		Profile:     dto.Profile,
		Preferences: dto.Preferences,
		Settings:    dto.Settings,
	}
	g.users[u.ID] = u
	return u
}

// userRoleFor derives an account role from the first membership role seen
// for a user. The sources embed no account role of their own.
func userRoleFor(r MemberRole) UserRole {
	switch r {
	case RolePatient:
		return UserRolePatient
	case RoleAdmin:
		return UserRoleClinicianAdmin
	case RoleViewer:
		return UserRoleViewer
	default:
		return UserRoleClinician
	}
}

// removeMember deletes m from both the owning team's and the owning
// user's collections. Both sides are updated or neither.
func (g *Graph) removeMember(m *Member) {
	if t, ok := g.teamIndex[m.TeamID]; ok {
		t.Members = deleteMember(t.Members, m)
	}
	if u, ok := g.users[m.UserID]; ok {
		u.Members = deleteMember(u.Members, m)
	}
}

// removeTeam detaches every membership of the team from its user, then
// drops the team itself from the ordered list and the index.
func (g *Graph) removeTeam(t *Team) {
	for _, m := range t.Members {
		if u, ok := g.users[m.UserID]; ok {
			u.Members = deleteMember(u.Members, m)
		}
	}
	t.Members = nil
	delete(g.teamIndex, t.ID)
	for i, existing := range g.teams {
		if existing == t {
			g.teams = append(g.teams[:i], g.teams[i+1:]...)
			break
		}
	}
}

func deleteMember(members []*Member, target *Member) []*Member {
	for i, m := range members {
		if m == target {
			return append(members[:i], members[i+1:]...)
		}
	}
	return members
}
