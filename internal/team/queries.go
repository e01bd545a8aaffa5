package team

// Teams returns the published teams in order: the private team first, then
// backend teams in fetch order.
func (g *Graph) Teams() []*Team {
	return g.teams
}

// Team returns the team with the given identifier, or nil.
func (g *Graph) Team(id string) *Team {
	return g.teamIndex[id]
}

// User returns the user with the given identifier, or nil.
func (g *Graph) User(id string) *User {
	return g.users[id]
}

// MedicalTeams returns the backend-owned teams, excluding the private one.
func (g *Graph) MedicalTeams() []*Team {
	teams := make([]*Team, 0, len(g.teams))
	for _, t := range g.teams {
		if t.Type == TypeMedical {
			teams = append(teams, t)
		}
	}
	return teams
}

// Patients returns the distinct users holding a patient membership in any
// team, in team-then-member encounter order.
func (g *Graph) Patients() []*User {
	seen := make(map[string]bool)
	var patients []*User
	for _, t := range g.teams {
		for _, m := range t.Members {
			if m.Role != RolePatient || seen[m.UserID] {
				continue
			}
			seen[m.UserID] = true
			if u, ok := g.users[m.UserID]; ok {
				patients = append(patients, u)
			}
		}
	}
	return patients
}

// NumUsers returns the size of the identity map.
func (g *Graph) NumUsers() int {
	return len(g.users)
}
