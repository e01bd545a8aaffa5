package team

import "log/slog"

// MergeRoster folds the separately fetched patient-roster records into the
// graph. It returns the subset of flagged patient identifiers that were
// never encountered (candidates for flag repair, see ReconcileFlags) and
// the number of referential anomalies that were recovered.
//
// Two repair rules apply:
//   - a patient current user whose own membership is missing from the
//     roster gets one synthesized accepted entry per fetched medical team;
//   - an entry referencing an unknown team is filed under the private team
//     instead of being dropped.
func (g *Graph) MergeRoster(roster []MemberDTO, current Session, flagged []string) (missing []string, anomalies int) {
	entries := g.repairSelfMembership(roster, current)

	missing = make([]string, len(flagged))
	copy(missing, flagged)

	for _, entry := range entries {
		missing = deleteID(missing, entry.UserID)

		t, ok := g.teamIndex[entry.TeamID]
		if !ok {
			slog.Warn("roster entry references unknown team, using private team",
				"teamId", entry.TeamID,
				"userId", entry.UserID,
			)
			t = g.teamIndex[PrivateTeamID]
			anomalies++
		}
		g.addMember(t, entry)
	}
	return missing, anomalies
}

// repairSelfMembership compensates for a backend that omits a patient's
// own roster entries. When the current user is a patient and no roster
// record names them, one accepted patient entry per medical team is
// synthesized from the session profile.
func (g *Graph) repairSelfMembership(roster []MemberDTO, current Session) []MemberDTO {
	if current.Role != UserRolePatient {
		return roster
	}
	for _, entry := range roster {
		if entry.UserID == current.UserID {
			return roster
		}
	}

	entries := make([]MemberDTO, 0, len(roster))
	entries = append(entries, roster...)
	for _, t := range g.teams {
		if t.Type != TypeMedical {
			continue
		}
		slog.Warn("roster omits current patient, synthesizing membership",
			"userId", current.UserID,
			"teamId", t.ID,
		)
		entries = append(entries, MemberDTO{
			TeamID:      t.ID,
			UserID:      current.UserID,
			Email:       current.Username,
			Role:        RolePatient,
			Status:      StatusAccepted,
			Profile:     current.Profile,
			Preferences: current.Preferences,
			Settings:    current.Settings,
		})
	}
	return entries
}

func deleteID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
