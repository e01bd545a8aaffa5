package team

// ReconcileFlags computes the flagged patient identifiers that are still
// valid after a pass: the flagged set minus the identifiers the roster
// merge never encountered. Order is preserved. The caller persists the
// result back to the preference store only when something was removed.
func ReconcileFlags(flagged, missing []string) []string {
	if len(missing) == 0 {
		valid := make([]string, len(flagged))
		copy(valid, flagged)
		return valid
	}
	gone := make(map[string]bool, len(missing))
	for _, id := range missing {
		gone[id] = true
	}
	valid := make([]string, 0, len(flagged))
	for _, id := range flagged {
		if !gone[id] {
			valid = append(valid, id)
		}
	}
	return valid
}
