package identity

import "strings"

// Resolve finds the single roster entry that is the data subject.
//
// Candidates are collected with the full matching ladder (email equality,
// exact name, bidirectional containment, 2+ significant token overlap).
// Exactly one candidate resolves immediately. With multiple candidates a
// supplied target email wins if it matches exactly one of them; otherwise
// resolution fails with *AmbiguousMatchError. Zero candidates fail with
// *NotFoundError. Ambiguity is terminal: there is no retry logic here,
// the caller re-invokes with a narrowing email.
func Resolve(roster []Identity, targetName, targetEmail string) (Identity, error) {
	target := NewSubject("", targetName, targetEmail)

	var candidates []Identity
	for _, entry := range roster {
		if matches(target, entry, targetName) {
			candidates = append(candidates, entry)
		}
	}

	switch len(candidates) {
	case 0:
		return Identity{}, &NotFoundError{Name: targetName}
	case 1:
		return candidates[0], nil
	}

	// Email is authoritative: if exactly one candidate carries the target
	// email, it wins regardless of name collisions among the rest.
	if targetEmail != "" {
		var byEmail []Identity
		for _, c := range candidates {
			if c.Email != "" && strings.EqualFold(c.Email, targetEmail) {
				byEmail = append(byEmail, c)
			}
		}
		if len(byEmail) == 1 {
			return byEmail[0], nil
		}
	}

	return Identity{}, &AmbiguousMatchError{Name: targetName, Candidates: candidates}
}

// matches reports whether a roster entry could be the target. Email
// equality short-circuits name signals entirely; name matching runs the
// bidirectional containment and fuzzy token-overlap checks against the
// candidate's name in both directions.
func matches(target Subject, entry Identity, targetName string) bool {
	if entry.Email != "" && target.Email != "" && strings.EqualFold(entry.Email, target.Email) {
		return true
	}
	if entry.Name == "" || targetName == "" {
		return false
	}
	// Containment is checked by Subject.Is in both directions already;
	// fuzzy overlap is symmetric by construction.
	return target.IsFuzzy(entry.Name, "")
}
