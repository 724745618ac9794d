// Package identity models the people appearing in a vendor export and
// resolves which roster entry is the data subject of a DSAR.
//
// Resolution is deliberately conservative: an exact email match is
// authoritative, name matching tolerates word-order and middle-name
// differences, and anything still ambiguous is a terminal error the
// caller must resolve by supplying a disambiguating email (GDPR Art. 12(6)
// allows requesting additional information to confirm identity).
package identity

import "strings"

// Category classifies an identity for redaction labeling. Labels are
// allocated per category, so "[User 3]" and "[Bot 1]" can coexist.
type Category string

const (
	CategoryDataSubject Category = "data_subject"
	CategoryUser        Category = "user"
	CategoryBot         Category = "bot"
	CategoryExternal    Category = "external"
	CategoryEmail       Category = "email_only"
	CategoryPhone       Category = "phone_only"
)

// Label returns the human-readable word used inside redaction labels,
// e.g. CategoryEmail yields "Email" for labels like "[Email 2]".
func (c Category) Label() string {
	switch c {
	case CategoryUser:
		return "User"
	case CategoryBot:
		return "Bot"
	case CategoryExternal:
		return "External"
	case CategoryEmail:
		return "Email"
	case CategoryPhone:
		return "Phone"
	default:
		return "User"
	}
}

// Identity is one person (or bot) known to a vendor export. ID is the
// source-native identifier and may be empty for entries discovered only
// through free text.
type Identity struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Category Category `json:"category,omitempty"`
}

// Display renders the identity for human review, e.g. in ambiguity errors
// and the internal redaction key.
func (i Identity) Display() string {
	name := i.Name
	if name == "" {
		name = "Unknown"
	}
	contact := i.Email
	if contact == "" {
		contact = i.ID
	}
	if contact == "" {
		return name
	}
	return name + " (" + contact + ")"
}

// Subject is the resolved data subject. It is the one identity that must
// never be redacted, and the anchor every relevance decision is made against.
type Subject struct {
	ID    string
	Name  string
	Email string

	nameTokens map[string]struct{}
}

// NewSubject builds a Subject with precomputed significant name tokens
// (tokens longer than 2 characters, lowercased) for fuzzy matching.
func NewSubject(id, name, email string) Subject {
	return Subject{
		ID:         id,
		Name:       name,
		Email:      email,
		nameTokens: significantTokens(name),
	}
}

// Is reports whether the given name/email identifies the data subject.
// It applies the strict rules used when seeding the redaction map: exact
// email equality, exact name equality, or bidirectional name containment.
// All comparisons are case-insensitive.
func (s Subject) Is(name, email string) bool {
	if email != "" && s.Email != "" && strings.EqualFold(email, s.Email) {
		return true
	}
	if name == "" || s.Name == "" {
		return false
	}
	nameLower := strings.ToLower(name)
	subjLower := strings.ToLower(s.Name)
	if nameLower == subjLower {
		return true
	}
	return strings.Contains(nameLower, subjLower) || strings.Contains(subjLower, nameLower)
}

// IsFuzzy extends Is with the token-overlap fallback: at least two
// significant name tokens shared between the candidate and the subject.
// Used during roster resolution, where recall matters more than precision.
func (s Subject) IsFuzzy(name, email string) bool {
	if s.Is(name, email) {
		return true
	}
	if name == "" {
		return false
	}
	overlap := 0
	for tok := range significantTokens(name) {
		if _, ok := s.nameTokens[tok]; ok {
			overlap++
			if overlap >= 2 {
				return true
			}
		}
	}
	return false
}

// significantTokens splits a name into lowercased tokens longer than 2
// characters. Short tokens ("al", "de", initials) produce too many false
// positives to be useful as match signals.
func significantTokens(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(name) {
		if len(tok) > 2 {
			tokens[strings.ToLower(tok)] = struct{}{}
		}
	}
	return tokens
}
