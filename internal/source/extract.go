package source

import (
	"fmt"
	"strings"

	"github.com/dativo-io/disclose/internal/identity"
	"github.com/dativo-io/disclose/internal/relevance"
)

// RawRecord is a pre-normalized candidate record: structural role fields
// resolved to identity-id strings plus one free-text body. This is the
// only shape the classifier ever sees, regardless of the export's schema.
type RawRecord struct {
	Date     string
	Type     string
	Category string
	Body     string
	Roles    []relevance.Role
}

// Roster extracts the known-identity list used to seed the redaction map.
// Entries with no id, name, or email are skipped.
func Roster(doc any, d Descriptor) ([]identity.Identity, error) {
	items, err := lookupList(doc, d.Roster.Path)
	if err != nil {
		return nil, fmt.Errorf("source %s roster: %w", d.Name, err)
	}

	var roster []identity.Identity
	for _, item := range items {
		id := lookupString(item, d.Roster.ID)
		name := lookupString(item, d.Roster.Name)
		email := lookupString(item, d.Roster.Email)
		if id == "" && name == "" && email == "" {
			continue
		}
		category := identity.CategoryUser
		if d.Roster.Bot != "" && lookupBool(item, d.Roster.Bot) {
			category = identity.CategoryBot
		}
		roster = append(roster, identity.Identity{
			ID:       id,
			Name:     name,
			Email:    email,
			Category: category,
		})
	}
	return roster, nil
}

// Records extracts and normalizes the candidate records. Body fields are
// concatenated, optionally HTML-stripped, and dates are canonicalized.
func Records(doc any, d Descriptor) ([]RawRecord, error) {
	items, err := lookupList(doc, d.Records.Path)
	if err != nil {
		return nil, fmt.Errorf("source %s records: %w", d.Name, err)
	}

	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		var parts []string
		for _, field := range d.Records.Body {
			if v := lookupString(item, field); v != "" {
				parts = append(parts, v)
			}
		}
		body := strings.Join(parts, "\n")
		if d.Records.StripHTML {
			body = StripHTML(body)
		}

		recType := lookupString(item, d.Records.Type)
		if recType == "" {
			recType = d.Records.TypeDefault
		}
		category := lookupString(item, d.Records.Category)
		if category == "" {
			category = d.Name
		}

		var roles []relevance.Role
		for _, rf := range d.Records.Roles {
			if id := lookupString(item, rf.Field); id != "" {
				roles = append(roles, relevance.Role{Kind: rf.Kind, ID: id})
			}
		}

		records = append(records, RawRecord{
			Date:     FormatDate(lookupString(item, d.Records.Date)),
			Type:     recType,
			Category: category,
			Body:     body,
			Roles:    roles,
		})
	}
	return records, nil
}

// lookupList resolves a dot path to a list of items.
func lookupList(doc any, path string) ([]any, error) {
	v := lookup(doc, path)
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("path %q is not a list", path)
	}
	return items, nil
}

// lookup walks dot-separated map keys. Returns nil when any segment is
// missing or the value is not an object. An empty path returns doc itself.
func lookup(doc any, path string) any {
	if path == "" {
		return doc
	}
	current := doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[seg]
		if current == nil {
			return nil
		}
	}
	return current
}

// lookupString resolves a path and renders scalars as strings. Numeric ids
// common in JSON exports (Zendesk requester_id) are rendered without an
// exponent or trailing zeros.
func lookupString(doc any, path string) string {
	if path == "" {
		return ""
	}
	switch v := lookup(doc, path).(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func lookupBool(doc any, path string) bool {
	switch v := lookup(doc, path).(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}
