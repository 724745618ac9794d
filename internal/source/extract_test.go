package source

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/disclose/internal/identity"
	"github.com/dativo-io/disclose/internal/relevance"
)

func mustJSON(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func slackDescriptor() Descriptor {
	return Descriptor{
		Name:           "slack",
		MentionFormats: []string{"<@{id}>"},
		Roster: RosterMapping{
			Path:  "users",
			ID:    "id",
			Name:  "profile.real_name",
			Email: "profile.email",
			Bot:   "is_bot",
		},
		Records: RecordMapping{
			Path:        "messages",
			Date:        "ts",
			Type:        "subtype",
			TypeDefault: "message",
			Category:    "channel",
			Body:        []string{"text"},
			Roles:       []RoleField{{Kind: "author", Field: "user"}},
		},
	}
}

func TestRoster(t *testing.T) {
	doc := mustJSON(t, `{
		"users": [
			{"id": "U1", "profile": {"real_name": "Jane Doe", "email": "jane@co.com"}},
			{"id": "B1", "profile": {"real_name": "Deploy Bot"}, "is_bot": true},
			{"id": "", "profile": {}},
			{"profile": {"real_name": "No ID"}}
		]
	}`)

	roster, err := Roster(doc, slackDescriptor())
	require.NoError(t, err)
	require.Len(t, roster, 3, "fully empty entries are skipped")

	assert.Equal(t, identity.Identity{
		ID: "U1", Name: "Jane Doe", Email: "jane@co.com", Category: identity.CategoryUser,
	}, roster[0])
	assert.Equal(t, identity.CategoryBot, roster[1].Category)
	assert.Equal(t, "No ID", roster[2].Name)
}

func TestRoster_MissingPath(t *testing.T) {
	roster, err := Roster(mustJSON(t, `{"other": []}`), slackDescriptor())
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestRoster_PathNotAList(t *testing.T) {
	_, err := Roster(mustJSON(t, `{"users": {"id": "U1"}}`), slackDescriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a list")
}

func TestRecords(t *testing.T) {
	doc := mustJSON(t, `{
		"messages": [
			{"ts": "1705314600", "user": "U1", "text": "hello team"},
			{"ts": "1705314700", "user": "U2", "subtype": "channel_join", "channel": "general", "text": "joined"}
		]
	}`)

	records, err := Records(doc, slackDescriptor())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2024-01-15 10:30", records[0].Date)
	assert.Equal(t, "message", records[0].Type, "falls back to type_default")
	assert.Equal(t, "slack", records[0].Category, "falls back to descriptor name")
	assert.Equal(t, "hello team", records[0].Body)
	assert.Equal(t, []relevance.Role{{Kind: "author", ID: "U1"}}, records[0].Roles)

	assert.Equal(t, "channel_join", records[1].Type)
	assert.Equal(t, "general", records[1].Category)
}

func TestRecords_MultiFieldBody(t *testing.T) {
	d := Descriptor{
		Name: "jira",
		Records: RecordMapping{
			Path: "issues",
			Body: []string{"fields.summary", "fields.description"},
		},
	}
	doc := mustJSON(t, `{
		"issues": [
			{"fields": {"summary": "Login broken", "description": "Steps to reproduce"}},
			{"fields": {"summary": "Only a summary"}}
		]
	}`)

	records, err := Records(doc, d)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Login broken\nSteps to reproduce", records[0].Body)
	assert.Equal(t, "Only a summary", records[1].Body, "empty fields leave no blank lines")
}

func TestRecords_StripHTML(t *testing.T) {
	d := Descriptor{
		Name: "zendesk",
		Records: RecordMapping{
			Path:      "tickets",
			Body:      []string{"description"},
			StripHTML: true,
		},
	}
	doc := mustJSON(t, `{"tickets": [{"description": "<p>Hello &amp; welcome</p>"}]}`)

	records, err := Records(doc, d)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Hello & welcome", records[0].Body)
}

func TestRecords_NumericRoleIDs(t *testing.T) {
	// Zendesk emits numeric ids; JSON parses them as float64 and they must
	// round-trip as plain integer strings to match roster ids.
	d := Descriptor{
		Name: "zendesk",
		Records: RecordMapping{
			Path:  "tickets",
			Body:  []string{"subject"},
			Roles: []RoleField{{Kind: "requester", Field: "requester_id"}},
		},
	}
	doc := mustJSON(t, `{"tickets": [{"subject": "help", "requester_id": 384729384}]}`)

	records, err := Records(doc, d)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []relevance.Role{{Kind: "requester", ID: "384729384"}}, records[0].Roles)
}

func TestLookup(t *testing.T) {
	doc := mustJSON(t, `{"a": {"b": {"c": "deep"}}, "flat": "top"}`)

	assert.Equal(t, "deep", lookupString(doc, "a.b.c"))
	assert.Equal(t, "top", lookupString(doc, "flat"))
	assert.Equal(t, "", lookupString(doc, "a.missing.c"))
	assert.Equal(t, "", lookupString(doc, "flat.not_an_object"))
	assert.Equal(t, "", lookupString(doc, ""))
	assert.Equal(t, doc, lookup(doc, ""))
}

func TestLookupString_Scalars(t *testing.T) {
	doc := mustJSON(t, `{"n": 42, "f": 3.5, "b": true, "s": "x"}`)

	assert.Equal(t, "42", lookupString(doc, "n"))
	assert.Equal(t, "3.5", lookupString(doc, "f"))
	assert.Equal(t, "true", lookupString(doc, "b"))
	assert.Equal(t, "x", lookupString(doc, "s"))
}

func TestLookupBool(t *testing.T) {
	doc := mustJSON(t, `{"t": true, "f": false, "s": "true", "n": "no", "one": "1"}`)

	assert.True(t, lookupBool(doc, "t"))
	assert.False(t, lookupBool(doc, "f"))
	assert.True(t, lookupBool(doc, "s"))
	assert.False(t, lookupBool(doc, "n"))
	assert.True(t, lookupBool(doc, "one"))
	assert.False(t, lookupBool(doc, "missing"))
}
