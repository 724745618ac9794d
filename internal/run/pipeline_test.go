package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/disclose/internal/audit"
	"github.com/dativo-io/disclose/internal/identity"
	"github.com/dativo-io/disclose/internal/report"
	"github.com/dativo-io/disclose/internal/source"
)

const testSigningKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

const testExport = `{
	"users": [
		{"id": "U1", "name": "John Smith", "email": "john@co.com"},
		{"id": "U2", "name": "Jane Doe", "email": "jane@co.com"},
		{"id": "U3", "name": "Deploy Bot", "is_bot": true}
	],
	"records": [
		{"date": "2024-01-15", "author_id": "U1", "content": "I reviewed the contract with Jane Doe"},
		{"date": "2024-01-16", "author_id": "U2", "content": "John Smith asked about his account"},
		{"date": "2024-01-17", "author_id": "U2", "content": "Lunch order for the team"},
		{"date": "2024-01-18", "author_id": "U3", "content": "Build passed, notify john@co.com"}
	]
}`

type testEnv struct {
	pipeline *Pipeline
	store    *audit.Store
	events   *audit.EventLog
	output   string
	export   string
}

func newTestEnv(t *testing.T, exportJSON string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	export := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(export, []byte(exportJSON), 0o644))

	registry, err := source.NewRegistry("")
	require.NoError(t, err)

	store, err := audit.NewStore(filepath.Join(dir, "audit.db"), testSigningKey)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := audit.NewEventLog(dir)
	output := filepath.Join(dir, "output")

	return &testEnv{
		pipeline: New(registry, store, events, report.NewWriter(output), 3),
		store:    store,
		events:   events,
		output:   output,
		export:   export,
	}
}

func TestProcess_EndToEnd(t *testing.T) {
	env := newTestEnv(t, testExport)
	ctx := context.Background()

	res, err := env.pipeline.Process(ctx, Request{
		ExportPath:  env.export,
		Source:      "generic_json",
		SubjectName: "John Smith",
	})
	require.NoError(t, err)

	assert.Equal(t, "U1", res.Subject.ID)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 3, res.Included, "the unrelated lunch message is excluded")

	// Authored record: other identities redacted, subject untouched.
	assert.Equal(t, "I reviewed the contract with [User 1]", res.Records[0].Content)
	assert.Equal(t, []string{"author"}, res.Records[0].RelationshipTags)

	// Named record: the subject's own name is never replaced.
	assert.Equal(t, "John Smith asked about his account", res.Records[1].Content)
	assert.Equal(t, []string{"named"}, res.Records[1].RelationshipTags)

	// Email-referenced record from a bot author.
	assert.Contains(t, res.Records[2].RelationshipTags, "email referenced")

	assert.NotContains(t, res.RedactionKey, "John Smith", "subject never appears in the key")
	assert.Equal(t, "Jane Doe (jane@co.com)", res.RedactionKey["[User 1]"])

	assert.FileExists(t, res.ReportPath)
	assert.FileExists(t, res.KeyPath)
	assert.Equal(t, filepath.Join(env.output, "internal"), filepath.Dir(res.KeyPath))
}

func TestProcess_StoresSignedEvidence(t *testing.T) {
	env := newTestEnv(t, testExport)
	ctx := context.Background()

	res, err := env.pipeline.Process(ctx, Request{
		ExportPath:  env.export,
		Source:      "generic_json",
		SubjectName: "John Smith",
	})
	require.NoError(t, err)

	evidence, err := env.store.List(ctx, "John Smith", "generic_json", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, evidence, 1)

	ev := evidence[0]
	assert.Equal(t, res.RunID, ev.RunID)
	assert.Equal(t, 4, ev.RecordsScanned)
	assert.Equal(t, 3, ev.RecordsIncluded)
	assert.Equal(t, res.RedactionKey, ev.RedactionKey)
	assert.Empty(t, ev.Error)

	valid, err := env.store.Verify(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestProcess_EmitsActivityEvents(t *testing.T) {
	env := newTestEnv(t, testExport)

	_, err := env.pipeline.Process(context.Background(), Request{
		ExportPath:  env.export,
		Source:      "generic_json",
		SubjectName: "John Smith",
	})
	require.NoError(t, err)

	var types []string
	for _, e := range env.events.Read() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{"processing_started", "data_subject_found", "processing_complete"}, types)
}

func TestProcess_ExtraRedactions(t *testing.T) {
	env := newTestEnv(t, `{
		"users": [{"id": "U1", "name": "John Smith", "email": "john@co.com"}],
		"records": [
			{"author_id": "U1", "content": "Spoke with Maria Gonzalez from Acme Corp yesterday"}
		]
	}`)

	res, err := env.pipeline.Process(context.Background(), Request{
		ExportPath:      env.export,
		Source:          "generic_json",
		SubjectName:     "John Smith",
		ExtraRedactions: []string{"Maria Gonzalez", "Acme Corp"},
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Spoke with [External 1] from [External 2] yesterday", res.Records[0].Content)
}

func TestProcess_SubjectNotFound(t *testing.T) {
	env := newTestEnv(t, testExport)

	_, err := env.pipeline.Process(context.Background(), Request{
		ExportPath:  env.export,
		Source:      "generic_json",
		SubjectName: "Nobody Here",
	})
	require.Error(t, err)

	var notFound *identity.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestProcess_AmbiguousSubject(t *testing.T) {
	env := newTestEnv(t, `{
		"users": [
			{"id": "U1", "name": "John Smith", "email": "john.a@co.com"},
			{"id": "U2", "name": "John Smith", "email": "john.b@co.com"}
		],
		"records": []
	}`)

	_, err := env.pipeline.Process(context.Background(), Request{
		ExportPath:  env.export,
		Source:      "generic_json",
		SubjectName: "John Smith",
	})
	require.Error(t, err)

	var ambiguous *identity.AmbiguousMatchError
	require.True(t, errors.As(err, &ambiguous))
	assert.Len(t, ambiguous.Candidates, 2)

	// Disambiguate with the email and the run succeeds.
	res, err := env.pipeline.Process(context.Background(), Request{
		ExportPath:   env.export,
		Source:       "generic_json",
		SubjectName:  "John Smith",
		SubjectEmail: "john.b@co.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "U2", res.Subject.ID)
}

func TestProcess_FailureRecordsEvidence(t *testing.T) {
	env := newTestEnv(t, testExport)
	ctx := context.Background()

	_, err := env.pipeline.Process(ctx, Request{
		ExportPath:  filepath.Join(t.TempDir(), "missing.json"),
		Source:      "generic_json",
		SubjectName: "John Smith",
	})
	require.Error(t, err)

	evidence, err := env.store.List(ctx, "John Smith", "", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.NotEmpty(t, evidence[0].Error)
	assert.Zero(t, evidence[0].RecordsScanned)

	var types []string
	for _, e := range env.events.Read() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{"processing_started", "processing_failed"}, types)
}

func TestProcess_UnknownSource(t *testing.T) {
	env := newTestEnv(t, testExport)

	_, err := env.pipeline.Process(context.Background(), Request{
		ExportPath:  env.export,
		Source:      "sharepoint",
		SubjectName: "John Smith",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sharepoint")
}

func TestProcess_NilStoreIsAllowed(t *testing.T) {
	env := newTestEnv(t, testExport)
	registry, err := source.NewRegistry("")
	require.NoError(t, err)

	p := New(registry, nil, nil, report.NewWriter(filepath.Join(t.TempDir(), "out")), 3)
	res, err := p.Process(context.Background(), Request{
		ExportPath:  env.export,
		Source:      "generic_json",
		SubjectName: "John Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Included)
}
