package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), testKey)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEvidence(subject, source string) *Evidence {
	return &Evidence{
		ID:              uuid.New().String(),
		RunID:           uuid.New().String(),
		Timestamp:       time.Now().UTC(),
		DataSubject:     subject,
		Source:          source,
		ExportFile:      "export.json",
		RecordsScanned:  10,
		RecordsIncluded: 4,
		RedactionStats:  map[string]int{"user": 2, "email": 1},
		RedactionKey:    map[string]string{"[User 1]": "Jane Doe (jane@co.com)"},
		DurationMS:      12,
	}
}

func TestStore_StoreAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ev := testEvidence("John Smith", "slack")
	require.NoError(t, store.Store(ctx, ev))
	assert.NotEmpty(t, ev.Signature)

	got, err := store.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.RunID, got.RunID)
	assert.Equal(t, "John Smith", got.DataSubject)
	assert.Equal(t, 4, got.RecordsIncluded)
	assert.Equal(t, ev.RedactionKey, got.RedactionKey)
	assert.Equal(t, ev.Signature, got.Signature)
}

func TestStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_Verify(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ev := testEvidence("John Smith", "slack")
	require.NoError(t, store.Store(ctx, ev))

	valid, err := store.Verify(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestStore_VerifyDetectsTampering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ev := testEvidence("John Smith", "slack")
	require.NoError(t, store.Store(ctx, ev))

	// Rewrite the stored JSON directly, keeping the original signature.
	_, err := store.db.ExecContext(ctx,
		`UPDATE run_evidence SET evidence_json = replace(evidence_json, '"records_included":4', '"records_included":400') WHERE id = ?`,
		ev.ID)
	require.NoError(t, err)

	valid, err := store.Verify(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestStore_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*Evidence{
		testEvidence("John Smith", "slack"),
		testEvidence("John Smith", "jira"),
		testEvidence("Jane Doe", "slack"),
	} {
		require.NoError(t, store.Store(ctx, e))
	}

	all, err := store.List(ctx, "", "", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bySubject, err := store.List(ctx, "John Smith", "", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, bySubject, 2)

	bySource, err := store.List(ctx, "John Smith", "jira", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "jira", bySource[0].Source)

	limited, err := store.List(ctx, "", "", time.Time{}, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	future, err := store.List(ctx, "", "", time.Now().Add(time.Hour), time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestStore_Summarize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	slackEv := testEvidence("John Smith", "slack")
	slackEv.RecordsIncluded = 3
	jiraEv := testEvidence("John Smith", "jira")
	jiraEv.RecordsIncluded = 5
	failedEv := testEvidence("John Smith", "zendesk")
	failedEv.Error = "export file unreadable"
	otherEv := testEvidence("Jane Doe", "slack")

	for _, e := range []*Evidence{slackEv, jiraEv, failedEv, otherEv} {
		require.NoError(t, store.Store(ctx, e))
	}

	sum, err := store.Summarize(ctx, "John Smith")
	require.NoError(t, err)

	assert.Equal(t, "John Smith", sum.DataSubject)
	assert.ElementsMatch(t, []string{"slack", "jira"}, sum.SourcesProcessed)
	assert.Equal(t, []string{"zendesk"}, sum.SourcesFailed)
	assert.Equal(t, 8, sum.TotalRecords)
	assert.False(t, sum.AllSuccessful)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), sum.ProcessingDate)
}

func TestStore_SummarizeEmpty(t *testing.T) {
	store := newTestStore(t)

	sum, err := store.Summarize(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.True(t, sum.AllSuccessful)
	assert.Zero(t, sum.TotalRecords)
	assert.Empty(t, sum.SourcesProcessed)
}

func TestNewStore_BadKey(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), "short")
	assert.Error(t, err)
}
