package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_LogAndRead(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLog(dir)

	l.Log("processing_started", "John Smith", "slack", map[string]any{"export_file": "export.json"})
	l.Log("processing_complete", "John Smith", "slack", map[string]any{"records_included": 4})

	entries := l.Read()
	require.Len(t, entries, 2)
	assert.Equal(t, "processing_started", entries[0].EventType)
	assert.Equal(t, "John Smith", entries[0].DataSubject)
	assert.Equal(t, "export.json", entries[0].Fields["export_file"])
	assert.Equal(t, "processing_complete", entries[1].EventType)
	assert.NotEmpty(t, entries[0].Timestamp)
}

func TestEventLog_CreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audit")
	l := NewEventLog(dir)

	l.Log("processing_started", "Jane Doe", "jira", nil)

	assert.FileExists(t, l.Path())
	assert.Len(t, l.Read(), 1)
}

func TestEventLog_ReadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLog(dir)
	l.Log("processing_started", "Jane Doe", "slack", nil)

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l.Log("processing_complete", "Jane Doe", "slack", nil)

	entries := l.Read()
	require.Len(t, entries, 2)
	assert.Equal(t, "processing_started", entries[0].EventType)
	assert.Equal(t, "processing_complete", entries[1].EventType)
}

func TestEventLog_ReadMissingFile(t *testing.T) {
	l := NewEventLog(t.TempDir())
	assert.Empty(t, l.Read())
}

func TestEventLog_NilReceiverIsSafe(t *testing.T) {
	var l *EventLog
	assert.NotPanics(t, func() {
		l.Log("processing_started", "x", "y", nil)
		_ = l.Read()
	})
}
