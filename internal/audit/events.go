package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// EventLog appends DSAR processing events to a JSON Lines file. It is
// strictly best-effort: a logging failure must never abort the request,
// so every write error is swallowed after a debug log.
type EventLog struct {
	path string
}

// NewEventLog creates an event log writing to dir/dsar_activity.jsonl.
func NewEventLog(dir string) *EventLog {
	return &EventLog{path: filepath.Join(dir, "dsar_activity.jsonl")}
}

// Path returns the location of the underlying JSONL file.
func (l *EventLog) Path() string {
	return l.path
}

// Event is one activity log entry. Known event types: processing_started,
// data_subject_found, processing_complete, processing_failed.
type Event struct {
	Timestamp   string         `json:"timestamp"`
	EventType   string         `json:"event_type"`
	DataSubject string         `json:"data_subject_name,omitempty"`
	Source      string         `json:"source,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Log appends an event. Never returns an error; audit logging is
// best-effort and the DSAR processing matters more.
func (l *EventLog) Log(eventType, dataSubject, source string, fields map[string]any) {
	if l == nil {
		return
	}
	entry := Event{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		EventType:   eventType,
		DataSubject: dataSubject,
		Source:      source,
		Fields:      fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Debug().Err(err).Msg("activity log marshal failed")
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		log.Debug().Err(err).Msg("activity log mkdir failed")
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.Debug().Err(err).Msg("activity log open failed")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Debug().Err(err).Msg("activity log write failed")
	}
}

// Read returns all parseable entries in the log. Malformed lines are
// skipped; a missing file yields an empty slice.
func (l *EventLog) Read() []Event {
	if l == nil {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}

	var entries []Event
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var e Event
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries
}
