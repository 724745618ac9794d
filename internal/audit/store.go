// Package audit persists the internal record of every DSAR run: which
// sources were processed for which data subject, how many records were
// disclosed, and the reverse redaction key needed to reidentify labels
// during a compliance review.
//
// Every processed source produces an Evidence record that is HMAC-signed
// and stored in SQLite. The redaction key inside it is INTERNAL ONLY and
// must never be forwarded to requester-facing output. A best-effort JSONL
// event log (events.go) complements the store for operational audit.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	discotel "github.com/dativo-io/disclose/internal/otel"
)

var tracer = discotel.Tracer("github.com/dativo-io/disclose/internal/audit")

// Store persists HMAC-signed evidence records in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

// Evidence is the full audit record for one source processed in a DSAR run.
type Evidence struct {
	ID              string            `json:"id"`
	RunID           string            `json:"run_id"`
	Timestamp       time.Time         `json:"timestamp"`
	DataSubject     string            `json:"data_subject"`
	Source          string            `json:"source"`
	ExportFile      string            `json:"export_file,omitempty"`
	RecordsScanned  int               `json:"records_scanned"`
	RecordsIncluded int               `json:"records_included"`
	RedactionStats  map[string]int    `json:"redaction_stats,omitempty"`
	RedactionKey    map[string]string `json:"redaction_key,omitempty"` // internal only, never released
	DurationMS      int64             `json:"duration_ms"`
	Error           string            `json:"error,omitempty"`
	Signature       string            `json:"signature"`
}

// NewStore opens (or creates) the evidence database with HMAC signing.
func NewStore(dbPath string, signingKey string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS run_evidence (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		data_subject TEXT NOT NULL,
		source TEXT NOT NULL,
		evidence_json TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_evidence_run ON run_evidence(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_evidence_subject ON run_evidence(data_subject);
	CREATE INDEX IF NOT EXISTS idx_run_evidence_timestamp ON run_evidence(timestamp);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	return &Store{db: db, signer: signer}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store saves evidence with an HMAC signature.
func (s *Store) Store(ctx context.Context, ev *Evidence) error {
	ctx, span := tracer.Start(ctx, "audit.store",
		trace.WithAttributes(
			attribute.String("evidence.id", ev.ID),
			attribute.String("evidence.source", ev.Source),
		))
	defer span.End()

	evidenceJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling evidence: %w", err)
	}

	signature, err := s.signer.Sign(evidenceJSON)
	if err != nil {
		return fmt.Errorf("signing evidence: %w", err)
	}

	ev.Signature = signature
	evidenceJSONWithSig, _ := json.Marshal(ev)

	query := `INSERT INTO run_evidence (id, run_id, timestamp, data_subject, source, evidence_json, signature)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		ev.ID, ev.RunID, ev.Timestamp, ev.DataSubject, ev.Source,
		string(evidenceJSONWithSig), signature,
	)
	if err != nil {
		return fmt.Errorf("storing evidence: %w", err)
	}

	return nil
}

// Get retrieves evidence by ID.
func (s *Store) Get(ctx context.Context, id string) (*Evidence, error) {
	ctx, span := tracer.Start(ctx, "audit.get",
		trace.WithAttributes(attribute.String("evidence.id", id)))
	defer span.End()

	var evidenceJSON string
	query := `SELECT evidence_json FROM run_evidence WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&evidenceJSON)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evidence %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}

	var ev Evidence
	if err := json.Unmarshal([]byte(evidenceJSON), &ev); err != nil {
		return nil, fmt.Errorf("unmarshaling evidence: %w", err)
	}

	return &ev, nil
}

// List returns evidence records matching the given filters, newest first.
func (s *Store) List(ctx context.Context, dataSubject, source string, from, to time.Time, limit int) ([]Evidence, error) {
	ctx, span := tracer.Start(ctx, "audit.list",
		trace.WithAttributes(
			attribute.String("data_subject", dataSubject),
			attribute.String("source", source),
		))
	defer span.End()

	query := `SELECT evidence_json FROM run_evidence WHERE 1=1`
	args := []interface{}{}

	if dataSubject != "" {
		query += ` AND data_subject = ?`
		args = append(args, dataSubject)
	}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, to)
	}

	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	var results []Evidence
	for rows.Next() {
		var evidenceJSON string
		if err := rows.Scan(&evidenceJSON); err != nil {
			continue
		}
		var ev Evidence
		if err := json.Unmarshal([]byte(evidenceJSON), &ev); err != nil {
			continue
		}
		results = append(results, ev)
	}

	return results, nil
}

// Verify checks the HMAC signature integrity of an evidence record.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "audit.verify",
		trace.WithAttributes(attribute.String("evidence.id", id)))
	defer span.End()

	ev, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	signature := ev.Signature
	ev.Signature = ""

	evidenceJSON, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshaling for verification: %w", err)
	}

	return s.signer.Verify(evidenceJSON, signature), nil
}

// Summary aggregates per-subject processing statistics across all stored
// evidence, for inclusion in the package manifest.
type Summary struct {
	DataSubject      string   `json:"data_subject"`
	ProcessingDate   string   `json:"processing_date,omitempty"`
	SourcesProcessed []string `json:"sources_processed"`
	SourcesFailed    []string `json:"sources_failed,omitempty"`
	TotalRecords     int      `json:"total_records"`
	AllSuccessful    bool     `json:"all_successful"`
}

// Summarize builds a Summary for one data subject from stored evidence.
func (s *Store) Summarize(ctx context.Context, dataSubject string) (*Summary, error) {
	evidence, err := s.List(ctx, dataSubject, "", time.Time{}, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	sum := &Summary{DataSubject: dataSubject, AllSuccessful: true}
	seen := map[string]bool{}
	for i := len(evidence) - 1; i >= 0; i-- { // oldest first
		ev := evidence[i]
		if sum.ProcessingDate == "" {
			sum.ProcessingDate = ev.Timestamp.UTC().Format("2006-01-02")
		}
		if ev.Error != "" {
			sum.SourcesFailed = append(sum.SourcesFailed, ev.Source)
			sum.AllSuccessful = false
			continue
		}
		if !seen[ev.Source] {
			seen[ev.Source] = true
			sum.SourcesProcessed = append(sum.SourcesProcessed, ev.Source)
		}
		sum.TotalRecords += ev.RecordsIncluded
	}
	return sum, nil
}
