// Package run orchestrates one DSAR source end to end: resolve the data
// subject, seed the redaction map from the full roster, classify every
// candidate record, redact the included ones, and hand the results to the
// report writer and audit store.
//
// The redaction map is fully seeded before any classification begins and
// is read-only afterwards. A failure while processing a source aborts only
// that source's output; audit logging failures never abort anything.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dativo-io/disclose/internal/audit"
	"github.com/dativo-io/disclose/internal/identity"
	discotel "github.com/dativo-io/disclose/internal/otel"
	"github.com/dativo-io/disclose/internal/redaction"
	"github.com/dativo-io/disclose/internal/relevance"
	"github.com/dativo-io/disclose/internal/report"
	"github.com/dativo-io/disclose/internal/source"
)

var tracer = discotel.Tracer("github.com/dativo-io/disclose/internal/run")

// Pipeline processes one source export per invocation. Construct once per
// process; each Process call is an isolated run.
type Pipeline struct {
	registry    *source.Registry
	store       *audit.Store
	events      *audit.EventLog
	writer      *report.Writer
	minAliasLen int

	recordsIncluded metric.Int64Counter
}

// New wires a pipeline. store may be nil when evidence persistence is
// disabled (e.g. dry runs); the event log is always best-effort.
func New(registry *source.Registry, store *audit.Store, events *audit.EventLog, writer *report.Writer, minAliasLen int) *Pipeline {
	counter, err := otel.Meter("github.com/dativo-io/disclose/internal/run").
		Int64Counter("dsar.records.included",
			metric.WithDescription("Records included in disclosure sets"))
	if err != nil {
		log.Debug().Err(err).Msg("metric counter init failed")
	}
	return &Pipeline{
		registry:        registry,
		store:           store,
		events:          events,
		writer:          writer,
		minAliasLen:     minAliasLen,
		recordsIncluded: counter,
	}
}

// Request describes one DSAR processing run.
type Request struct {
	ExportPath      string
	Source          string // descriptor name, e.g. "slack"
	SubjectName     string
	SubjectEmail    string
	ExtraRedactions []string // operator-supplied names not in the roster
}

// Result is the outcome of a successful run.
type Result struct {
	RunID        string
	Subject      identity.Identity
	Scanned      int
	Included     int
	Records      []relevance.Record
	Stats        map[string]int
	RedactionKey map[string]string // internal only
	ReportPath   string
	KeyPath      string
}

// Process runs the full pipeline for one export.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "run.process",
		trace.WithAttributes(attribute.String("source", req.Source)))
	defer span.End()

	runID := uuid.NewString()
	started := time.Now()

	p.events.Log("processing_started", req.SubjectName, req.Source, map[string]any{
		"run_id": runID,
		"export": req.ExportPath,
	})

	res, err := p.process(ctx, req, runID)

	if err != nil {
		p.events.Log("processing_failed", req.SubjectName, req.Source, map[string]any{
			"run_id": runID,
			"error":  err.Error(),
		})
		p.storeEvidence(ctx, &audit.Evidence{
			ID:          uuid.NewString(),
			RunID:       runID,
			Timestamp:   time.Now().UTC(),
			DataSubject: req.SubjectName,
			Source:      req.Source,
			ExportFile:  req.ExportPath,
			DurationMS:  time.Since(started).Milliseconds(),
			Error:       err.Error(),
		})
		return nil, err
	}

	if p.recordsIncluded != nil {
		p.recordsIncluded.Add(ctx, int64(res.Included),
			metric.WithAttributes(attribute.String("source", req.Source)))
	}

	p.events.Log("processing_complete", req.SubjectName, req.Source, map[string]any{
		"run_id":            runID,
		"records_processed": res.Included,
		"records_scanned":   res.Scanned,
	})
	p.storeEvidence(ctx, &audit.Evidence{
		ID:              uuid.NewString(),
		RunID:           runID,
		Timestamp:       time.Now().UTC(),
		DataSubject:     req.SubjectName,
		Source:          req.Source,
		ExportFile:      req.ExportPath,
		RecordsScanned:  res.Scanned,
		RecordsIncluded: res.Included,
		RedactionStats:  res.Stats,
		RedactionKey:    res.RedactionKey,
		DurationMS:      time.Since(started).Milliseconds(),
	})

	return res, nil
}

func (p *Pipeline) process(ctx context.Context, req Request, runID string) (*Result, error) {
	desc, err := p.registry.Find(req.Source)
	if err != nil {
		return nil, err
	}

	doc, err := source.Load(req.ExportPath)
	if err != nil {
		return nil, err
	}

	roster, err := source.Roster(doc, desc)
	if err != nil {
		return nil, err
	}

	resolved, err := identity.Resolve(roster, req.SubjectName, req.SubjectEmail)
	if err != nil {
		return nil, err
	}
	subject := identity.NewSubject(resolved.ID, resolved.Name, resolved.Email)

	p.events.Log("data_subject_found", req.SubjectName, req.Source, map[string]any{
		"run_id":      runID,
		"resolved_as": resolved.Display(),
	})
	log.Info().
		Str("run_id", runID).
		Str("source", req.Source).
		Str("data_subject", resolved.Display()).
		Func(discotel.LogTraceFields(ctx)).
		Msg("data subject resolved")

	// Seed the redaction map from the full roster plus operator extras.
	// The map is read-only from here on.
	rmap := redaction.NewMap(subject, redaction.WithMinAliasLen(p.minAliasLen))
	for _, entry := range roster {
		rmap.AddIdentity(entry.ID, entry.Name, entry.Email, entry.Category)
	}
	for _, name := range req.ExtraRedactions {
		rmap.AddExternal(name)
	}

	records, err := source.Records(doc, desc)
	if err != nil {
		return nil, err
	}

	classifier := relevance.NewClassifier(subject, desc.MentionFormats)

	var included []relevance.Record
	for _, raw := range records {
		decision := classifier.Classify(ctx, raw.Roles, raw.Body)
		if !decision.Included {
			continue
		}
		included = append(included, relevance.Record{
			Date:             raw.Date,
			Type:             raw.Type,
			Category:         raw.Category,
			Content:          rmap.Redact(raw.Body),
			RelationshipTags: decision.Tags,
		})
	}

	res := &Result{
		RunID:        runID,
		Subject:      resolved,
		Scanned:      len(records),
		Included:     len(included),
		Records:      included,
		Stats:        rmap.Stats(),
		RedactionKey: rmap.RedactionKey(),
	}

	if p.writer != nil {
		res.ReportPath, err = p.writer.WriteReport(&report.Report{
			Vendor:         desc.Name,
			DataSubject:    resolved.Name,
			Email:          resolved.Email,
			Generated:      time.Now().UTC(),
			Records:        included,
			RecordCount:    len(included),
			RedactionStats: res.Stats,
		})
		if err != nil {
			return nil, fmt.Errorf("writing report: %w", err)
		}
		res.KeyPath, err = p.writer.WriteRedactionKey(desc.Name, resolved.Name, res.RedactionKey)
		if err != nil {
			return nil, fmt.Errorf("writing redaction key: %w", err)
		}
	}

	return res, nil
}

// storeEvidence persists evidence best-effort. Evidence failures are
// logged, never propagated; they must not abort the request.
func (p *Pipeline) storeEvidence(ctx context.Context, ev *audit.Evidence) {
	if p.store == nil {
		return
	}
	if err := p.store.Store(ctx, ev); err != nil {
		log.Warn().Err(err).Str("run_id", ev.RunID).Msg("storing run evidence failed")
	}
}
