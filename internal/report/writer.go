// Package report writes the disclosure package for one processed source:
// a requester-facing JSON report plus the internal-only redaction key.
// Word rendering is owned by downstream tooling; this package only
// produces the machine-readable artifacts.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dativo-io/disclose/internal/relevance"
	"github.com/dativo-io/disclose/internal/source"
)

// Report is the requester-facing disclosure document for one source.
// It must never contain the redaction key.
type Report struct {
	Vendor         string             `json:"vendor"`
	DataSubject    string             `json:"data_subject"`
	Email          string             `json:"email,omitempty"`
	Generated      time.Time          `json:"generated"`
	Records        []relevance.Record `json:"records"`
	RecordCount    int                `json:"record_count"`
	RedactionStats map[string]int     `json:"redaction_stats"`
}

// Writer writes disclosure artifacts under a fixed output directory.
// Requester-facing files go to the directory root; the redaction key goes
// under internal/ so package assembly can exclude it mechanically.
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter creates a report writer for outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir, now: time.Now}
}

// WriteReport persists the requester-facing JSON report and returns its path.
func (w *Writer) WriteReport(r *Report) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	name := fmt.Sprintf("%s_DSAR_%s_%s.json",
		r.Vendor, source.SafeFilename(r.DataSubject), w.timestamp())
	path := filepath.Join(w.outputDir, name)

	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRedactionKey persists the reverse label→identity mapping under the
// internal/ subdirectory. This file is for compliance review only and must
// never be included in the package sent to the requester.
func (w *Writer) WriteRedactionKey(vendor, dataSubject string, key map[string]string) (string, error) {
	dir := filepath.Join(w.outputDir, "internal")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating internal directory: %w", err)
	}

	name := fmt.Sprintf("%s_REDACTION_KEY_%s_%s.json",
		vendor, source.SafeFilename(dataSubject), w.timestamp())
	path := filepath.Join(dir, name)

	if err := writeJSON(path, key); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) timestamp() string {
	return w.now().Format("20060102_150405")
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
