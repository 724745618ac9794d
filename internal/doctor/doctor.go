// Package doctor provides health checks for a disclose installation.
// Used by `disclose doctor` before an operator trusts a machine with
// DSAR processing.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dativo-io/disclose/internal/audit"
	"github.com/dativo-io/disclose/internal/config"
	"github.com/dativo-io/disclose/internal/source"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Run executes all doctor checks and returns a report.
func Run() *Report {
	report := &Report{}

	report.Checks = append(report.Checks, checkConfig()...)

	for _, c := range report.Checks {
		switch c.Status {
		case "pass":
			report.Summary.Pass++
		case "warn":
			report.Summary.Warn++
		case "fail":
			report.Summary.Fail++
		}
	}

	report.Status = "pass"
	if report.Summary.Warn > 0 {
		report.Status = "warn"
	}
	if report.Summary.Fail > 0 {
		report.Status = "fail"
	}
	return report
}

func checkConfig() []CheckResult {
	var results []CheckResult

	cfg, err := config.Load()
	if err != nil {
		return []CheckResult{{
			Name: "config_load", Category: "config", Status: "fail",
			Message: fmt.Sprintf("Cannot load config: %v", err),
			Fix:     "Check DISCLOSE_* env vars and disclose.config.yaml",
		}}
	}

	results = append(results, checkDataDir(cfg))
	results = append(results, checkSigningKey(cfg))
	results = append(results, checkAuditDB(cfg))
	results = append(results, checkSources(cfg))
	results = append(results, checkOutputDir(cfg))
	return results
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: "pass",
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkSigningKey(cfg *config.Config) CheckResult {
	if cfg.UsingDefaultSigningKey() {
		return CheckResult{
			Name: "signing_key", Category: "config", Status: "warn",
			Message: "Using generated default",
			Fix:     "Set DISCLOSE_SIGNING_KEY for production",
		}
	}
	return CheckResult{
		Name: "signing_key", Category: "config", Status: "pass", Message: "Configured",
	}
}

func checkAuditDB(cfg *config.Config) CheckResult {
	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		return CheckResult{
			Name: "audit_db", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%v", err),
		}
	}
	_ = store.Close()
	return CheckResult{
		Name: "audit_db", Category: "config", Status: "pass",
		Message: cfg.AuditDBPath(),
	}
}

func checkSources(cfg *config.Config) CheckResult {
	registry, err := source.NewRegistry(cfg.SourcesFile)
	if err != nil {
		return CheckResult{
			Name: "sources_valid", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%v", err),
			Fix:     "Check YAML syntax in " + cfg.SourcesFile,
		}
	}
	msg := fmt.Sprintf("%v", registry.Names())
	if cfg.SourcesFile != "" {
		msg += " (with operator overrides)"
	}
	return CheckResult{
		Name: "sources_valid", Category: "config", Status: "pass", Message: msg,
	}
}

func checkOutputDir(cfg *config.Config) CheckResult {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return CheckResult{
			Name: "output_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.OutputDir, err),
			Fix:     "Set DISCLOSE_OUTPUT_DIR to a writable location",
		}
	}
	testFile := filepath.Join(cfg.OutputDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "output_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s not writable: %v", cfg.OutputDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "output_dir_writable", Category: "config", Status: "pass",
		Message: cfg.OutputDir,
	}
}
