// Package config holds operator-level configuration for a disclose
// installation: where state lives, how evidence is signed, and the
// redaction floor. Set via env vars (DISCLOSE_*) or a config file
// (disclose.config.yaml). Nothing here is per-request: the data subject,
// export path, and extra redactions always arrive as command arguments.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dativo-io/disclose/internal/audit"
)

// Viper keys. Each maps to an env var with the DISCLOSE_ prefix
// (e.g. "signing_key" → DISCLOSE_SIGNING_KEY) and to a YAML field in
// disclose.config.yaml.
const (
	KeyDataDir     = "data_dir"
	KeySigningKey  = "signing_key"
	KeyOutputDir   = "output_dir"
	KeySourcesFile = "sources_file"
	KeyMinAliasLen = "min_alias_len"
)

// Defaults that do not involve crypto material. The signing key has no
// baked-in default; when unset we derive a per-machine fallback and warn.
const (
	DefaultOutputDir   = "./output"
	DefaultMinAliasLen = 3
)

// Config holds resolved operator-level configuration for one process.
type Config struct {
	DataDir     string // Base directory for audit state (~/.disclose)
	SigningKey  string // HMAC-SHA256 key for evidence signing (≥32 bytes)
	OutputDir   string // Where disclosure packages are written
	SourcesFile string // Optional operator source-descriptor overrides
	MinAliasLen int    // Redaction alias floor (anti-false-positive)

	usingDefaultSigningKey bool
}

// UsingDefaultSigningKey returns true when the signing key was derived
// rather than set explicitly. Commands should warn when this is the case.
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// AuditDBPath returns the full path to the evidence SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKey logs a warning when the signing key is not explicitly set.
func (c *Config) WarnIfDefaultKey() {
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default DISCLOSE_SIGNING_KEY. Set via env var or config file for production")
	}
}

func init() {
	viper.SetEnvPrefix("DISCLOSE")
	viper.AutomaticEnv()
	viper.SetDefault(KeyOutputDir, DefaultOutputDir)
	viper.SetDefault(KeyMinAliasLen, DefaultMinAliasLen)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:     resolveDataDir(),
		SigningKey:  viper.GetString(KeySigningKey),
		OutputDir:   viper.GetString(KeyOutputDir),
		SourcesFile: viper.GetString(KeySourcesFile),
		MinAliasLen: viper.GetInt(KeyMinAliasLen),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "evidence-signing")
		cfg.usingDefaultSigningKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".disclose"
	}
	return filepath.Join(home, ".disclose")
}

// deriveDefaultKey produces a deterministic per-machine fallback key from
// the data directory path and a salt. Not cryptographically strong; it
// exists so the tool works out of the box while still signing evidence
// with a key unique to the machine.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("disclose:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if _, err := audit.NewSigner(c.SigningKey); err != nil {
		return fmt.Errorf("signing_key: %w", err)
	}
	if c.MinAliasLen < 1 {
		return fmt.Errorf("min_alias_len must be positive")
	}
	return nil
}
