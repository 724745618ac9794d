package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/disclose/internal/config"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	viper.Set(config.KeyDataDir, filepath.Join(dir, "state"))
	viper.Set(config.KeyOutputDir, filepath.Join(dir, "output"))
	viper.Set(config.KeySigningKey, testKey)
	viper.Set(config.KeySourcesFile, "")
	t.Cleanup(func() {
		viper.Reset()
		viper.SetEnvPrefix("DISCLOSE")
		viper.AutomaticEnv()
		viper.SetDefault(config.KeyOutputDir, config.DefaultOutputDir)
		viper.SetDefault(config.KeyMinAliasLen, config.DefaultMinAliasLen)
	})
	return dir
}

func TestRun_HealthyInstall(t *testing.T) {
	setupEnv(t)

	report := Run()
	assert.Equal(t, "pass", report.Status)
	assert.Zero(t, report.Summary.Fail)
	assert.Zero(t, report.Summary.Warn)
	assert.Equal(t, len(report.Checks), report.Summary.Pass)

	names := map[string]string{}
	for _, c := range report.Checks {
		names[c.Name] = c.Status
	}
	for _, want := range []string{"data_dir_writable", "signing_key", "audit_db", "sources_valid", "output_dir_writable"} {
		assert.Contains(t, names, want)
	}
}

func TestRun_WarnsOnDefaultSigningKey(t *testing.T) {
	setupEnv(t)
	viper.Set(config.KeySigningKey, "")

	report := Run()
	assert.Equal(t, "warn", report.Status)

	var key CheckResult
	for _, c := range report.Checks {
		if c.Name == "signing_key" {
			key = c
		}
	}
	require.Equal(t, "warn", key.Status)
	assert.Contains(t, key.Fix, "DISCLOSE_SIGNING_KEY")
}

func TestRun_FailsOnBrokenSourcesFile(t *testing.T) {
	dir := setupEnv(t)
	bad := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sources: [unclosed"), 0o644))
	viper.Set(config.KeySourcesFile, bad)

	report := Run()
	assert.Equal(t, "fail", report.Status)
}
