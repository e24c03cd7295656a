package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fmcsweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestResolve_Defaults(t *testing.T) {
	cfg, err := resolve(defaultValues())
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultRequestsPerMinute, cfg.RequestsPerMinute)
	assert.Equal(t, ".", cfg.BackupDir)
	assert.False(t, cfg.VerifyTLS)
	assert.False(t, cfg.IsJournalEnabled())
	assert.Error(t, cfg.RequireEndpoint())
}

func TestResolve_FileThenFlags(t *testing.T) {
	path := writeConfig(t, `
endpoint: https://fmc.example.net/
username: admin
verify_tls: true
request_timeout: 90s
backup_dir: backups
requests_per_minute: 60
journal: /var/lib/fmcsweep/journal.db
`)

	v := defaultValues()
	v.configFile = path
	v.username = "operator"

	cfg, err := resolve(v)
	require.NoError(t, err)

	assert.Equal(t, "https://fmc.example.net", cfg.BaseURL())
	assert.Equal(t, "operator", cfg.Username, "flag wins over file")
	assert.True(t, cfg.VerifyTLS)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "backups"), cfg.BackupDir)
	assert.True(t, cfg.IsJournalEnabled())
	assert.NoError(t, cfg.RequireEndpoint())
}

func TestResolve_TimeoutFlag(t *testing.T) {
	v := defaultValues()
	v.timeout = "5s"
	cfg, err := resolve(v)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)

	v.timeout = "soon"
	_, err = resolve(v)
	assert.Error(t, err)
}

func TestResolve_MissingFile(t *testing.T) {
	v := defaultValues()
	v.configFile = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := resolve(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"https endpoint", func(c *Config) { c.Endpoint = "https://10.0.0.1" }, false},
		{"endpoint without scheme", func(c *Config) { c.Endpoint = "10.0.0.1" }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"negative pacing", func(c *Config) { c.RequestsPerMinute = -1 }, true},
		{"empty backup dir", func(c *Config) { c.BackupDir = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
