package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithDevSecret(t *testing.T) {
	t.Setenv("AUTH_DEV_SECRET", "dev")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(2000), cfg.Marketplace.PlatformFeeBps)
	assert.Equal(t, 15, cfg.Marketplace.SlotMinutes)
	assert.Equal(t, 24*time.Hour, cfg.Marketplace.CancellationCutoff)
}

func TestLoad_YAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumen.yaml")
	yamlBody := `
server:
  port: 9000
  env: staging
firebase:
  project_id: lumen-test
marketplace:
  platform_fee_bps: 1500
  slot_minutes: 30
  max_booking_days: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("TAX_RATE_BPS", "825")
	t.Setenv("CANCELLATION_CUTOFF", "12h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over yaml")
	assert.Equal(t, "staging", cfg.Server.Env)
	assert.Equal(t, "lumen-test", cfg.Firebase.ProjectID)
	assert.Equal(t, int64(1500), cfg.Marketplace.PlatformFeeBps)
	assert.Equal(t, int64(825), cfg.Marketplace.TaxRateBps)
	assert.Equal(t, 30, cfg.Marketplace.SlotMinutes)
	assert.Equal(t, 12*time.Hour, cfg.Marketplace.CancellationCutoff)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AUTH_DEV_SECRET", "dev")
	t.Setenv("PORT", "eighty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid dev config",
			mutate:  func(c *Config) { c.Firebase.DevSecret = "s" },
			wantErr: false,
		},
		{
			name:    "no auth configured",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "dev secret in production",
			mutate: func(c *Config) {
				c.Server.Env = "production"
				c.Firebase.ProjectID = "p"
				c.Firebase.DevSecret = "s"
			},
			wantErr: true,
		},
		{
			name: "fee above 100 percent",
			mutate: func(c *Config) {
				c.Firebase.ProjectID = "p"
				c.Marketplace.PlatformFeeBps = 10001
			},
			wantErr: true,
		},
		{
			name: "slot length not a supported step",
			mutate: func(c *Config) {
				c.Firebase.ProjectID = "p"
				c.Marketplace.SlotMinutes = 7
			},
			wantErr: true,
		},
		{
			name: "mail enabled without sender",
			mutate: func(c *Config) {
				c.Firebase.ProjectID = "p"
				c.Mail.Enabled = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfigDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "lumen",
		Password: "p@ss/word",
		Name:     "lumen",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://lumen:p%40ss%2Fword@db:5432/lumen?sslmode=disable", d.DSN())
	assert.Contains(t, d.AdminDSN(), "/postgres?")
}
