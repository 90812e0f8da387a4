package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("CAMPUSRUN_JWT_SECRET", "s3cret")

	yamlContent := `
database:
  path: "test.db"
api:
  enabled: true
  auth:
    jwt_secret: "${CAMPUSRUN_JWT_SECRET}"
pricing:
  service_fee: 1500
telegram:
  chats:
    student-1: 42
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.API.Auth.JWTSecret)
	assert.Equal(t, int64(1500), cfg.Pricing.ServiceFee)
	assert.Equal(t, int64(42), cfg.Telegram.Chats["student-1"])
	assert.True(t, cfg.API.HTTP.Enabled)
	assert.Equal(t, "local", cfg.Storage.Driver)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		cfg := Config{Database: DatabaseConfig{Path: "path"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(_ *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "negative fee", mutate: func(c *Config) { c.Pricing.ServiceFee = -1 }, wantErr: true},
		{name: "api without secret", mutate: func(c *Config) { c.API.Enabled = true }, wantErr: true},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Driver = "gcs" }, wantErr: true},
		{name: "unknown storage driver", mutate: func(c *Config) { c.Storage.Driver = "ftp" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
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

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, int64(2000), cfg.Pricing.ServiceFee)
	assert.Equal(t, "gcash", cfg.Pricing.DefaultPaymentMethod)
	assert.Equal(t, "data/uploads", cfg.Storage.LocalDir)
	assert.Equal(t, "campusrun:missions", cfg.Events.RedisChannel)
	assert.Equal(t, "Missions", cfg.Google.MissionsSheetName)
}
