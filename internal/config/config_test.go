package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inDir runs Load from dir so the ./configs lookup sees only what the test wrote
func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	inDir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./uploads", cfg.Server.UploadDir)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenExpire)
	assert.Equal(t, "taskify", cfg.JWT.Issuer)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 1 * * *", cfg.Scheduler.DailyStatisticsSpec)
	assert.Equal(t, 90, cfg.Scheduler.ActivityRetentionDays)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.LockTTL)

	assert.Error(t, cfg.Validate(), "no secret configured")
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := []byte(`
server:
  port: 9000
  mode: release
database:
  host: db.internal
  dbname: taskify
scheduler:
  activity_retention_days: 30
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), yaml, 0o644))
	inDir(t, dir)

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 30, cfg.Scheduler.ActivityRetentionDays)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.Contains(t, cfg.Database.DSN(), "dbname=taskify")
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8080},
			JWT:       JWTConfig{Secret: "s"},
			Scheduler: SchedulerConfig{Enabled: true, ActivityRetentionDays: 90},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"retention zero", func(c *Config) { c.Scheduler.ActivityRetentionDays = 0 }, true},
		{"retention ignored when disabled", func(c *Config) {
			c.Scheduler.Enabled = false
			c.Scheduler.ActivityRetentionDays = 0
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}
