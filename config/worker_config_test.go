package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("MALFORMED_START_POLICY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreFile, cfg.StoreBackend)
	assert.Equal(t, "trips.json", cfg.StoreFilePath)
	assert.Equal(t, LLMOpenAI, cfg.LLMProvider)
	assert.Equal(t, "now", cfg.MalformedStartPolicy)
	assert.Equal(t, 90, cfg.ScanDaysBack)
	assert.Equal(t, 50, cfg.ScanMaxResults)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SCAN_DAYS_BACK", "30")
	t.Setenv("SMTP_TO", " a@example.com, ,b@example.com ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 30, cfg.ScanDaysBack)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.SMTPTo)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			StoreBackend:         StoreFile,
			StoreFilePath:        "trips.json",
			LLMProvider:          LLMNone,
			MalformedStartPolicy: "now",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "sqlite" }, wantErr: "STORE_BACKEND"},
		{name: "redis without url", mutate: func(c *Config) { c.StoreBackend = StoreRedis }, wantErr: "REDIS_URL"},
		{name: "mongo without url", mutate: func(c *Config) { c.StoreBackend = StoreMongo }, wantErr: "MONGODB_URL"},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreBackend = StorePostgres }, wantErr: "DATABASE_URL"},
		{name: "unknown llm", mutate: func(c *Config) { c.LLMProvider = "claude" }, wantErr: "LLM_PROVIDER"},
		{name: "unknown policy", mutate: func(c *Config) { c.MalformedStartPolicy = "later" }, wantErr: "MALFORMED_START_POLICY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ScanInterval(t *testing.T) {
	tests := []struct {
		name    string
		users   []string
		minutes int
		want    time.Duration
	}{
		{name: "disabled by default", want: 0},
		{name: "no users", minutes: 15, want: 0},
		{name: "no interval", users: []string{"u1"}, want: 0},
		{name: "enabled", users: []string{"u1"}, minutes: 15, want: 15 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{ScanUsers: tt.users, ScanIntervalMin: tt.minutes}
			assert.Equal(t, tt.want, c.ScanInterval())
		})
	}
}
