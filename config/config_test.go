package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/engine"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "strict", cfg.Agent.Policy)
	assert.Equal(t, "end", cfg.Agent.Rollback)
	assert.Equal(t, core.DefaultMaxSteps, cfg.Agent.MaxSteps)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 2, cfg.Chat.MinQueryLength)
	assert.Equal(t, 256, cfg.Chat.MaxQueryLength)
	assert.Equal(t, 2*time.Minute, cfg.Chat.Timeout)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "secretary.yaml", `
model:
  provider: anthropic
  name: claude-sonnet-4-5
agent:
  policy: loose
  max_steps: 4
store:
  type: sqlite
  dsn: /tmp/secretary.db
chat:
  locale: ru
  timeout: 30s
`)
	t.Setenv("SECRETARY_AGENT_MAX_STEPS", "5")
	t.Setenv("SECRETARY_MODEL_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.Name)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "loose", cfg.Agent.Policy)
	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "ru", cfg.Chat.Locale)
	assert.Equal(t, 30*time.Second, cfg.Chat.Timeout)
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SECRETARY_MODEL_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ant-key", cfg.Model.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Model: ModelConfig{Provider: "openai", Name: "gpt-4o-mini"},
			Agent: AgentConfig{Policy: "strict", Rollback: "end", Admission: "wait", MaxSteps: 7, MaxRetries: 1},
			Store: StoreConfig{Type: "memory"},
			Chat:  ChatConfig{MinQueryLength: 2, MaxQueryLength: 256},
			Log:   LogConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"mock without name", func(c *Config) { c.Model = ModelConfig{Provider: "mock"} }, true},
		{"unknown provider", func(c *Config) { c.Model.Provider = "llama" }, false},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, false},
		{"bad policy", func(c *Config) { c.Agent.Policy = "lenient" }, false},
		{"bad rollback", func(c *Config) { c.Agent.Rollback = "undo" }, false},
		{"bad admission", func(c *Config) { c.Agent.Admission = "queue" }, false},
		{"zero steps", func(c *Config) { c.Agent.MaxSteps = 0 }, false},
		{"negative retries", func(c *Config) { c.Agent.MaxRetries = -1 }, false},
		{"sqlite without dsn", func(c *Config) { c.Store = StoreConfig{Type: "sqlite"} }, false},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }, false},
		{"inverted bounds", func(c *Config) { c.Chat.MaxQueryLength = 1 }, false},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"bad sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestEngineOptions(t *testing.T) {
	c := &Config{Agent: AgentConfig{
		Policy: "loose", Rollback: "retry", Admission: "reject",
		MaxSteps: 3, MaxRetries: 2, NoDataText: "nothing",
	}}

	var o engine.Options
	c.EngineOptions()(&o)

	assert.Equal(t, engine.PolicyLoose, o.Policy)
	assert.Equal(t, engine.RollbackRetry, o.Rollback)
	assert.Equal(t, engine.AdmissionReject, o.Admission)
	assert.Equal(t, 3, o.MaxSteps)
	assert.Equal(t, 2, o.MaxRetries)
	assert.Equal(t, "nothing", o.NoDataText)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "SECRETARY_TEST_DOTENV=loaded\n")
	t.Setenv("SECRETARY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SECRETARY_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("SECRETARY_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
