// Package config loads secretary settings from an optional YAML file, a .env
// file and SECRETARY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/engine"
	"github.com/hupe1980/secretary/logging"
)

// EnvPrefix prefixes every environment override, e.g. SECRETARY_MODEL_PROVIDER.
const EnvPrefix = "SECRETARY"

// Config stores all configuration of the application.
type Config struct {
	Model     ModelConfig     `mapstructure:"model"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Store     StoreConfig     `mapstructure:"store"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ModelConfig selects and parameterizes the model provider.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai", "anthropic", "mock"
	Name        string  `mapstructure:"name"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// AgentConfig mirrors engine.Options.
type AgentConfig struct {
	Policy     string `mapstructure:"policy"`
	Rollback   string `mapstructure:"rollback"`
	MaxRetries int    `mapstructure:"max_retries"`
	MaxSteps   int    `mapstructure:"max_steps"`
	Admission  string `mapstructure:"admission"`
	NoDataText string `mapstructure:"no_data_text"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	Type string `mapstructure:"type"` // "memory" or "sqlite"
	DSN  string `mapstructure:"dsn"`
}

// ChatConfig configures the conversation facade.
type ChatConfig struct {
	Locale         string        `mapstructure:"locale"`
	TimeZone       string        `mapstructure:"time_zone"`
	MinQueryLength int           `mapstructure:"min_query_length"`
	MaxQueryLength int           `mapstructure:"max_query_length"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console", "json", "text"
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "gpt-4o-mini")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.max_tokens", 1024)
	// Unmarshal only sees env overrides for keys viper already knows.
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")

	v.SetDefault("agent.policy", string(engine.PolicyStrict))
	v.SetDefault("agent.rollback", string(engine.RollbackEnd))
	v.SetDefault("agent.max_retries", engine.DefaultMaxRetries)
	v.SetDefault("agent.max_steps", core.DefaultMaxSteps)
	v.SetDefault("agent.admission", string(engine.AdmissionWait))
	v.SetDefault("agent.no_data_text", "")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.dsn", "secretary.db")

	v.SetDefault("chat.locale", "en")
	v.SetDefault("chat.time_zone", "")
	v.SetDefault("chat.min_query_length", 2)
	v.SetDefault("chat.max_query_length", 256)
	v.SetDefault("chat.timeout", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "secretary")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// LoadDotEnv loads files (".env" when none are given) into the process
// environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from path (optional) and the environment. With an
// empty path, config.yaml is looked up in the working directory and
// $HOME/.secretary; a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.secretary")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %v", core.ErrInvalidConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", core.ErrInvalidConfig, err)
	}

	cfg.applyProviderKeys()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyProviderKeys falls back to the provider's conventional env variable.
func (c *Config) applyProviderKeys() {
	if c.Model.APIKey != "" {
		return
	}
	switch c.Model.Provider {
	case "openai":
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate checks provider, policy names and numeric bounds.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}
	if c.Model.Provider != "mock" && c.Model.Name == "" {
		errs = append(errs, errors.New("model name is required"))
	}

	if _, err := engine.ParsePolicy(c.Agent.Policy); err != nil {
		errs = append(errs, err)
	}
	if _, err := engine.ParseRollbackPolicy(c.Agent.Rollback); err != nil {
		errs = append(errs, err)
	}
	if _, err := engine.ParseAdmission(c.Agent.Admission); err != nil {
		errs = append(errs, err)
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, errors.New("agent.max_steps must be positive"))
	}
	if c.Agent.MaxRetries < 0 {
		errs = append(errs, errors.New("agent.max_retries must not be negative"))
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}

	if c.Chat.MinQueryLength < 0 || c.Chat.MaxQueryLength <= c.Chat.MinQueryLength {
		errs = append(errs, errors.New("chat query length bounds are invalid"))
	}

	switch c.Log.Format {
	case "console", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio must be within [0, 1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EngineOptions translates the agent section into engine options.
// Call Validate first; parse errors are ignored here.
func (c *Config) EngineOptions() func(o *engine.Options) {
	return func(o *engine.Options) {
		o.Policy, _ = engine.ParsePolicy(c.Agent.Policy)
		o.Rollback, _ = engine.ParseRollbackPolicy(c.Agent.Rollback)
		o.Admission, _ = engine.ParseAdmission(c.Agent.Admission)
		o.MaxRetries = c.Agent.MaxRetries
		o.MaxSteps = c.Agent.MaxSteps
		if c.Agent.NoDataText != "" {
			o.NoDataText = c.Agent.NoDataText
		}
	}
}
