// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables with the VERDANT_ prefix (runtime override)
//  2. Config file (~/.verdant/config.yaml)
//  3. Default values
//
// Validation uses sentinel errors so callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Deployment environments. Persistence unavailability is fatal everywhere
// except production, where the service degrades to non-resumable sessions.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// LLM/embedding provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidEnvironment indicates an unknown deployment environment.
	ErrInvalidEnvironment = errors.New("invalid environment")

	// ErrInvalidProvider indicates the provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidTopK indicates an out-of-range retrieval fan-out size.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidRetries indicates an out-of-range LLM retry count.
	ErrInvalidRetries = errors.New("invalid max_llm_retries")

	// ErrInvalidStepBudget indicates an out-of-range conversation step budget.
	ErrInvalidStepBudget = errors.New("invalid max_steps")

	// ErrInvalidCheckpointTable indicates an unsafe checkpoint table name.
	ErrInvalidCheckpointTable = errors.New("invalid checkpoint table name")
)

// checkpointTablePattern restricts configured table names to plain
// identifiers. Clear() interpolates these names into DELETE statements, so
// anything else is rejected at load time.
var checkpointTablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Config stores application configuration.
type Config struct {
	// Deployment environment: development (default), test, production.
	Environment string `mapstructure:"environment"`

	// LLM provider and model configuration.
	Provider    string  `mapstructure:"provider"`   // "openai" or "googleai"
	ModelName   string  `mapstructure:"model_name"` // e.g. "gpt-4o-mini", "gemini-2.5-flash"
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// API keys (environment variables only, never written to the config file).
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	// Embedding configuration. Dimension must match the pgvector column.
	EmbedderModel     string `mapstructure:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension"`

	// Retrieval configuration.
	ChunkWindowSize int `mapstructure:"chunk_window_size"` // sentences of context either side
	TopK            int `mapstructure:"top_k"`             // per-index retrieval fan-out
	RerankTopN      int `mapstructure:"rerank_top_n"`      // kept after reranking

	// Conversation configuration.
	MaxSteps           int `mapstructure:"max_steps"`            // per-turn state machine hop budget
	MaxLLMRetries      int `mapstructure:"max_llm_retries"`      // attempts per LLM call
	MaxHistoryMessages int `mapstructure:"max_history_messages"` // window before each model call

	// Outbound LLM rate limiting (token bucket).
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	// Storage configuration.
	PostgresHost       string `mapstructure:"postgres_host"`
	PostgresPort       int    `mapstructure:"postgres_port"`
	PostgresUser       string `mapstructure:"postgres_user"`
	PostgresPassword   string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName     string `mapstructure:"postgres_db_name"`
	PostgresSSLMode    string `mapstructure:"postgres_ssl_mode"`
	PostgresPoolSize   int    `mapstructure:"postgres_pool_size"`
	ConnectTimeoutSecs int    `mapstructure:"connect_timeout_secs"`

	// PersistDir holds the keyword and relationship index files.
	PersistDir string `mapstructure:"persist_dir"`

	// CheckpointTables is the set of tables swept by ClearChatHistory,
	// keyed by thread id. Kept in config so schema evolution does not
	// require code changes.
	CheckpointTables []string `mapstructure:"checkpoint_tables"`

	// Debug exposes tool and system scaffolding messages in responses.
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from defaults, the optional config file, and
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("VERDANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".verdant"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)

	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("model_name", "gpt-4o-mini")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_tokens", 20000)

	v.SetDefault("embedder_model", "text-embedding-3-small")
	v.SetDefault("embedder_dimension", 768)

	v.SetDefault("chunk_window_size", 3)
	v.SetDefault("top_k", 5)
	v.SetDefault("rerank_top_n", 4)

	v.SetDefault("max_steps", 10)
	v.SetDefault("max_llm_retries", 3)
	v.SetDefault("max_history_messages", 50)

	// Matches conservative upstream quotas: one request per second with no
	// burst headroom.
	v.SetDefault("rate_limit_per_second", 1.0)
	v.SetDefault("rate_limit_burst", 1)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "verdant")
	v.SetDefault("postgres_db_name", "verdant")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_pool_size", 4)
	v.SetDefault("connect_timeout_secs", 5)

	v.SetDefault("persist_dir", defaultPersistDir())

	v.SetDefault("checkpoint_tables", []string{
		"conversation_checkpoints",
		"conversation_messages",
	})

	v.SetDefault("debug", false)
}

func defaultPersistDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verdant/storage"
	}
	return filepath.Join(home, ".verdant", "storage")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.Environment)
	}

	switch c.Provider {
	case ProviderOpenAI, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (must be in [1, 50])", ErrInvalidTopK, c.TopK)
	}
	if c.MaxLLMRetries < 1 || c.MaxLLMRetries > 10 {
		return fmt.Errorf("%w: %d (must be in [1, 10])", ErrInvalidRetries, c.MaxLLMRetries)
	}
	if c.MaxSteps < 1 || c.MaxSteps > 100 {
		return fmt.Errorf("%w: %d (must be in [1, 100])", ErrInvalidStepBudget, c.MaxSteps)
	}

	if len(c.CheckpointTables) == 0 {
		return fmt.Errorf("%w: table list must not be empty", ErrInvalidCheckpointTable)
	}
	for _, table := range c.CheckpointTables {
		if !checkpointTablePattern.MatchString(table) {
			return fmt.Errorf("%w: %q", ErrInvalidCheckpointTable, table)
		}
	}

	return nil
}

// APIKey returns the API key for the configured provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case ProviderGoogleAI:
		return c.GeminiAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// PostgresURL builds the connection URL for pgx and golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// IsProduction reports whether the deployment environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
