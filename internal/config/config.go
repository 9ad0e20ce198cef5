package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is loaded once at
// process start and treated as read-only afterwards.
type Config struct {
	Classifier  ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Gemini      GeminiConfig      `yaml:"gemini" mapstructure:"gemini"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	LawCrawler  LawCrawlerConfig  `yaml:"lawcrawler" mapstructure:"lawcrawler"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Persistence PersistenceConfig `yaml:"persistence" mapstructure:"persistence"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ClassifierConfig selects the LLM provider and prompt template and sets the
// call policy shared by both providers.
type ClassifierConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"`
	Prompt       string  `yaml:"prompt" mapstructure:"prompt"`
	PromptFile   string  `yaml:"prompt_file" mapstructure:"prompt_file"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts  int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// GeminiConfig holds Gemini generateContent API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for the alternate provider.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LawCrawlerConfig configures the secondary legal search service.
type LawCrawlerConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxEvidence      int    `yaml:"max_evidence" mapstructure:"max_evidence"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	CredentialsFile  string `yaml:"credentials_file" mapstructure:"credentials_file"`
	Credentials      string `yaml:"credentials" mapstructure:"credentials"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns         int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PersistenceConfig controls how analyses reach the store.
//
// Mode is "async" (fire-and-forget through a queue, the response never waits
// for the write) or "sync" (the write is awaited before responding, failures
// are still only logged). Queue is "memory" or "redis".
type PersistenceConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode"`
	Queue      string `yaml:"queue" mapstructure:"queue"`
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`
	Buffer     int    `yaml:"buffer" mapstructure:"buffer"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	PollMillis int    `yaml:"poll_millis" mapstructure:"poll_millis"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	StaticDir          string   `yaml:"static_dir" mapstructure:"static_dir"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreCredentials is the service-account document that points the process
// at its document store.
type StoreCredentials struct {
	Driver      string `json:"driver"`
	DatabaseURL string `json:"database_url"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HONORIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by earlier deployments.
	for key, legacy := range map[string]string{
		"gemini.key":          "GEMINI_API_KEY",
		"server.port":         "PORT",
		"lawcrawler.base_url": "PYTHON_API_URL",
	} {
		if err := v.BindEnv(key, "HONORIS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("classifier.provider", "gemini")
	v.SetDefault("classifier.prompt", "penal")
	v.SetDefault("classifier.prompt_file", "")
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("classifier.max_attempts", 1)
	v.SetDefault("classifier.rate_limit_rps", 0.0)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("lawcrawler.enabled", true)
	v.SetDefault("lawcrawler.base_url", "https://lawcrawler-api-production.up.railway.app")
	v.SetDefault("lawcrawler.timeout_secs", 10)
	v.SetDefault("lawcrawler.max_evidence", 3)
	v.SetDefault("lawcrawler.breaker_threshold", 5)
	v.SetDefault("lawcrawler.breaker_reset_secs", 30)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.credentials_file", "honoris-key.json")
	v.SetDefault("store.write_timeout_secs", 5)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.credentials", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("persistence.redis_url", "")
	v.SetDefault("persistence.mode", "async")
	v.SetDefault("persistence.queue", "memory")
	v.SetDefault("persistence.buffer", 256)
	v.SetDefault("persistence.batch_size", 20)
	v.SetDefault("persistence.poll_millis", 500)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Classifier.Provider {
	case "gemini", "anthropic":
	default:
		return eris.Errorf("config: unsupported classifier provider %q", c.Classifier.Provider)
	}
	switch c.Persistence.Mode {
	case "async", "sync":
	default:
		return eris.Errorf("config: unsupported persistence mode %q", c.Persistence.Mode)
	}
	switch c.Persistence.Queue {
	case "memory", "redis":
	default:
		return eris.Errorf("config: unsupported persistence queue %q", c.Persistence.Queue)
	}
	if c.Persistence.Queue == "redis" && c.Persistence.RedisURL == "" {
		return eris.New("config: persistence.redis_url is required for the redis queue")
	}
	return nil
}

// Validate checks the settings a specific command cannot run without.
func (c *Config) Validate(command string) error {
	var missing []string
	switch command {
	case "repl", "classify":
		if c.APIKey() == "" {
			missing = append(missing, c.Classifier.Provider+".key is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
	case "history", "migrate":
		if _, ok, err := c.ResolveStore(); err != nil {
			return err
		} else if !ok {
			missing = append(missing, "store credentials or store.database_url are required")
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// APIKey returns the key for the configured classifier provider.
func (c *Config) APIKey() string {
	if c.Classifier.Provider == "anthropic" {
		return c.Anthropic.Key
	}
	return c.Gemini.Key
}

// ResolveStore locates document-store credentials. The credentials file wins
// over the inline credentials value, which wins over store.database_url. The
// boolean is false when nothing is configured and the process should run
// without persistence.
func (c *Config) ResolveStore() (StoreCredentials, bool, error) {
	if c.Store.CredentialsFile != "" {
		data, err := os.ReadFile(c.Store.CredentialsFile)
		switch {
		case err == nil:
			return c.parseCredentials(data, "file")
		case !errors.Is(err, fs.ErrNotExist):
			return StoreCredentials{}, false, eris.Wrap(err, "config: read store credentials file")
		}
	}

	if strings.TrimSpace(c.Store.Credentials) != "" {
		return c.parseCredentials([]byte(c.Store.Credentials), "inline")
	}

	if c.Store.DatabaseURL != "" {
		return StoreCredentials{Driver: c.Store.Driver, DatabaseURL: c.Store.DatabaseURL}, true, nil
	}

	return StoreCredentials{}, false, nil
}

func (c *Config) parseCredentials(data []byte, origin string) (StoreCredentials, bool, error) {
	var creds StoreCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return StoreCredentials{}, false, eris.Wrapf(err, "config: parse %s store credentials", origin)
	}
	if creds.Driver == "" {
		creds.Driver = c.Store.Driver
	}
	if creds.DatabaseURL == "" {
		return StoreCredentials{}, false, eris.Errorf("config: %s store credentials missing database_url", origin)
	}
	return creds, true, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
