package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Classifier.Provider)
	assert.Equal(t, "penal", cfg.Classifier.Prompt)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", cfg.Gemini.BaseURL)
	assert.Equal(t, 30, cfg.Classifier.TimeoutSecs)
	assert.Equal(t, 1, cfg.Classifier.MaxAttempts)
	assert.Zero(t, cfg.Classifier.RateLimitRPS)
	assert.True(t, cfg.LawCrawler.Enabled)
	assert.Equal(t, 3, cfg.LawCrawler.MaxEvidence)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "honoris-key.json", cfg.Store.CredentialsFile)
	assert.Equal(t, "async", cfg.Persistence.Mode)
	assert.Equal(t, "memory", cfg.Persistence.Queue)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "public", cfg.Server.StaticDir)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
classifier:
  provider: anthropic
  prompt: honor
persistence:
  mode: sync
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Classifier.Provider)
	assert.Equal(t, "honor", cfg.Classifier.Prompt)
	assert.Equal(t, "sync", cfg.Persistence.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.LawCrawler.MaxEvidence)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HONORIS_STORE_DRIVER", "postgres")
	t.Setenv("HONORIS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadLegacyEnvNames(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GEMINI_API_KEY", "gm-legacy")
	t.Setenv("PORT", "4000")
	t.Setenv("PYTHON_API_URL", "http://localhost:8000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gm-legacy", cfg.Gemini.Key)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.LawCrawler.BaseURL)
}

func TestLoadPrefixedEnvWinsOverLegacy(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GEMINI_API_KEY", "gm-legacy")
	t.Setenv("HONORIS_GEMINI_KEY", "gm-new")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gm-new", cfg.Gemini.Key)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HONORIS_CLASSIFIER_PROVIDER", "ollama")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported classifier provider")
}

func TestLoadRedisQueueNeedsURL(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HONORIS_PERSISTENCE_QUEUE", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis_url")
}

func TestResolveStore_Unconfigured(t *testing.T) {
	chdirTemp(t)
	cfg := &Config{Store: StoreConfig{Driver: "postgres", CredentialsFile: "honoris-key.json"}}

	_, ok, err := cfg.ResolveStore()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveStore_FileWinsOverInline(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "honoris-key.json"),
		[]byte(`{"driver":"sqlite","database_url":"file.db"}`), 0600))

	cfg := &Config{Store: StoreConfig{
		Driver:          "postgres",
		CredentialsFile: "honoris-key.json",
		Credentials:     `{"database_url":"postgres://inline"}`,
	}}

	creds, ok, err := cfg.ResolveStore()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sqlite", creds.Driver)
	assert.Equal(t, "file.db", creds.DatabaseURL)
}

func TestResolveStore_InlineCredentials(t *testing.T) {
	chdirTemp(t)
	cfg := &Config{Store: StoreConfig{
		Driver:          "postgres",
		CredentialsFile: "missing.json",
		Credentials:     `{"database_url":"postgres://inline"}`,
	}}

	creds, ok, err := cfg.ResolveStore()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "postgres", creds.Driver)
	assert.Equal(t, "postgres://inline", creds.DatabaseURL)
}

func TestResolveStore_DatabaseURL(t *testing.T) {
	chdirTemp(t)
	cfg := &Config{Store: StoreConfig{Driver: "sqlite", DatabaseURL: "honoris.db"}}

	creds, ok, err := cfg.ResolveStore()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sqlite", creds.Driver)
	assert.Equal(t, "honoris.db", creds.DatabaseURL)
}

func TestResolveStore_BadInline(t *testing.T) {
	chdirTemp(t)
	cfg := &Config{Store: StoreConfig{Credentials: `{not json`}}

	_, _, err := cfg.ResolveStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse inline store credentials")
}

func TestResolveStore_MissingURL(t *testing.T) {
	chdirTemp(t)
	cfg := &Config{Store: StoreConfig{Credentials: `{"driver":"postgres"}`}}

	_, _, err := cfg.ResolveStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing database_url")
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	tests := []struct {
		name    string
		cfg     Config
		command string
		wantErr string
	}{
		{
			name:    "repl_without_key",
			cfg:     Config{Classifier: ClassifierConfig{Provider: "gemini"}},
			command: "repl",
			wantErr: "gemini.key is required",
		},
		{
			name:    "classify_with_anthropic_key",
			cfg:     Config{Classifier: ClassifierConfig{Provider: "anthropic"}, Anthropic: AnthropicConfig{Key: "sk"}},
			command: "classify",
		},
		{
			name:    "serve_bad_port",
			cfg:     Config{Server: ServerConfig{Port: 0}},
			command: "serve",
			wantErr: "server.port",
		},
		{
			name:    "serve_ok_without_key",
			cfg:     Config{Server: ServerConfig{Port: 3000}},
			command: "serve",
		},
		{
			name:    "history_without_store",
			cfg:     Config{},
			command: "history",
			wantErr: "store credentials",
		},
		{
			name:    "migrate_with_store",
			cfg:     Config{Store: StoreConfig{Driver: "sqlite", DatabaseURL: "x.db"}},
			command: "migrate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.command)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestLoadEnvWithoutFileKey(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HONORIS_STORE_DATABASE_URL", "postgres://env")
	t.Setenv("HONORIS_ANTHROPIC_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Store.DatabaseURL)
	assert.Equal(t, "sk-env", cfg.Anthropic.Key)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
}
