package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "port: 8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Contains(t, cfg.DSN, "edumorph")
	assert.Contains(t, cfg.DSN, "charset=utf8mb4")
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, defaultAttemptsPerProvider, cfg.Pipeline.AttemptsPerProvider)
	assert.Equal(t, defaultMaxTextRunes, cfg.Pipeline.MaxTextRunes)
	assert.Equal(t, defaultUploadMaxSizeMB, cfg.Upload.MaxSizeMB)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, "port: 8080\nbogus_key: true\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfigFile(t, "port: 99999\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLoadNestedDatabaseOverridesFlatKeys(t *testing.T) {
	path := writeConfigFile(t, `
port: 8080
db_host: flat-host
database:
  host: nested-host
  user: app
  password: secret
  name: studydb
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nested-host", cfg.Database.Host)
	assert.Contains(t, cfg.DSN, "app:secret@tcp(nested-host:3306)/studydb")
}

func TestLoadRedisURLWinsOverHostParts(t *testing.T) {
	path := writeConfigFile(t, `
port: 8080
redis:
  host: ignored
  port: 6380
redis_url: rediss://cache.internal:6390/2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rediss://cache.internal:6390/2", cfg.RedisURL)
}

func TestLoadAIProviders(t *testing.T) {
	path := writeConfigFile(t, `
port: 8080
ai:
  providers:
    - id: main
      type: OpenAI
      api_key: sk-test
      default_model: gpt-4o-mini
    - id: backup
      name: Claude
      type: Anthropic
      api_key: sk-ant
      enabled: false
  transcription:
    api_key: sk-whisper
    model: whisper-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.AI.Providers, 2)

	first := cfg.AI.Providers[0]
	assert.Equal(t, "main", first.ID)
	assert.Equal(t, "main", first.Name)
	assert.Equal(t, "OpenAI", first.Type)
	assert.Equal(t, "gpt-4o-mini", first.DefaultModel)
	assert.True(t, first.Enabled)

	second := cfg.AI.Providers[1]
	assert.Equal(t, "Claude", second.Name)
	assert.False(t, second.Enabled)

	assert.Equal(t, "sk-whisper", cfg.AI.Transcription.APIKey)
	assert.Equal(t, "whisper-1", cfg.AI.Transcription.Model)
}

func TestLoadRejectsProviderWithoutID(t *testing.T) {
	path := writeConfigFile(t, `
port: 8080
ai:
  providers:
    - type: OpenAI
      api_key: sk-test
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no id")
}

func TestLoadPipelineOverrides(t *testing.T) {
	path := writeConfigFile(t, `
port: 8080
pipeline:
  attempts_per_provider: 3
  initial_backoff_ms: 250
  max_text_runes: 5000
  flashcard_count: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.AttemptsPerProvider)
	assert.Equal(t, 250, cfg.Pipeline.InitialBackoffMs)
	assert.Equal(t, 5000, cfg.Pipeline.MaxTextRunes)
	assert.Equal(t, 12, cfg.Pipeline.FlashcardCount)
	assert.Equal(t, defaultCallTimeoutSeconds, cfg.Pipeline.CallTimeoutSeconds)
}

func TestDatabaseDSNValueBuildsFromParts(t *testing.T) {
	c := DatabaseRuntimeConfig{
		Host:      "db.local",
		Port:      3307,
		User:      "edu",
		Password:  "pw",
		Name:      "morph",
		Charset:   "utf8mb4",
		ParseTime: true,
		Loc:       "UTC",
	}

	dsn := c.DSNValue()
	assert.Contains(t, dsn, "edu:pw@tcp(db.local:3307)/morph")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "loc=UTC")
}

func TestRedisURLValueBuildsFromParts(t *testing.T) {
	c := RedisRuntimeConfig{
		Host:     "cache.local",
		Port:     6380,
		Password: "pw",
		DB:       3,
		TLS:      true,
	}

	url := c.URLValue()
	assert.Equal(t, "rediss://:pw@cache.local:6380/3", url)
}

func TestUploadMaxBytes(t *testing.T) {
	cfg := AppConfig{Upload: UploadConfig{MaxSizeMB: 2}}
	assert.Equal(t, int64(2<<20), cfg.UploadMaxBytes())

	empty := AppConfig{}
	assert.Equal(t, int64(defaultUploadMaxSizeMB)<<20, empty.UploadMaxBytes())
}
