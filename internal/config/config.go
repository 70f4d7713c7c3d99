// Package config loads startup configuration from a YAML file.
// Unknown keys are rejected; legacy flat keys (db_host, redis_port, ...)
// remain accepted alongside the nested sections, with nested values
// taking precedence when both appear.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the config file at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	applyRawAppConfig(&cfg, raw)
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, path)
	}
	for i, p := range cfg.AI.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("ai.providers[%d] in %q has no id", i, path)
		}
		if p.Type == "" {
			return nil, fmt.Errorf("ai provider %q in %q has no type", p.ID, path)
		}
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Pipeline: defaultPipelineConfig(),
		Upload: UploadConfig{
			MaxSizeMB: defaultUploadMaxSizeMB,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func defaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		AttemptsPerProvider:   defaultAttemptsPerProvider,
		InitialBackoffMs:      defaultInitialBackoffMs,
		CallTimeoutSeconds:    defaultCallTimeoutSeconds,
		OverallTimeoutSeconds: defaultOverallTimeoutSeconds,
		MaxTextRunes:          defaultMaxTextRunes,
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogsDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Uploads); v != "" {
		cfg.Paths.Uploads = v
	}
	if v := strings.TrimSpace(raw.UploadDir); v != "" {
		cfg.Paths.Uploads = v
	}
	if v := strings.TrimSpace(raw.UploadsDir); v != "" {
		cfg.Paths.Uploads = v
	}
	if raw.LogRotateSize != nil {
		v := *raw.LogRotateSize
		cfg.LogRotateSize = &v
	}
	if raw.LogRotateKeep != nil {
		v := *raw.LogRotateKeep
		cfg.LogRotateKeep = &v
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TimeZone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	cfg.AI = applyRawAIConfig(raw.AI)
	cfg.Pipeline = applyRawPipelineConfig(cfg.Pipeline, raw.Pipeline)

	if raw.Upload.MaxSizeMB != nil {
		cfg.Upload.MaxSizeMB = *raw.Upload.MaxSizeMB
	} else if raw.Upload.MaxSize != nil {
		cfg.Upload.MaxSizeMB = *raw.Upload.MaxSize
	}
	if raw.UploadMaxSizeMB != nil {
		cfg.Upload.MaxSizeMB = *raw.UploadMaxSizeMB
	}
	if cfg.Upload.MaxSizeMB <= 0 {
		cfg.Upload.MaxSizeMB = defaultUploadMaxSizeMB
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.DBHost); v != "" {
		cfg.Host = v
	}
	if raw.DBPort != 0 {
		cfg.Port = raw.DBPort
	}
	if v := strings.TrimSpace(raw.DBUser); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.DBPassword); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.DBCharset); v != "" {
		cfg.Charset = v
	}
	if v := strings.TrimSpace(raw.DBLoc); v != "" {
		cfg.Loc = v
	}
	if raw.DBParseTime != nil {
		cfg.ParseTime = *raw.DBParseTime
	}

	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.DBName); v != "" {
		cfg.DBName = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}

	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.RedisHost); v != "" {
		cfg.Host = v
	}
	if raw.RedisPort != 0 {
		cfg.Port = raw.RedisPort
	}
	if v := strings.TrimSpace(raw.RedisUsername); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.RedisPassword); v != "" {
		cfg.Password = v
	}
	if raw.RedisDB != nil {
		cfg.DB = *raw.RedisDB
	}
	if raw.RedisTLS != nil {
		cfg.TLS = *raw.RedisTLS
	}

	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if v := strings.TrimSpace(raw.Redis.Scheme); v != "" {
		cfg.Scheme = v
	}
	if raw.Redis.Params != nil {
		cfg.Params = copyStringMap(raw.Redis.Params)
	}

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}

	return normalizeRedisConfig(cfg)
}

func applyRawAIConfig(raw rawAIConfig) AIConfig {
	cfg := AIConfig{}
	for _, p := range raw.Providers {
		provider := AIProvider{
			ID:           strings.TrimSpace(p.ID),
			Name:         strings.TrimSpace(p.Name),
			Type:         strings.TrimSpace(p.Type),
			APIKey:       strings.TrimSpace(p.APIKey),
			Endpoint:     strings.TrimSpace(p.Endpoint),
			DefaultModel: strings.TrimSpace(p.DefaultModel),
			Enabled:      true,
		}
		if provider.APIKey == "" {
			provider.APIKey = strings.TrimSpace(p.APIKeyLegacy)
		}
		if provider.Endpoint == "" {
			provider.Endpoint = strings.TrimSpace(p.BaseURL)
		}
		if provider.DefaultModel == "" {
			provider.DefaultModel = strings.TrimSpace(p.Model)
		}
		if provider.Name == "" {
			provider.Name = provider.ID
		}
		if p.Enabled != nil {
			provider.Enabled = *p.Enabled
		}
		cfg.Providers = append(cfg.Providers, provider)
	}

	cfg.Transcription = TranscriptionConfig{
		APIKey:   strings.TrimSpace(raw.Transcription.APIKey),
		Endpoint: strings.TrimSpace(raw.Transcription.Endpoint),
		Model:    strings.TrimSpace(raw.Transcription.Model),
	}
	if cfg.Transcription.Endpoint == "" {
		cfg.Transcription.Endpoint = strings.TrimSpace(raw.Transcription.BaseURL)
	}
	return cfg
}

func applyRawPipelineConfig(current, raw PipelineConfig) PipelineConfig {
	cfg := current
	if raw.AttemptsPerProvider > 0 {
		cfg.AttemptsPerProvider = raw.AttemptsPerProvider
	}
	if raw.InitialBackoffMs > 0 {
		cfg.InitialBackoffMs = raw.InitialBackoffMs
	}
	if raw.CallTimeoutSeconds > 0 {
		cfg.CallTimeoutSeconds = raw.CallTimeoutSeconds
	}
	if raw.OverallTimeoutSeconds > 0 {
		cfg.OverallTimeoutSeconds = raw.OverallTimeoutSeconds
	}
	if raw.MaxTextRunes > 0 {
		cfg.MaxTextRunes = raw.MaxTextRunes
	}
	if raw.SummarySentences > 0 {
		cfg.SummarySentences = raw.SummarySentences
	}
	if raw.KeyPoints > 0 {
		cfg.KeyPoints = raw.KeyPoints
	}
	if raw.FlashcardCount > 0 {
		cfg.FlashcardCount = raw.FlashcardCount
	}
	if raw.QuestionCount > 0 {
		cfg.QuestionCount = raw.QuestionCount
	}
	return cfg
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}

// LogDir resolves the log directory against the executable directory.
func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// UploadDir resolves the upload staging directory against the executable directory.
func (c *AppConfig) UploadDir() string {
	return ResolveRuntimePath(c.Paths.Uploads, "uploads")
}

// LogRotateSizeMB returns the configured rotation size, if any.
func (c *AppConfig) LogRotateSizeMB() (int, bool) {
	if c.LogRotateSize == nil {
		return 0, false
	}
	return *c.LogRotateSize, true
}

// LogRotateKeepCount returns the configured rotation retention, if any.
func (c *AppConfig) LogRotateKeepCount() (int, bool) {
	if c.LogRotateKeep == nil {
		return 0, false
	}
	return *c.LogRotateKeep, true
}

// UploadMaxBytes converts the upload cap to a byte limit.
func (c *AppConfig) UploadMaxBytes() int64 {
	mb := c.Upload.MaxSizeMB
	if mb <= 0 {
		mb = defaultUploadMaxSizeMB
	}
	return int64(mb) << 20
}
