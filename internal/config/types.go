package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	LogRotateSize  *int                  `yaml:"log_rotate_size_mb"`
	LogRotateKeep  *int                  `yaml:"log_rotate_keep"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Timezone       string                `yaml:"timezone"`
	AI             AIConfig              `yaml:"ai"`
	Pipeline       PipelineConfig        `yaml:"pipeline"`
	Upload         UploadConfig          `yaml:"upload"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

// AIConfig describes the generation providers tried in list order, plus the
// speech-to-text credentials used for audio and video inputs.
type AIConfig struct {
	Providers     []AIProvider        `yaml:"providers"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | Anthropic | Gemini | OpenAI-Compatible
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

type TranscriptionConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// PipelineConfig tunes the generation pipeline. Zero values fall back to
// built-in defaults during Load.
type PipelineConfig struct {
	AttemptsPerProvider   int `yaml:"attempts_per_provider"`
	InitialBackoffMs      int `yaml:"initial_backoff_ms"`
	CallTimeoutSeconds    int `yaml:"call_timeout_seconds"`
	OverallTimeoutSeconds int `yaml:"overall_timeout_seconds"`
	MaxTextRunes          int `yaml:"max_text_runes"`
	SummarySentences      int `yaml:"summary_sentences"`
	KeyPoints             int `yaml:"key_points"`
	FlashcardCount        int `yaml:"flashcard_count"`
	QuestionCount         int `yaml:"question_count"`
}

type UploadConfig struct {
	MaxSizeMB int `yaml:"max_size_mb"`
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	DSN                string            `yaml:"dsn"`
	DatabaseURL        string            `yaml:"database_url"`
	RedisURL           string            `yaml:"redis_url"`
	Database           rawDatabaseConfig `yaml:"database"`
	Redis              rawRedisConfig    `yaml:"redis"`
	DBHost             string            `yaml:"db_host"`
	DBPort             int               `yaml:"db_port"`
	DBUser             string            `yaml:"db_user"`
	DBPassword         string            `yaml:"db_password"`
	DBName             string            `yaml:"db_name"`
	DBCharset          string            `yaml:"db_charset"`
	DBLoc              string            `yaml:"db_loc"`
	DBParseTime        *bool             `yaml:"db_parse_time"`
	RedisHost          string            `yaml:"redis_host"`
	RedisPort          int               `yaml:"redis_port"`
	RedisUsername      string            `yaml:"redis_username"`
	RedisPassword      string            `yaml:"redis_password"`
	RedisDB            *int              `yaml:"redis_db"`
	RedisTLS           *bool             `yaml:"redis_tls"`
	Env                string            `yaml:"env"`
	Paths              rawPathsConfig    `yaml:"paths"`
	LogDir             string            `yaml:"log_dir"`
	LogsDir            string            `yaml:"logs_dir"`
	LogRotateSize      *int              `yaml:"log_rotate_size_mb"`
	LogRotateKeep      *int              `yaml:"log_rotate_keep"`
	UploadDir          string            `yaml:"upload_dir"`
	UploadsDir         string            `yaml:"uploads_dir"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	Timezone           string            `yaml:"timezone"`
	TimeZone           string            `yaml:"time_zone"`
	TZ                 string            `yaml:"tz"`
	AI                 rawAIConfig       `yaml:"ai"`
	Pipeline           PipelineConfig    `yaml:"pipeline"`
	Upload             rawUploadConfig   `yaml:"upload"`
	UploadMaxSizeMB    *int              `yaml:"upload_max_size_mb"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

type rawAIConfig struct {
	Providers     []rawAIProvider        `yaml:"providers"`
	Transcription rawTranscriptionConfig `yaml:"transcription"`
}

type rawAIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	APIKey       string `yaml:"api_key"`
	APIKeyLegacy string `yaml:"apikey"`
	Endpoint     string `yaml:"endpoint"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	Model        string `yaml:"model"`
	Enabled      *bool  `yaml:"enabled"`
}

type rawTranscriptionConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

type rawUploadConfig struct {
	MaxSizeMB *int `yaml:"max_size_mb"`
	MaxSize   *int `yaml:"max_size"`
}
