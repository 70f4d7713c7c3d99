package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "edumorph"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultAttemptsPerProvider   = 2
	defaultInitialBackoffMs      = 500
	defaultCallTimeoutSeconds    = 30
	defaultOverallTimeoutSeconds = 90
	defaultMaxTextRunes          = 20_000
	defaultUploadMaxSizeMB       = 64
)
