package config

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ledgersync/internal/logger"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Credentials
	CredentialsAPIKey       string
	CredentialsSecret       string
	CredentialsTokenFile    string
	CredentialsPollInterval time.Duration

	// Auto-sync
	SyncDebounce    time.Duration
	SyncMinInterval time.Duration
	SyncCooldown    time.Duration

	// Remote store
	RemoteBackend      string
	RemoteTimeout      time.Duration
	RemoteWorkbookPath string
	SheetsEndpoint     string
	ExportDir          string

	// Exchange rates
	RatesTimeout    time.Duration
	RatesCacheTTL   time.Duration
	RatesMinRefresh time.Duration
}

var (
	appConfig *Config
	mu        sync.Mutex
)

var defaults = map[string]string{
	"port":                      "8080",
	"env":                       "development",
	"db.driver":                 "sqlite",
	"db.path":                   "ledgersync.db",
	"db.host":                   "localhost",
	"db.port":                   "5432",
	"db.user":                   "ledgersync",
	"db.password":               "ledgersync",
	"db.name":                   "ledgersync",
	"db.sslmode":                "disable",
	"jwt.secret":                "fallback-secret-key-for-dev-only",
	"jwt.expires_in":            "24h",
	"credentials.api_key":       "",
	"credentials.secret":        "fallback-credentials-secret-for-dev-only",
	"credentials.token_file":    "",
	"credentials.poll_interval": "1m",
	"sync.debounce":             "3s",
	"sync.min_interval":         "2m",
	"sync.cooldown":             "1s",
	"remote.backend":            "google",
	"remote.timeout":            "10s",
	"remote.workbook_path":      "ledgersync.xlsx",
	"sheets.endpoint":           "",
	"export.dir":                "exports",
	"rates.timeout":             "10s",
	"rates.cache_ttl":           "30m",
	"rates.min_refresh":         "5m",
}

// Load reads .env, an optional ledgersync.yaml, and environment variables, in
// increasing order of precedence. Environment keys are the upper-cased config
// keys with dots replaced by underscores (sync.debounce -> SYNC_DEBOUNCE).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Get().Debug(".env file not found, using environment only")
	}

	v := viper.New()
	v.SetConfigName("ledgersync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ledgersync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config := &Config{
		Port: v.GetString("port"),
		Env:  v.GetString("env"),

		DBDriver:   strings.ToLower(v.GetString("db.driver")),
		DBPath:     v.GetString("db.path"),
		DBHost:     v.GetString("db.host"),
		DBPort:     v.GetString("db.port"),
		DBUser:     v.GetString("db.user"),
		DBPassword: v.GetString("db.password"),
		DBName:     v.GetString("db.name"),
		DBSSLMode:  v.GetString("db.sslmode"),

		JWTSecret:        v.GetString("jwt.secret"),
		JWTExpirationDur: getDuration(v, "jwt.expires_in"),

		CredentialsAPIKey:       v.GetString("credentials.api_key"),
		CredentialsSecret:       v.GetString("credentials.secret"),
		CredentialsTokenFile:    v.GetString("credentials.token_file"),
		CredentialsPollInterval: getDuration(v, "credentials.poll_interval"),

		SyncDebounce:    getDuration(v, "sync.debounce"),
		SyncMinInterval: getDuration(v, "sync.min_interval"),
		SyncCooldown:    getDuration(v, "sync.cooldown"),

		RemoteBackend:      strings.ToLower(v.GetString("remote.backend")),
		RemoteTimeout:      getDuration(v, "remote.timeout"),
		RemoteWorkbookPath: v.GetString("remote.workbook_path"),
		SheetsEndpoint:     v.GetString("sheets.endpoint"),
		ExportDir:          v.GetString("export.dir"),

		RatesTimeout:    getDuration(v, "rates.timeout"),
		RatesCacheTTL:   getDuration(v, "rates.cache_ttl"),
		RatesMinRefresh: getDuration(v, "rates.min_refresh"),
	}

	mu.Lock()
	appConfig = config
	mu.Unlock()
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	mu.Lock()
	cfg := appConfig
	mu.Unlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load()
	if err != nil {
		logger.Get().Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// getDuration parses a duration key, falling back to its default when the
// configured value is not a valid duration.
func getDuration(v *viper.Viper, key string) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err == nil && d >= 0 {
		return d
	}

	def, _ := time.ParseDuration(defaults[key])
	logger.Get().Warnf("invalid %s value '%s', falling back to %s", key, raw, def)
	return def
}
