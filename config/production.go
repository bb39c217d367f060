// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Security     SecurityConfig     `json:"security"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Distribution DistributionConfig `json:"distribution"`
	GeoIP        GeoIPConfig        `json:"geoip"`
	Deployment   DeploymentConfig   `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	ReferrerPolicy      string `json:"referrer_policy"`

	// API Security
	RequireAPIKey  bool     `json:"require_api_key"`
	APIKeyHeader   string   `json:"api_key_header"`
	AllowedAPIKeys []string `json:"allowed_api_keys"`
}

type LoggingConfig struct {
	Level        string `json:"level"`  // debug, info, warn, error
	Format       string `json:"format"` // json, text
	Output       string `json:"output"` // stdout, file, both
	FilePath     string `json:"file_path"`
	MaxSize      int    `json:"max_size"` // MB
	MaxBackups   int    `json:"max_backups"`
	MaxAge       int    `json:"max_age"` // days
	Compress     bool   `json:"compress"`
	EnableCaller bool   `json:"enable_caller"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	Provider    string        `json:"provider"` // redis, memory
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
	HealthEvery time.Duration `json:"health_every"`
}

// DistributionConfig controls outbound delivery to advertisers
type DistributionConfig struct {
	ConfigFile string `json:"config_file"`

	RelayEndpoint string        `json:"relay_endpoint"`
	RelayTimeout  time.Duration `json:"relay_timeout"`

	AdapterTimeout  time.Duration `json:"adapter_timeout"`
	CallbackTimeout time.Duration `json:"callback_timeout"`

	// TransportModes overrides the default transport per advertiser type ("direct" or "relay")
	TransportModes map[string]string `json:"transport_modes"`

	// Adapter specific static parameters keyed by advertiser type
	AdapterParams map[string]map[string]string `json:"adapter_params"`

	SerializeCaps bool          `json:"serialize_caps"`
	CapLockTTL    time.Duration `json:"cap_lock_ttl"`
	CapLockWait   time.Duration `json:"cap_lock_wait"`

	DefaultDailyCap   int `json:"default_daily_cap"`
	ResponseMaxLength int `json:"response_max_length"`
	ReasonMaxLength   int `json:"reason_max_length"`
}

// TransportMode returns the configured transport of an advertiser type or ""
func (d DistributionConfig) TransportMode(advertiserType string) string {
	if d.TransportModes == nil {
		return ""
	}
	return d.TransportModes[strings.ToLower(advertiserType)]
}

type GeoIPConfig struct {
	Enabled      bool   `json:"enabled"`
	DatabasePath string `json:"database_path"`
}

type DeploymentConfig struct {
	Domain    string `json:"domain"`
	APIDomain string `json:"api_domain"`

	// Build Information
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-API-Key", "X-Request-ID"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			RequireAPIKey:       getEnvBool("REQUIRE_API_KEY", false),
			APIKeyHeader:        getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys:      getEnvStringSlice("ALLOWED_API_KEYS", []string{}),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/lead-exchange/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableCaller:    getEnvBool("LOG_ENABLE_CALLER", false),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			Provider:    getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "leadx:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
			HealthEvery: getEnvDuration("CACHE_HEALTH_INTERVAL", 10*time.Second),
		},
		Distribution: DefaultDistributionConfig(),
		GeoIP: GeoIPConfig{
			Enabled:      getEnvBool("GEOIP_ENABLED", false),
			DatabasePath: getEnvString("GEOIP_DATABASE_PATH", "/usr/share/GeoIP/GeoLite2-Country.mmdb"),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "your-domain.com"),
			APIDomain:   getEnvString("API_DOMAIN", "api.your-domain.com"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Distribution precedence: defaults, then YAML file, then environment
	cfg.Distribution.ConfigFile = getEnvString("DISTRIBUTION_CONFIG_FILE", "")
	if cfg.Distribution.ConfigFile != "" {
		if err := LoadDistributionFile(cfg.Distribution.ConfigFile, &cfg.Distribution); err != nil {
			return nil, err
		}
	}
	applyDistributionEnv(&cfg.Distribution)

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultDistributionConfig returns the built-in distribution settings
func DefaultDistributionConfig() DistributionConfig {
	return DistributionConfig{
		RelayTimeout:      30 * time.Second,
		AdapterTimeout:    20 * time.Second,
		CallbackTimeout:   10 * time.Second,
		TransportModes:    map[string]string{},
		AdapterParams:     map[string]map[string]string{},
		SerializeCaps:     false,
		CapLockTTL:        30 * time.Second,
		CapLockWait:       10 * time.Second,
		DefaultDailyCap:   100,
		ResponseMaxLength: 4000,
		ReasonMaxLength:   500,
	}
}

func applyDistributionEnv(d *DistributionConfig) {
	d.RelayEndpoint = getEnvString("DISTRIBUTION_RELAY_ENDPOINT", d.RelayEndpoint)
	d.RelayTimeout = getEnvDuration("DISTRIBUTION_RELAY_TIMEOUT", d.RelayTimeout)
	d.AdapterTimeout = getEnvDuration("DISTRIBUTION_ADAPTER_TIMEOUT", d.AdapterTimeout)
	d.CallbackTimeout = getEnvDuration("DISTRIBUTION_CALLBACK_TIMEOUT", d.CallbackTimeout)
	d.SerializeCaps = getEnvBool("DISTRIBUTION_SERIALIZE_CAPS", d.SerializeCaps)
	d.CapLockTTL = getEnvDuration("DISTRIBUTION_CAP_LOCK_TTL", d.CapLockTTL)
	d.CapLockWait = getEnvDuration("DISTRIBUTION_CAP_LOCK_WAIT", d.CapLockWait)
	d.DefaultDailyCap = getEnvInt("DISTRIBUTION_DEFAULT_DAILY_CAP", d.DefaultDailyCap)
	d.ResponseMaxLength = getEnvInt("DISTRIBUTION_RESPONSE_MAX_LENGTH", d.ResponseMaxLength)
	d.ReasonMaxLength = getEnvInt("DISTRIBUTION_REASON_MAX_LENGTH", d.ReasonMaxLength)

	if d.TransportModes == nil {
		d.TransportModes = map[string]string{}
	}
	for k, v := range getEnvStringMap("DISTRIBUTION_TRANSPORT_MODES") {
		d.TransportModes[strings.ToLower(k)] = strings.ToLower(v)
	}
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Set environment variable if not already set
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// getEnvStringMap parses "a=b,c=d"; malformed pairs are skipped
func getEnvStringMap(key string) map[string]string {
	result := map[string]string{}
	for _, item := range getEnvStringSlice(key, nil) {
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	return result
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.RequireAPIKey && len(cfg.Security.AllowedAPIKeys) == 0 {
		errors = append(errors, "ALLOWED_API_KEYS is required when REQUIRE_API_KEY is enabled")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if cfg.Logging.Output != "" && !slices.Contains([]string{"stdout", "file", "both"}, cfg.Logging.Output) {
		errors = append(errors, "LOG_OUTPUT must be one of: stdout, file, both")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Validate distribution configuration
	d := cfg.Distribution
	if d.AdapterTimeout <= 0 {
		errors = append(errors, "DISTRIBUTION_ADAPTER_TIMEOUT must be positive")
	}
	if d.CallbackTimeout <= 0 {
		errors = append(errors, "DISTRIBUTION_CALLBACK_TIMEOUT must be positive")
	}
	if d.DefaultDailyCap <= 0 {
		errors = append(errors, "DISTRIBUTION_DEFAULT_DAILY_CAP must be positive")
	}
	if d.SerializeCaps && (d.CapLockTTL <= 0 || d.CapLockWait <= 0) {
		errors = append(errors, "DISTRIBUTION_CAP_LOCK_TTL and DISTRIBUTION_CAP_LOCK_WAIT must be positive when cap serialization is enabled")
	}
	for advType, mode := range d.TransportModes {
		if mode != "direct" && mode != "relay" {
			errors = append(errors, fmt.Sprintf("transport mode for %s must be direct or relay, got %q", advType, mode))
		}
		if mode == "relay" && d.RelayEndpoint == "" {
			errors = append(errors, fmt.Sprintf("DISTRIBUTION_RELAY_ENDPOINT is required when %s uses the relay transport", advType))
		}
	}

	// Validate geoip configuration if enabled
	if cfg.GeoIP.Enabled && cfg.GeoIP.DatabasePath == "" {
		errors = append(errors, "GEOIP_DATABASE_PATH is required when GeoIP is enabled")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
