// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/campaign-callcenter/utils"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
	CallCenter CallCenterConfig `json:"call_center"`
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
	BodyLimit         int           `json:"body_limit"`
	EnablePprof       bool          `json:"enable_pprof"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled  bool   `json:"tls_enabled"`
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`
	HSTSMaxAge  int    `json:"hsts_max_age"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
	Algorithm      string        `json:"algorithm"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	// Access Logs
	EnableAccessLog bool `json:"enable_access_log"`

	// Audit Logs
	EnableAuditLog bool `json:"enable_audit_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`

	// Custom Metrics
	CollectAppMetrics bool `json:"collect_app_metrics"`
}

type CacheConfig struct {
	Enabled       bool          `json:"enabled"`
	Provider      string        `json:"provider"` // redis, memory
	RedisURL      string        `json:"redis_url"`
	RedisDB       int           `json:"redis_db"`
	RedisPrefix   string        `json:"redis_prefix"`
	RedisPassword string        `json:"-"`
	DefaultTTL    time.Duration `json:"default_ttl"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	APIDomain   string `json:"api_domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// CallCenterConfig tunes assignment and call scheduling
type CallCenterConfig struct {
	MaxAttempts      int           `json:"max_attempts"`       // retry cap applied by the voter pool
	CallbackDelay    time.Duration `json:"callback_delay"`     // next_attempt_at offset for callback requests
	DefaultQueueSize int           `json:"default_queue_size"` // target used when a batch load names none
	MaxQueueSize     int           `json:"max_queue_size"`
	MaxBatchSize     int           `json:"max_batch_size"`
	LockTTL          time.Duration `json:"lock_ttl"` // per-caller batch lock lifetime
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
			Name:            getEnvString("DB_NAME", "callcenter"),
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
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnablePprof:       getEnvBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:       getEnvBool("TLS_ENABLED", false),
			TLSCertFile:      getEnvString("TLS_CERT_FILE", ""),
			TLSKeyFile:       getEnvString("TLS_KEY_FILE", ""),
			HSTSMaxAge:       getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:        getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:    getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:   getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "campaign-callcenter"),
			Audience:       getEnvString("JWT_AUDIENCE", "campaign-callcenter-api"),
			Algorithm:      getEnvString("JWT_ALGORITHM", "HS256"),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/callcenter/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
			EnableAuditLog:  getEnvBool("LOG_ENABLE_AUDIT", true),
		},
		Metrics: MetricsConfig{
			Enabled:           getEnvBool("METRICS_ENABLED", true),
			Path:              getEnvString("METRICS_PATH", "/metrics"),
			CollectAppMetrics: getEnvBool("METRICS_COLLECT_APP", true),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("CACHE_ENABLED", true),
			Provider:      getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:      getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:       getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:   getEnvString("CACHE_REDIS_PREFIX", "callcenter:"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			DefaultTTL:    getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "your-domain.com"),
			APIDomain:   getEnvString("API_DOMAIN", "api.your-domain.com"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
		CallCenter: CallCenterConfig{
			MaxAttempts:      getEnvInt("CALL_CENTER_MAX_ATTEMPTS", utils.DefaultMaxCallAttempts),
			CallbackDelay:    getEnvDuration("CALL_CENTER_CALLBACK_DELAY", utils.DefaultCallbackDelay),
			DefaultQueueSize: getEnvInt("CALL_CENTER_DEFAULT_QUEUE_SIZE", utils.DefaultQueueSize),
			MaxQueueSize:     getEnvInt("CALL_CENTER_MAX_QUEUE_SIZE", utils.MaxQueueSize),
			MaxBatchSize:     getEnvInt("CALL_CENTER_MAX_BATCH_SIZE", utils.MaxBatchSize),
			LockTTL:          getEnvDuration("CALL_CENTER_LOCK_TTL", utils.DefaultLockTTL),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
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
		// Use standard library strings.Split and strings.TrimSpace
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

// DefaultCallCenterConfig returns the call center settings used when nothing is configured
func DefaultCallCenterConfig() CallCenterConfig {
	return CallCenterConfig{
		MaxAttempts:      utils.DefaultMaxCallAttempts,
		CallbackDelay:    utils.DefaultCallbackDelay,
		DefaultQueueSize: utils.DefaultQueueSize,
		MaxQueueSize:     utils.MaxQueueSize,
		MaxBatchSize:     utils.MaxBatchSize,
		LockTTL:          utils.DefaultLockTTL,
	}
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

	// Validate JWT configuration
	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
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

	// Validate TLS configuration if enabled
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Validate call center configuration
	if cfg.CallCenter.MaxAttempts < 1 {
		errors = append(errors, "CALL_CENTER_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.CallCenter.CallbackDelay <= 0 {
		errors = append(errors, "CALL_CENTER_CALLBACK_DELAY must be positive")
	}
	if cfg.CallCenter.MaxQueueSize < 1 {
		errors = append(errors, "CALL_CENTER_MAX_QUEUE_SIZE must be at least 1")
	}
	if cfg.CallCenter.DefaultQueueSize < 1 || cfg.CallCenter.DefaultQueueSize > cfg.CallCenter.MaxQueueSize {
		errors = append(errors, "CALL_CENTER_DEFAULT_QUEUE_SIZE must be between 1 and CALL_CENTER_MAX_QUEUE_SIZE")
	}
	if cfg.CallCenter.MaxBatchSize < 1 {
		errors = append(errors, "CALL_CENTER_MAX_BATCH_SIZE must be at least 1")
	}
	if cfg.CallCenter.LockTTL <= 0 {
		errors = append(errors, "CALL_CENTER_LOCK_TTL must be positive")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
