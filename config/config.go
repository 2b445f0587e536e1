// Package config provides environment-driven configuration loading for
// this module's runtime defaults. Library code itself always takes
// explicit struct configuration: nothing here is threaded into the
// session/stream/migration package APIs. cmd/faesctl reads its own
// settings through viper and does not import this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// MustGetInt retrieves a required integer value from environment or panics
func (ec *EnvConfig) MustGetInt(key string) int {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("environment variable %s is not a valid integer: %v", fullKey, err))
	}
	return intValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// Defaults holds environment-loadable values for chunk size, lock
// acquisition/heartbeat timing, retry backoff, and progress reporting
// cadence. No component reads it: each component applies its own built-in
// fallback when its explicit configuration leaves a field at its zero
// value (ProgressTracker, for example, falls back to a 5s report interval,
// not ReportInterval's 2s).
type Defaults struct {
	ChunkSize         int
	LockTimeout       time.Duration
	HeartbeatInterval time.Duration
	ReportInterval    time.Duration

	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMaxAttempts  int
}

// LoadDefaults loads Defaults from the environment under prefix (prefix
// "FAES" gives FAES_CHUNK_SIZE, FAES_LOCK_TIMEOUT, and so on).
func LoadDefaults(prefix string) Defaults {
	env := NewEnvConfig(prefix)
	return Defaults{
		ChunkSize:         env.GetInt("CHUNK_SIZE", 500),
		LockTimeout:       env.GetDuration("LOCK_TIMEOUT", 30*time.Second),
		HeartbeatInterval: env.GetDuration("HEARTBEAT_INTERVAL", 10*time.Second),
		ReportInterval:    env.GetDuration("REPORT_INTERVAL", 2*time.Second),
		RetryInitialDelay: env.GetDuration("RETRY_INITIAL_DELAY", 100*time.Millisecond),
		RetryMaxDelay:     env.GetDuration("RETRY_MAX_DELAY", 5*time.Second),
		RetryMaxAttempts:  env.GetInt("RETRY_MAX_ATTEMPTS", 5),
	}
}

// ServiceConfig names the running process for logging and the CLI.
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment.
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", "faesctl"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// StorageConfig names the data/document store endpoints to connect to.
// Which driver URL field applies depends on StoreKind (e.g.
// "couchdb" uses DocumentStoreURL against store/couchdocstore).
type StorageConfig struct {
	StoreKind         string
	DataStoreName     string
	DocumentStoreName string
	DocumentStoreURL  string
	DocumentStoreDB   string
}

// LoadStorageConfig loads storage configuration from environment.
func LoadStorageConfig(prefix string) StorageConfig {
	env := NewEnvConfig(prefix)
	return StorageConfig{
		StoreKind:         env.GetString("STORE_KIND", "memory"),
		DataStoreName:     env.GetString("DATA_STORE_NAME", "primary"),
		DocumentStoreName: env.GetString("DOCUMENT_STORE_NAME", "primary"),
		DocumentStoreURL:  env.GetString("DOCUMENT_STORE_URL", "http://localhost:5984"),
		DocumentStoreDB:   env.GetString("DOCUMENT_STORE_DB", "eventstream"),
	}
}

// BackupConfig holds the settings for an optional backup/s3backup.Provider.
type BackupConfig struct {
	Enabled      bool
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// LoadBackupConfig loads backup configuration from environment.
func LoadBackupConfig(prefix string) BackupConfig {
	env := NewEnvConfig(prefix)
	return BackupConfig{
		Enabled:      env.GetBool("ENABLED", false),
		Bucket:       env.GetString("BUCKET", ""),
		Prefix:       env.GetString("PREFIX", "eventstream-backups"),
		Region:       env.GetString("REGION", "us-east-1"),
		Endpoint:     env.GetString("ENDPOINT", ""),
		AccessKey:    env.GetString("ACCESS_KEY", ""),
		SecretKey:    env.GetString("SECRET_KEY", ""),
		UsePathStyle: env.GetBool("USE_PATH_STYLE", false),
	}
}

// LockConfig configures the Redis-backed distributed lock provider.
type LockConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadLockConfig loads lock configuration from environment.
func LoadLockConfig(prefix string) LockConfig {
	env := NewEnvConfig(prefix)
	return LockConfig{
		RedisAddr:     env.GetString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.GetString("REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("REDIS_DB", 0),
	}
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireString validates that a string field is not empty
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within range
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt validates that an integer field is positive
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireURL validates that a string is a valid URL
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a valid URL (http:// or https://)", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// ConfigLoader provides a fluent interface for loading configuration
type ConfigLoader struct {
	prefix string
	env    *EnvConfig
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(prefix string) *ConfigLoader {
	return &ConfigLoader{
		prefix: prefix,
		env:    NewEnvConfig(prefix),
	}
}

// LoadAll loads and validates every configuration section.
func (cl *ConfigLoader) LoadAll() (*AllConfig, error) {
	config := &AllConfig{
		Defaults: LoadDefaults(cl.prefix),
		Service:  LoadServiceConfig(cl.prefix),
		Storage:  LoadStorageConfig(cl.prefix + "_STORAGE"),
		Backup:   LoadBackupConfig(cl.prefix + "_BACKUP"),
		Lock:     LoadLockConfig(cl.prefix + "_LOCK"),
	}

	if err := cl.validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate validates the loaded configuration
func (cl *ConfigLoader) validate(config *AllConfig) error {
	validator := NewValidator()

	validator.RequireString("Service.Name", config.Service.Name)
	validator.RequireOneOf("Service.Environment", config.Service.Environment,
		[]string{"development", "staging", "production"})
	validator.RequireOneOf("Service.LogLevel", config.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})

	validator.RequirePositiveInt("Defaults.ChunkSize", config.Defaults.ChunkSize)
	validator.RequirePositiveInt("Defaults.RetryMaxAttempts", config.Defaults.RetryMaxAttempts)

	if config.Backup.Enabled {
		validator.RequireString("Backup.Bucket", config.Backup.Bucket)
	}

	return validator.Validate()
}

// AllConfig aggregates every configuration section LoadAll loads.
type AllConfig struct {
	Defaults Defaults
	Service  ServiceConfig
	Storage  StorageConfig
	Backup   BackupConfig
	Lock     LockConfig
}
