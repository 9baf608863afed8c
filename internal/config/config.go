package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/conference-hub/internal/notify"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig   `yaml:"server"`
	Database     DatabaseConfig `yaml:"database"`
	Redis        RedisConfig    `yaml:"redis"`
	AWS          AWSConfig      `yaml:"aws"`
	SES          SESConfig      `yaml:"ses"`
	Import       ImportConfig   `yaml:"import"`
	Audit        AuditConfig    `yaml:"audit"`
	Registration regform.Config `yaml:"registration"`
	Notify       NotifyConfig   `yaml:"notify"`
	Log          LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxUploadMB caps CSV request bodies.
	MaxUploadMB int `yaml:"max_upload_mb"`
	// ManagementHeader is set by the gateway on requests from event
	// managers. Empty means no request gets management rights.
	ManagementHeader string `yaml:"management_header"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used for the form cache and
// import locks. An empty URL disables both.
type RedisConfig struct {
	URL             string `yaml:"url"`
	FormCacheTTLSec int    `yaml:"form_cache_ttl_seconds"`
}

// FormCacheTTL returns the form definition cache lifetime.
func (c RedisConfig) FormCacheTTL() time.Duration {
	return time.Duration(c.FormCacheTTLSec) * time.Second
}

// AWSConfig holds shared AWS client settings.
type AWSConfig struct {
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Endpoint points every client at a local emulator when set.
	Endpoint string `yaml:"endpoint"`
}

// GetProfile returns the AWS profile, with environment variable override
func (c AWSConfig) GetProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// SESConfig holds the notification sender settings. Notifications are only
// logged when FromAddress is empty.
type SESConfig struct {
	FromAddress      string `yaml:"from_address"`
	FromName         string `yaml:"from_name"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	S3Bucket       string `yaml:"s3_bucket"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns how long an import lock survives a crashed holder.
func (c ImportConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// AuditConfig holds the registration change log settings. An empty table
// disables auditing.
type AuditConfig struct {
	DynamoDBTable string `yaml:"dynamodb_table"`
	RetentionDays int    `yaml:"retention_days"`
}

// NotifyConfig holds the notification queue and template overrides.
type NotifyConfig struct {
	Dispatcher notify.DispatcherConfig    `yaml:"dispatcher"`
	Templates  map[string]notify.Template `yaml:"templates"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.FormCacheTTLSec == 0 {
		cfg.Redis.FormCacheTTLSec = 300
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-west-2"
	}
	if cfg.Import.LockTTLSeconds == 0 {
		cfg.Import.LockTTLSeconds = 600
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 365
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.AWS.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.AWS.SecretKey = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("SES_FROM_ADDRESS"); v != "" {
		cfg.SES.FromAddress = v
	}
	if v := os.Getenv("IMPORT_S3_BUCKET"); v != "" {
		cfg.Import.S3Bucket = v
	}
	if v := os.Getenv("AUDIT_DYNAMODB_TABLE"); v != "" {
		cfg.Audit.DynamoDBTable = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	return cfg, nil
}
