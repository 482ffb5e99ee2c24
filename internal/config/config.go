package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Notification NotificationConfig `mapstructure:"notification"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Events       EventsConfig       `mapstructure:"events"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the embedded migrations
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LarkConfig holds Lark messaging configuration.
// When disabled, notifications are written to the log instead.
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	BaseURL       string `mapstructure:"base_url"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
}

// NotificationConfig tunes the delivery worker
type NotificationConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

// ArchiveConfig holds the DynamoDB history archive configuration
type ArchiveConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	TableName       string `mapstructure:"table_name"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// CacheConfig holds the membership cache configuration
type CacheConfig struct {
	MembershipTTL        time.Duration `mapstructure:"membership_ttl"`
	MembershipMaxEntries int           `mapstructure:"membership_max_entries"`
}

// EventsConfig holds event dispatcher configuration
type EventsConfig struct {
	AsyncTimeout time.Duration `mapstructure:"async_timeout"`
}

// Load loads configuration from file and environment variables.
// An empty configPath skips the file and relies on defaults and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.receive_id_type", "open_id")

	// Notification worker defaults
	v.SetDefault("notification.queue_size", 256)
	v.SetDefault("notification.rate_per_second", 5.0)
	v.SetDefault("notification.burst", 5)
	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.retry_delay", 2*time.Second)
	v.SetDefault("notification.send_timeout", 10*time.Second)

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.table_name", "approval_history_archive")

	// Cache defaults
	v.SetDefault("cache.membership_ttl", 30*time.Second)
	v.SetDefault("cache.membership_max_entries", 10000)

	v.SetDefault("events.async_timeout", 30*time.Second)
}

// bindEnvVars binds the conventional names of secrets and endpoints
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"lark.app_id":               {"LARK_APP_ID"},
		"lark.app_secret":           {"LARK_APP_SECRET"},
		"database.path":             {"DATABASE_PATH"},
		"archive.region":            {"ARCHIVE_REGION", "AWS_REGION"},
		"archive.endpoint":          {"ARCHIVE_ENDPOINT", "AWS_ENDPOINT_URL_DYNAMODB"},
		"archive.access_key_id":     {"AWS_ACCESS_KEY_ID"},
		"archive.secret_access_key": {"AWS_SECRET_ACCESS_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Lark credentials only matter when messages are really sent
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	if c.Notification.QueueSize <= 0 {
		return fmt.Errorf("notification.queue_size must be positive")
	}
	if c.Notification.MaxAttempts <= 0 {
		return fmt.Errorf("notification.max_attempts must be positive")
	}

	if c.Archive.Enabled {
		if c.Archive.TableName == "" {
			return fmt.Errorf("archive.table_name is required")
		}
		if c.Archive.Region == "" {
			return fmt.Errorf("archive.region is required")
		}
	}

	if c.Cache.MembershipTTL <= 0 {
		return fmt.Errorf("cache.membership_ttl must be positive")
	}

	return nil
}
