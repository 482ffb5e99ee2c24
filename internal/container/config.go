// Package container provides dependency injection and lifecycle management
// for the ERP approval service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark messaging configuration
	Lark LarkConfig

	// Notification delivery worker configuration
	Notification NotificationConfig

	// DynamoDB history archive configuration
	Archive ArchiveConfig

	// Membership cache configuration
	Cache CacheConfig

	// Server configuration
	Server ServerConfig

	// AsyncEventTimeout bounds each asynchronously dispatched event
	AsyncEventTimeout time.Duration

	// Version is reported by the health endpoint
	Version string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// LarkConfig holds Lark messaging settings.
type LarkConfig struct {
	// Enabled sends notifications through Lark; otherwise they are logged
	Enabled bool

	AppID     string
	AppSecret string

	// BaseURL overrides the open platform endpoint
	BaseURL string

	// ReceiveIDType is how user ids are interpreted, e.g. open_id or user_id
	ReceiveIDType string
}

// NotificationConfig holds delivery worker settings.
type NotificationConfig struct {
	QueueSize     int
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	RetryDelay    time.Duration
	SendTimeout   time.Duration
}

// ArchiveConfig holds DynamoDB archive settings.
type ArchiveConfig struct {
	Enabled         bool
	Region          string
	TableName       string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// CacheConfig holds membership cache settings.
type CacheConfig struct {
	MembershipTTL        time.Duration
	MembershipMaxEntries int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/approvals.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Lark: LarkConfig{
			ReceiveIDType: "open_id",
		},
		Notification: NotificationConfig{
			QueueSize:     256,
			RatePerSecond: 5,
			Burst:         5,
			MaxAttempts:   3,
			RetryDelay:    2 * time.Second,
			SendTimeout:   10 * time.Second,
		},
		Archive: ArchiveConfig{
			Region:    "us-east-1",
			TableName: "approval_history_archive",
		},
		Cache: CacheConfig{
			MembershipTTL:        30 * time.Second,
			MembershipMaxEntries: 10000,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		AsyncEventTimeout: 30 * time.Second,
		Version:           "1.0.0",
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate Lark configuration
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

	// Validate archive configuration
	if c.Archive.Enabled && c.Archive.TableName == "" {
		return fmt.Errorf("archive.table_name is required")
	}

	if c.Cache.MembershipTTL <= 0 {
		return fmt.Errorf("cache.membership_ttl must be positive")
	}

	return nil
}
