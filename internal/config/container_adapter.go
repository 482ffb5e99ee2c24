package config

import (
	"github.com/garyjia/erp-approvals/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig(version string) *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			BaseURL:       c.Lark.BaseURL,
			ReceiveIDType: c.Lark.ReceiveIDType,
		},
		Notification: container.NotificationConfig{
			QueueSize:     c.Notification.QueueSize,
			RatePerSecond: c.Notification.RatePerSecond,
			Burst:         c.Notification.Burst,
			MaxAttempts:   c.Notification.MaxAttempts,
			RetryDelay:    c.Notification.RetryDelay,
			SendTimeout:   c.Notification.SendTimeout,
		},
		Archive: container.ArchiveConfig{
			Enabled:         c.Archive.Enabled,
			Region:          c.Archive.Region,
			TableName:       c.Archive.TableName,
			Endpoint:        c.Archive.Endpoint,
			AccessKeyID:     c.Archive.AccessKeyID,
			SecretAccessKey: c.Archive.SecretAccessKey,
		},
		Cache: container.CacheConfig{
			MembershipTTL:        c.Cache.MembershipTTL,
			MembershipMaxEntries: c.Cache.MembershipMaxEntries,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		AsyncEventTimeout: c.Events.AsyncTimeout,
		Version:           version,
	}
}
