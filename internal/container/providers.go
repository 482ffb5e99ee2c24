package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/application/service"
	"github.com/garyjia/erp-approvals/internal/application/workflow"
	"github.com/garyjia/erp-approvals/internal/domain/event"
	"github.com/garyjia/erp-approvals/internal/infrastructure/archive"
	"github.com/garyjia/erp-approvals/internal/infrastructure/cache"
	"github.com/garyjia/erp-approvals/internal/infrastructure/export"
	infraLark "github.com/garyjia/erp-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/erp-approvals/internal/infrastructure/worker"
	apihttp "github.com/garyjia/erp-approvals/internal/interfaces/http"
	"github.com/garyjia/erp-approvals/pkg/database"
	"github.com/garyjia/erp-approvals/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database, runs pending migrations
// and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sqlDB, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.MigrationsDir); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          sqlDB,
		TransactionMgr: sqlite.NewDB(sqlDB.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
// Membership lookups go through a read-through cache.
func ProvideRepositories(db *sqlite.DB, cacheCfg *CacheConfig, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if cacheCfg == nil {
		return nil, fmt.Errorf("cache config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	membershipCache := cache.NewMembershipCache(
		repository.NewMembershipRepository(db, logger),
		cacheCfg.MembershipTTL,
		cacheCfg.MembershipMaxEntries,
	)

	return &RepositoryBundle{
		Rule:            repository.NewRuleRepository(db, logger),
		Request:         repository.NewRequestRepository(db, logger),
		Document:        repository.NewDocumentRepository(db, logger),
		History:         repository.NewHistoryRepository(db, logger),
		Notification:    repository.NewNotificationRepository(db, logger),
		Membership:      membershipCache,
		MembershipCache: membershipCache,
	}, nil
}

// logNotifier writes chat messages to the log when Lark delivery is disabled
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) SendText(ctx context.Context, userID, text string) error {
	n.logger.Info("Notification not sent, lark disabled",
		zap.String("recipient", userID),
		zap.String("text", text))
	return nil
}

// ProvideNotifier creates the chat notifier: Lark when enabled, the log otherwise.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.ChatNotifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		return &logNotifier{logger: logger}, nil
	}

	return infraLark.NewNotifier(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		BaseURL:       cfg.BaseURL,
		ReceiveIDType: cfg.ReceiveIDType,
	}, logger), nil
}

// ProvideArchive creates the DynamoDB history archive.
// It returns nil when archiving is disabled.
func ProvideArchive(ctx context.Context, cfg *ArchiveConfig, logger *zap.Logger) (port.HistoryArchive, error) {
	if cfg == nil {
		return nil, fmt.Errorf("archive config is required")
	}
	if !cfg.Enabled {
		return nil, nil
	}

	dynamo, err := archive.NewDynamoArchive(ctx, archive.Config{
		Region:          cfg.Region,
		TableName:       cfg.TableName,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create history archive: %w", err)
	}
	return dynamo, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *Config, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger))}
	if cfg != nil && cfg.AsyncEventTimeout > 0 {
		opts = append(opts, dispatcher.WithAsyncTimeout(cfg.AsyncEventTimeout))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ProvideNotificationWorker creates the delivery worker behind the notification service.
func ProvideNotificationWorker(cfg *NotificationConfig, notifier port.ChatNotifier, repos *RepositoryBundle, logger *zap.Logger) (*worker.NotificationWorker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notification config is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}

	return worker.NewNotificationWorker(worker.NotificationWorkerConfig{
		QueueSize:     cfg.QueueSize,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    cfg.RetryDelay,
		SendTimeout:   cfg.SendTimeout,
	}, notifier, repos.Notification, logger), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Queue      port.DeliveryQueue
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("delivery queue is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger)

	rules := service.NewRuleService(deps.Repos.Rule, export.NewRuleRegister(deps.Logger), deps.TxManager, serviceLogger)
	eligibility := service.NewEligibilityService(rules, deps.Repos.Request, deps.Repos.Membership)

	approvalDeps := service.ApprovalDeps{
		Rules:        rules,
		Eligibility:  eligibility,
		RuleRepo:     deps.Repos.Rule,
		RequestRepo:  deps.Repos.Request,
		HistoryRepo:  deps.Repos.History,
		DocumentRepo: deps.Repos.Document,
		Memberships:  deps.Repos.Membership,
		TxManager:    deps.TxManager,
		Dispatcher:   deps.Dispatcher,
		Engine:       workflow.NewEngine(),
		Logger:       serviceLogger,
	}

	return &ServiceBundle{
		Rule:         rules,
		Eligibility:  eligibility,
		Approval:     service.NewApprovalService(approvalDeps),
		Document:     service.NewDocumentService(approvalDeps),
		Membership:   service.NewMembershipService(deps.Repos.Membership, serviceLogger),
		Notification: service.NewNotificationService(deps.Repos.Notification, deps.Repos.Membership, deps.Queue, serviceLogger),
	}, nil
}

// archivedTypes are copied to the history archive
var archivedTypes = append(append([]event.Type{}, event.ApprovalTypes...),
	event.TypeStatusChanged,
	event.TypeDocumentDeleted,
)

// RegisterHandlers subscribes the notification service and, when configured,
// the history archive to the dispatcher.
func RegisterHandlers(d dispatcher.Dispatcher, services *ServiceBundle, history port.HistoryArchive, logger *zap.Logger) error {
	if d == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if services == nil {
		return fmt.Errorf("services are required")
	}

	d.SubscribeMany(event.ApprovalTypes, "notifications", services.Notification.HandleEvent)

	if history != nil {
		d.SubscribeMany(archivedTypes, "history_archive", service.NewArchiveHandler(history, utils.NewKVLogger(logger)))
	}
	return nil
}

// ProvideServer creates the HTTP server over the application services.
func ProvideServer(cfg *Config, services *ServiceBundle, health func(ctx context.Context) error, logger *zap.Logger) (*apihttp.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}

	serverCfg := apihttp.DefaultServerConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	if cfg.Server.ReadTimeout > 0 {
		serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	if cfg.Version != "" {
		serverCfg.Version = cfg.Version
	}

	return apihttp.NewServer(serverCfg, apihttp.Services{
		Rules:         services.Rule,
		Approvals:     services.Approval,
		Documents:     services.Document,
		Eligibility:   services.Eligibility,
		Memberships:   services.Membership,
		Notifications: services.Notification,
		Health:        health,
	}, utils.NewKVLogger(logger)), nil
}
