package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string // empty uses the Feishu open platform default

	// ReceiveIDType names the kind of id users are known by: open_id, user_id, union_id or email
	ReceiveIDType string
}

// NewSDKClient creates the Lark SDK client with a cached tenant token
func NewSDKClient(cfg Config, logger *zap.Logger) *lark.Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	logger.Info("Lark client configured",
		zap.String("app_id", cfg.AppID),
		zap.String("receive_id_type", cfg.ReceiveIDType))

	return lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)
}
